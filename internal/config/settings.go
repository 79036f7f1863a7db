package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"orcamento/internal/core"
)

// settingsFile is the on-disk shape of the settings TOML:
//
//	currency = "BRL"
//	month_start_day = 1
//	alert_threshold = 80
//
//	[[categories]]
//	name = "Mercado"
//	color = "#D1FAE5"
//	estimated = "800,00"
type settingsFile struct {
	Currency       string             `toml:"currency"`
	MonthStartDay  int                `toml:"month_start_day"`
	AlertThreshold int                `toml:"alert_threshold"`
	Categories     []categorySettings `toml:"categories"`
}

type categorySettings struct {
	Name      string `toml:"name"`
	Color     string `toml:"color"`
	Estimated string `toml:"estimated,omitempty"`
}

// LoadSettings reads ledger settings from a TOML file. A missing file or an
// empty path yields core.DefaultSettings; keys absent from the file keep their
// default values, and an empty category list keeps the default categories.
func LoadSettings(path string) (core.Settings, error) {
	s := core.DefaultSettings()
	if path == "" {
		return s, nil
	}

	var f settingsFile
	md, err := toml.DecodeFile(path, &f)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("decode settings %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return s, fmt.Errorf("settings %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if md.IsDefined("currency") {
		s.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	}
	if md.IsDefined("month_start_day") {
		s.MonthStartDay = f.MonthStartDay
	}
	if md.IsDefined("alert_threshold") {
		s.AlertThreshold = f.AlertThreshold
	}
	if len(f.Categories) > 0 {
		s.Categories = make([]core.CategoryTemplate, 0, len(f.Categories))
		for _, c := range f.Categories {
			tpl := core.CategoryTemplate{Name: strings.TrimSpace(c.Name), Color: c.Color}
			if tpl.Color == "" {
				tpl.Color = core.DefaultColor
			}
			if c.Estimated != "" {
				cents, err := core.ParseAmountToCents(c.Estimated)
				if err != nil {
					return core.DefaultSettings(), fmt.Errorf("settings %s: category %q estimated: %w", path, c.Name, err)
				}
				tpl.Estimated = core.FromCents(cents)
			}
			s.Categories = append(s.Categories, tpl)
		}
	}

	if err := s.Validate(); err != nil {
		return core.DefaultSettings(), fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// EncodeSettings writes s in the settings file format, so the output can be
// saved and loaded back with LoadSettings.
func EncodeSettings(w io.Writer, s core.Settings) error {
	f := settingsFile{
		Currency:       s.Currency,
		MonthStartDay:  s.MonthStartDay,
		AlertThreshold: s.AlertThreshold,
		Categories:     make([]categorySettings, 0, len(s.Categories)),
	}
	for _, c := range s.Categories {
		cs := categorySettings{Name: c.Name, Color: c.Color}
		if !c.Estimated.IsZero() {
			cs.Estimated = strings.Replace(c.Estimated.String(), ".", ",", 1)
		}
		f.Categories = append(f.Categories, cs)
	}
	return toml.NewEncoder(w).Encode(f)
}
