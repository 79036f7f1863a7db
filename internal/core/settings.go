package core

import (
	"errors"
	"strings"
)

var (
	ErrInvalidThreshold     = errors.New("alert threshold must be between 1 and 100")
	ErrInvalidMonthStartDay = errors.New("month start day must be between 1 and 28")
	ErrInvalidCurrency      = errors.New("currency must be a 3-letter code")
	ErrDuplicateCategory    = errors.New("duplicate category")
)

// CategoryTemplate seeds a budget category for new ledgers.
type CategoryTemplate struct {
	Name      string `json:"name" toml:"name"`
	Color     string `json:"color" toml:"color"`
	Estimated Money  `json:"estimated" toml:"-"`
}

// Settings is in-session configuration of the ledger.
type Settings struct {
	Currency       string             `json:"currency"`
	MonthStartDay  int                `json:"monthStartDay"`
	AlertThreshold int                `json:"alertThreshold"`
	Categories     []CategoryTemplate `json:"categories"`
}

// DefaultCategories are the budget categories a fresh ledger starts with.
var DefaultCategories = []CategoryTemplate{
	{Name: "Contas", Color: "#E0E7FF"},
	{Name: "Cosméticos", Color: "#FCE7F3"},
	{Name: "Educação", Color: "#E0F2FE"},
	{Name: "Lazer", Color: "#FEF3C7"},
	{Name: "Mercado", Color: "#D1FAE5"},
	{Name: "Outros", Color: "#F3F4F6"},
	{Name: "Pets", Color: "#FED7AA"},
	{Name: "Streaming", Color: "#E9D5FF"},
	{Name: "Restaurante", Color: "#FECACA"},
	{Name: "Saúde", Color: "#DBEAFE"},
	{Name: "Transporte", Color: "#FEF3C7"},
	{Name: "Veículo", Color: "#FBBF24"},
	{Name: "Vestuário", Color: "#C084FC"},
	{Name: "Viagem", Color: "#A7F3D0"},
}

// CardColors is the palette offered for new cards.
var CardColors = []struct{ Name, Value string }{
	{"Azul", "#3B82F6"},
	{"Verde", "#10B981"},
	{"Roxo", "#8B5CF6"},
	{"Rosa", "#EC4899"},
	{"Laranja", "#F97316"},
	{"Cinza", "#6B7280"},
	{"Vermelho", "#EF4444"},
	{"Amarelo", "#EAB308"},
}

const (
	DefaultCardColor = "#3B82F6"
	DefaultCardIcon  = "💳"
	DefaultColor     = "#F3F4F6"
)

func DefaultSettings() Settings {
	cats := make([]CategoryTemplate, len(DefaultCategories))
	copy(cats, DefaultCategories)
	return Settings{
		Currency:       "BRL",
		MonthStartDay:  1,
		AlertThreshold: 80,
		Categories:     cats,
	}
}

func (s Settings) Validate() error {
	if len(strings.TrimSpace(s.Currency)) != 3 {
		return ErrInvalidCurrency
	}
	if s.AlertThreshold < 1 || s.AlertThreshold > 100 {
		return ErrInvalidThreshold
	}
	if s.MonthStartDay < 1 || s.MonthStartDay > 28 {
		return ErrInvalidMonthStartDay
	}
	seen := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			return ErrEmptyCategory
		}
		if seen[name] {
			return ErrDuplicateCategory
		}
		seen[name] = true
	}
	return nil
}

// Clone returns a copy with its own category slice.
func (s Settings) Clone() Settings {
	out := s
	out.Categories = cloneSlice(s.Categories)
	return out
}
