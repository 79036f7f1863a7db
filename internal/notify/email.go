// Package notify sends the monthly closing summary by email.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"orcamento/internal/core"
)

var ErrNotConfigured = errors.New("smtp not configured")

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       []string
	// Currency is the ISO code amounts are printed in; BRL when empty.
	Currency string
}

// Enabled reports whether enough is set to send mail.
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// Mailer sends month-closed summaries over SMTP.
type Mailer struct {
	cfg  Config
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(cfg Config) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}
	return &Mailer{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}, nil
}

// SendMonthClosed mails the closing totals with the archived month attached
// as JSON.
func (m *Mailer) SendMonthClosed(ctx context.Context, month core.MonthlyData, filename string, doc []byte) error {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = m.cfg.To
	e.Subject = fmt.Sprintf("Fechamento de %s", month.Month)
	e.Text = []byte(monthClosedBody(month, m.cfg.Currency))

	if len(doc) > 0 {
		if _, err := e.Attach(bytes.NewReader(doc), filename, "application/json"); err != nil {
			return fmt.Errorf("attach %s: %w", filename, err)
		}
	}

	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(e, addr, auth); err != nil {
		slog.ErrorContext(ctx, "Failed to send month closed email",
			"month_id", month.ID,
			"to", strings.Join(m.cfg.To, ","),
			"error", err)
		return fmt.Errorf("send month closed email: %w", err)
	}

	slog.InfoContext(ctx, "Month closed email sent",
		"month_id", month.ID,
		"subject", e.Subject)
	return nil
}

func monthClosedBody(m core.MonthlyData, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá,\n\nO mês de %s foi fechado em %s.\n\n", m.Month, m.ClosedAt.Format("02/01/2006"))
	fmt.Fprintf(&b, "Renda total:    %s\n", m.Income.Format(currency))
	fmt.Fprintf(&b, "Gastos totais:  %s\n", m.Expenses.Format(currency))
	fmt.Fprintf(&b, "Saldo restante: %s\n", m.Remaining.Format(currency))

	spent := make([]core.ExpenseCategory, 0, len(m.Categories))
	for _, c := range m.Categories {
		if c.Spent.Cents > 0 {
			spent = append(spent, c)
		}
	}
	if len(spent) > 0 {
		b.WriteString("\nGastos por categoria:\n")
		for _, c := range spent {
			fmt.Fprintf(&b, "- %s: %s (estimado %s)\n", c.Category, c.Spent.Format(currency), c.Estimated.Format(currency))
		}
	}
	if m.Notes != "" {
		fmt.Fprintf(&b, "\nObservações: %s\n", m.Notes)
	}
	b.WriteString("\nO relatório completo segue em anexo.\n")
	return b.String()
}
