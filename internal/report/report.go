// Package report builds the downloadable JSON documents: the current-month
// financial report and the full closed-month history.
package report

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const generatedLayout = "02/01/2006"

type (
	Report struct {
		Periodo       string              `json:"periodo"`
		DataGeracao   string              `json:"dataGeracao"`
		Resumo        Resumo              `json:"resumo"`
		Categorias    []Categoria         `json:"categorias"`
		Cartoes       []Cartao            `json:"cartoes"`
		GastosFixos   []core.FixedExpense `json:"gastosFixos"`
		MesesFechados int                 `json:"mesesFechados"`
		Historico     []HistoricoItem     `json:"historico"`
	}

	Resumo struct {
		RendaTotal          core.Money `json:"rendaTotal"`
		GastosTotais        core.Money `json:"gastosTotais"`
		SaldoRestante       core.Money `json:"saldoRestante"`
		PercentualUtilizado string     `json:"percentualUtilizado"`
	}

	Categoria struct {
		Nome      string              `json:"nome"`
		Estimado  core.Money          `json:"estimado"`
		Gasto     core.Money          `json:"gasto"`
		Diferenca core.Money          `json:"diferenca"`
		Status    core.SpendingStatus `json:"status"`
	}

	Cartao struct {
		Nome     string             `json:"nome"`
		Banco    string             `json:"banco"`
		Total    core.Money         `json:"total"`
		Despesas []core.CardExpense `json:"despesas"`
	}

	HistoricoItem struct {
		Mes    string     `json:"mes"`
		Renda  core.Money `json:"renda"`
		Gastos core.Money `json:"gastos"`
		Saldo  core.Money `json:"saldo"`
		Notas  string     `json:"notas,omitempty"`
	}
)

// BuildReport renders the working month plus a digest of the history.
// Only active cards are listed.
func BuildReport(w core.WorkingMonth, history []core.MonthlyData, now time.Time) Report {
	income := ledger.TotalIncome(w.IncomeSources)
	spent := ledger.TotalSpent(w.Categories)

	r := Report{
		Periodo:     w.Period.Label(),
		DataGeracao: now.Format(generatedLayout),
		Resumo: Resumo{
			RendaTotal:          income,
			GastosTotais:        spent,
			SaldoRestante:       income.Sub(spent),
			PercentualUtilizado: ledger.BudgetPercentage(spent, income).StringFixed(1),
		},
		Categorias:    make([]Categoria, 0, len(w.Categories)),
		Cartoes:       []Cartao{},
		GastosFixos:   append([]core.FixedExpense{}, w.FixedExpenses...),
		MesesFechados: len(history),
		Historico:     make([]HistoricoItem, 0, len(history)),
	}

	for _, c := range w.Categories {
		r.Categorias = append(r.Categorias, Categoria{
			Nome:      c.Category,
			Estimado:  c.Estimated,
			Gasto:     c.Spent,
			Diferenca: c.Spent.Sub(c.Estimated),
			Status:    c.ReportStatus(),
		})
	}
	for _, card := range w.Cards {
		if !card.IsActive {
			continue
		}
		r.Cartoes = append(r.Cartoes, Cartao{
			Nome:     card.Name,
			Banco:    card.Bank,
			Total:    card.Total(),
			Despesas: append([]core.CardExpense{}, card.Expenses...),
		})
	}
	for _, m := range history {
		r.Historico = append(r.Historico, HistoricoItem{
			Mes:    m.Month,
			Renda:  m.Income,
			Gastos: m.Expenses,
			Saldo:  m.Remaining,
			Notas:  m.Notes,
		})
	}
	return r
}

// ReportFilename is relatorio-financeiro-<period slug>.json.
func ReportFilename(p core.Period) string {
	return fmt.Sprintf("relatorio-financeiro-%s.json", p.Slug())
}

type (
	History struct {
		DataGeracao string      `json:"dataGeracao"`
		TotalMeses  int         `json:"totalMeses"`
		ResumoGeral ResumoGeral `json:"resumoGeral"`
		Meses       []Mes       `json:"meses"`
	}

	ResumoGeral struct {
		RendaTotal   core.Money `json:"rendaTotal"`
		GastosTotais core.Money `json:"gastosTotais"`
		SaldoTotal   core.Money `json:"saldoTotal"`
		MediaRenda   core.Money `json:"mediaRenda"`
		MediaGastos  core.Money `json:"mediaGastos"`
	}

	Mes struct {
		ID             string                        `json:"id"`
		Mes            string                        `json:"mes"`
		Ano            int                           `json:"ano"`
		Renda          core.Money                    `json:"renda"`
		Gastos         core.Money                    `json:"gastos"`
		Saldo          core.Money                    `json:"saldo"`
		Categorias     []core.ExpenseCategory        `json:"categorias"`
		GastosFixos    []core.FixedExpense           `json:"gastosFixos"`
		Cartoes        map[string][]core.CardExpense `json:"cartoes"`
		FontesRenda    []core.IncomeSource           `json:"fontesRenda"`
		DataFechamento time.Time                     `json:"dataFechamento"`
		Notas          string                        `json:"notas,omitempty"`
	}
)

// BuildHistory renders every closed month in the given order. Averages are
// rounded to the cent and are zero for an empty history.
func BuildHistory(history []core.MonthlyData, now time.Time) History {
	h := History{
		DataGeracao: now.Format(generatedLayout),
		TotalMeses:  len(history),
		Meses:       make([]Mes, 0, len(history)),
	}
	for _, m := range history {
		h.ResumoGeral.RendaTotal = h.ResumoGeral.RendaTotal.Add(m.Income)
		h.ResumoGeral.GastosTotais = h.ResumoGeral.GastosTotais.Add(m.Expenses)
		h.ResumoGeral.SaldoTotal = h.ResumoGeral.SaldoTotal.Add(m.Remaining)

		c := m.Clone()
		h.Meses = append(h.Meses, Mes{
			ID:             c.ID,
			Mes:            c.Month,
			Ano:            c.Year,
			Renda:          c.Income,
			Gastos:         c.Expenses,
			Saldo:          c.Remaining,
			Categorias:     c.Categories,
			GastosFixos:    c.FixedExpenses,
			Cartoes:        c.CardExpenses,
			FontesRenda:    c.IncomeSources,
			DataFechamento: c.ClosedAt,
			Notas:          c.Notes,
		})
	}
	if n := int64(len(history)); n > 0 {
		h.ResumoGeral.MediaRenda = average(h.ResumoGeral.RendaTotal, n)
		h.ResumoGeral.MediaGastos = average(h.ResumoGeral.GastosTotais, n)
	}
	return h
}

func average(total core.Money, n int64) core.Money {
	return core.MoneyFromDecimal(total.Decimal().Div(decimal.NewFromInt(n)))
}

// HistoryFilename is historico-completo-YYYY-MM-DD.json.
func HistoryFilename(now time.Time) string {
	return fmt.Sprintf("historico-completo-%s.json", now.Format(time.DateOnly))
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Marshal returns doc as indented JSON.
func Marshal(doc any) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return b, nil
}
