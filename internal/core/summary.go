package core

type (
	AlertLevel string

	SpendingStatus string

	Alert struct {
		Level   AlertLevel `json:"level"`
		Message string     `json:"message"`
	}

	CategoryAmount struct {
		Name   string `json:"name"`
		Amount Money  `json:"amount"`
	}
)

const (
	AlertError   AlertLevel = "error"
	AlertWarning AlertLevel = "warning"
	AlertInfo    AlertLevel = "info"
)

const (
	SpendingNone   SpendingStatus = "Sem gastos"
	SpendingOver   SpendingStatus = "Extrapolou"
	SpendingWithin SpendingStatus = "Dentro do esperado"

	// ReportOverspent is the exported report's wording for SpendingOver.
	ReportOverspent SpendingStatus = "Extrapolado"
)

// Status classifies a category's spend against its estimate.
func (c ExpenseCategory) Status() SpendingStatus {
	switch {
	case c.Spent.Cents == 0:
		return SpendingNone
	case c.Spent.Cents > c.Estimated.Cents:
		return SpendingOver
	default:
		return SpendingWithin
	}
}

// Overspent reports whether spent exceeds the estimate.
func (c ExpenseCategory) Overspent() bool {
	return c.Spent.Cents > c.Estimated.Cents
}

// ReportStatus is Status with the exported report's wording.
func (c ExpenseCategory) ReportStatus() SpendingStatus {
	if c.Overspent() {
		return ReportOverspent
	}
	if c.Spent.Cents == 0 {
		return SpendingNone
	}
	return SpendingWithin
}
