package contrib

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var frPrinter = message.NewPrinter(language.French)

// PeriodView is the API shape of a period with display strings alongside the
// raw numbers, formatted the way a French declaration form shows them.
type PeriodView struct {
	Period
	TurnoverDisplay string `json:"turnover_display"`
	TotalDueDisplay string `json:"total_due_display"`
	SocialDisplay   string `json:"social_display"`
	IRDisplay       string `json:"ir_display"`
	CFPDisplay      string `json:"cfp_display"`
	ChamberDisplay  string `json:"chamber_display"`
}

// NewPeriodView decorates a period with localized amount strings. Components
// whose rate is nil render as a dash rather than 0,00 €.
func NewPeriodView(p Period) PeriodView {
	return PeriodView{
		Period:          p,
		TurnoverDisplay: formatEUR(p.Turnover),
		TotalDueDisplay: formatEUR(p.TotalDue),
		SocialDisplay:   formatComponent(p.SocialRate, p.SocialDue),
		IRDisplay:       formatComponent(p.IRRate, p.IRDue),
		CFPDisplay:      formatComponent(p.CFPRate, p.CFPDue),
		ChamberDisplay:  formatComponent(p.ChamberRate, p.ChamberDue),
	}
}

// NewPeriodViews maps a period list, preserving order.
func NewPeriodViews(periods []Period) []PeriodView {
	out := make([]PeriodView, 0, len(periods))
	for _, p := range periods {
		out = append(out, NewPeriodView(p))
	}
	return out
}

func formatEUR(v float64) string {
	return frPrinter.Sprintf("%v €", number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func formatComponent(rate *float64, due float64) string {
	if rate == nil {
		return "—"
	}
	return formatEUR(due)
}
