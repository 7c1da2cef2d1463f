package contrib

import (
	"math"

	"github.com/chiffre-app/chiffre/internal/enterprise"
	"github.com/chiffre-app/chiffre/internal/rates"
)

// Dues is the per-component breakdown for one period. Rate fields are nil
// when the component does not apply; the matching due is then 0.00, which is
// deliberately distinct from an applicable rate yielding zero.
type Dues struct {
	SocialRate  *float64
	SocialDue   float64
	IRRate      *float64
	IRDue       float64
	CFPRate     *float64
	CFPDue      float64
	ChamberType *string
	ChamberRate *float64
	ChamberDue  float64
	TotalDue    float64
}

// RoundCurrency rounds to 2 decimal places, half-up.
func RoundCurrency(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// ComputeDues derives the due amounts for one period's turnover. A nil rate
// (enterprise without an assigned or resolvable activity) owes nothing.
// Each component is rounded independently and the total is the sum of the
// rounded components; the small discrepancy versus rounding the sum is the
// same one the tax authority's own per-line rounding produces.
func ComputeDues(rate *rates.ActivityRate, e enterprise.MicroEnterprise, turnover float64) Dues {
	var d Dues
	if rate == nil {
		return d
	}

	social := rate.SocialRate
	if e.ACRERate != nil {
		social *= 1 - *e.ACRERate
	}
	d.SocialRate = &social
	d.SocialDue = RoundCurrency(turnover * social)

	// Income tax is owed per-period only under the libératoire election and
	// is never discounted by ACRE.
	if e.IRLiberatoire && rate.IncomeTaxRate != nil {
		ir := *rate.IncomeTaxRate
		d.IRRate = &ir
		d.IRDue = RoundCurrency(turnover * ir)
	}

	if rate.CFPRate != nil {
		cfp := *rate.CFPRate
		d.CFPRate = &cfp
		d.CFPDue = RoundCurrency(turnover * cfp)
	}

	if rate.ChamberType != rates.ChamberNone {
		chamberType := string(rate.ChamberType)
		d.ChamberType = &chamberType
		chamber := 0.0
		if selected := rate.ChamberRateFor(string(e.Region)); selected != nil {
			chamber = *selected
		}
		d.ChamberRate = &chamber
		d.ChamberDue = RoundCurrency(turnover * chamber)
	}

	d.TotalDue = d.SocialDue + d.IRDue + d.CFPDue + d.ChamberDue
	return d
}
