// Package rates maintains the versioned activity-rate table: the active set
// consumed by the contribution calculator, a mutable draft set for proposed
// edits, and an immutable history of previously-active snapshots.
package rates

import (
	"fmt"
	"strings"
	"time"

	"github.com/chiffre-app/chiffre/internal/shared"
)

// Family groups activities sharing a regime treatment.
type Family string

const (
	FamilySale           Family = "SALE"
	FamilyService        Family = "SERVICE"
	FamilyLiberal        Family = "LIBERAL"
	FamilyFurnishedRental Family = "FURNISHED_RENTAL"
)

// ChamberType selects which consular chamber, if any, levies a surcharge.
type ChamberType string

const (
	ChamberNone     ChamberType = "NONE"
	ChamberTrade    ChamberType = "CMA"
	ChamberCommerce ChamberType = "CCI"
)

// ActivityRate holds the per-activity rates and ceilings. Optional rate
// fields are nil when the component does not apply to the activity, which is
// distinct from an applicable rate of zero.
type ActivityRate struct {
	Code               string       `json:"code"`
	Label              string       `json:"label"`
	Family             Family       `json:"family"`
	SocialRate         float64      `json:"social_rate"`
	IncomeTaxRate      *float64     `json:"income_tax_rate"`
	CFPRate            *float64     `json:"cfp_rate"`
	ChamberType        ChamberType  `json:"chamber_type"`
	ChamberRate        *float64     `json:"chamber_rate"`
	ChamberRateAlsace  *float64     `json:"chamber_rate_alsace"`
	ChamberRateMoselle *float64     `json:"chamber_rate_moselle"`
	Ceiling            float64      `json:"ceiling"`
	VATCeiling         float64      `json:"vat_ceiling"`
	VATCeilingMajor    float64      `json:"vat_ceiling_major"`
	VATAlertRatio      float64      `json:"vat_alert_ratio"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Draft is a proposed ActivityRate edit, one row per code.
type Draft struct {
	ID        int64     `json:"id"`
	ActivityRate
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryEntry records the full active set at the moment a draft was applied.
type HistoryEntry struct {
	ID        int64          `json:"id"`
	Note      *string        `json:"note"`
	AppliedAt time.Time      `json:"applied_at"`
	Snapshot  []ActivityRate `json:"snapshot,omitempty"`
}

// ChamberRateFor returns the chamber rate applicable to the given region
// name, falling back to the default column. Nil means "no surcharge".
func (r ActivityRate) ChamberRateFor(region string) *float64 {
	switch region {
	case "ALSACE":
		if r.ChamberRateAlsace != nil {
			return r.ChamberRateAlsace
		}
	case "MOSELLE":
		if r.ChamberRateMoselle != nil {
			return r.ChamberRateMoselle
		}
	}
	return r.ChamberRate
}

// Validate enforces the draft invariants: identifying fields non-empty and
// every present rate or ceiling non-negative.
func (r ActivityRate) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("%w: code is required", errInvalid)
	}
	if strings.TrimSpace(r.Label) == "" {
		return fmt.Errorf("%w: label is required", errInvalid)
	}
	if strings.TrimSpace(string(r.Family)) == "" {
		return fmt.Errorf("%w: family is required", errInvalid)
	}
	if r.SocialRate < 0 {
		return fmt.Errorf("%w: social_rate must be non-negative", errInvalid)
	}
	for field, v := range map[string]*float64{
		"income_tax_rate":      r.IncomeTaxRate,
		"cfp_rate":             r.CFPRate,
		"chamber_rate":         r.ChamberRate,
		"chamber_rate_alsace":  r.ChamberRateAlsace,
		"chamber_rate_moselle": r.ChamberRateMoselle,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must be non-negative when present", errInvalid, field)
		}
	}
	for field, v := range map[string]float64{
		"ceiling":           r.Ceiling,
		"vat_ceiling":       r.VATCeiling,
		"vat_ceiling_major": r.VATCeilingMajor,
		"vat_alert_ratio":   r.VATAlertRatio,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be non-negative", errInvalid, field)
		}
	}
	return nil
}

var errInvalid = fmt.Errorf("rates: %w", shared.ErrInvalidInput)
