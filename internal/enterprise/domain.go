// Package enterprise manages micro-enterprise records: the business entities
// users declare contributions for, their user-defined categories, the
// accounts attached to them, and the cached rate/ceiling snapshot kept in
// sync with the rate store.
package enterprise

import (
	"fmt"
	"strings"
	"time"

	"github.com/chiffre-app/chiffre/internal/shared"
)

// Frequency is the declaration cadence.
type Frequency string

const (
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
)

// Region affects which chamber-rate column applies.
type Region string

const (
	RegionNone    Region = "NONE"
	RegionAlsace  Region = "ALSACE"
	RegionMoselle Region = "MOSELLE"
)

// RateSnapshot caches the rate/ceiling values the enterprise last synced from
// the rate store. Kept denormalized so enterprise views never join the store.
type RateSnapshot struct {
	SocialRate      float64 `json:"social_rate"`
	IRRate          float64 `json:"ir_rate"`
	CFPRate         float64 `json:"cfp_rate"`
	Ceiling         float64 `json:"ceiling"`
	VATCeiling      float64 `json:"vat_ceiling"`
	VATCeilingMajor float64 `json:"vat_ceiling_major"`
	VATAlertRatio   float64 `json:"vat_alert_ratio"`
}

// MicroEnterprise is one business entity owned by exactly one user.
type MicroEnterprise struct {
	ID                 int64        `json:"id"`
	UserID             int64        `json:"-"`
	Name               string       `json:"name"`
	RegimeLabel        *string      `json:"regime_label"`
	ActivityCode       *string      `json:"activity_code"`
	Frequency          Frequency    `json:"frequency"`
	IRLiberatoire      bool         `json:"ir_liberatoire"`
	Region             Region       `json:"region"`
	ACRERate           *float64     `json:"acre_rate"`
	CeilingOverride    *float64     `json:"ceiling_override"`
	VATCeilingOverride *float64     `json:"vat_ceiling_override"`
	Snapshot           RateSnapshot `json:"snapshot"`
	CreatedOn          time.Time    `json:"created_on"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Category is a user-facing income/expense label scoped to one enterprise.
// It is never consumed by the contribution calculator.
type Category struct {
	ID           int64     `json:"id"`
	EnterpriseID int64     `json:"-"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	CategoryIncome  = "INCOME"
	CategoryExpense = "EXPENSE"
)

// VATStatus summarizes the franchise position for the current year.
type VATStatus string

const (
	VATOK            VATStatus = "OK"
	VATApproaching   VATStatus = "APPROACHING"
	VATExceeded      VATStatus = "EXCEEDED"
	VATMajorExceeded VATStatus = "MAJOR_EXCEEDED"
)

// EffectiveCeiling returns the turnover ceiling, honoring the per-enterprise
// override when present.
func (e MicroEnterprise) EffectiveCeiling() float64 {
	if e.CeilingOverride != nil {
		return *e.CeilingOverride
	}
	return e.Snapshot.Ceiling
}

// EffectiveVATCeiling returns the VAT-franchise ceiling, honoring the
// override when present.
func (e MicroEnterprise) EffectiveVATCeiling() float64 {
	if e.VATCeilingOverride != nil {
		return *e.VATCeilingOverride
	}
	return e.Snapshot.VATCeiling
}

// VATStatusFor classifies the year-to-date turnover against the franchise
// ceilings using the alert-ratio threshold.
func (e MicroEnterprise) VATStatusFor(yearTurnover float64) VATStatus {
	ceiling := e.EffectiveVATCeiling()
	if ceiling <= 0 {
		return VATOK
	}
	if major := e.Snapshot.VATCeilingMajor; major > 0 && yearTurnover > major {
		return VATMajorExceeded
	}
	if yearTurnover > ceiling {
		return VATExceeded
	}
	if ratio := e.Snapshot.VATAlertRatio; ratio > 0 && yearTurnover >= ceiling*ratio {
		return VATApproaching
	}
	return VATOK
}

// Validate enforces creation invariants.
func (e MicroEnterprise) Validate() error {
	if e.UserID <= 0 {
		return fmt.Errorf("enterprise: user id: %w", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("enterprise: name is required: %w", shared.ErrInvalidInput)
	}
	switch e.Frequency {
	case FrequencyMonthly, FrequencyQuarterly:
	default:
		return fmt.Errorf("enterprise: frequency must be MONTHLY or QUARTERLY: %w", shared.ErrInvalidInput)
	}
	switch e.Region {
	case RegionNone, RegionAlsace, RegionMoselle:
	default:
		return fmt.Errorf("enterprise: unknown region: %w", shared.ErrInvalidInput)
	}
	if e.ACRERate != nil && (*e.ACRERate < 0 || *e.ACRERate > 1) {
		return fmt.Errorf("enterprise: acre rate must be a fraction between 0 and 1: %w", shared.ErrInvalidInput)
	}
	for field, v := range map[string]*float64{
		"ceiling_override":     e.CeilingOverride,
		"vat_ceiling_override": e.VATCeilingOverride,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("enterprise: %s must be non-negative: %w", field, shared.ErrInvalidInput)
		}
	}
	return nil
}
