// Package contrib computes and tracks micro-enterprise contribution periods:
// it resolves declaration windows, aggregates qualifying turnover, derives
// the due amounts from the rate table and manages each period's
// pending/paid lifecycle.
package contrib

import "time"

// Status enumerates the period lifecycle states.
type Status string

const (
	// StatusPending is the initial state; the period is recomputed on touch.
	StatusPending Status = "PENDING"
	// StatusPaid is terminal; a paid period is an immutable snapshot of what
	// was owed at payment time.
	StatusPaid Status = "PAID"
	// StatusSkipped is a reserved terminal state for manual overrides. No
	// current flow emits it.
	StatusSkipped Status = "SKIPPED"
)

// Period is one contribution declaration window for one enterprise, unique
// per (enterprise, period key). Rate fields are snapshots taken at compute
// time, never live references into the rate store.
type Period struct {
	ID           int64      `json:"id"`
	EnterpriseID int64      `json:"-"`
	Key          string     `json:"period_key"`
	Start        time.Time  `json:"period_start"`
	End          time.Time  `json:"period_end"`
	DueDate      time.Time  `json:"due_date"`
	Turnover     float64    `json:"turnover"`
	SocialRate   *float64   `json:"social_rate"`
	SocialDue    float64    `json:"social_due"`
	IRRate       *float64   `json:"ir_rate"`
	IRDue        float64    `json:"ir_due"`
	CFPRate      *float64   `json:"cfp_rate"`
	CFPDue       float64    `json:"cfp_due"`
	ChamberType  *string    `json:"chamber_type"`
	ChamberRate  *float64   `json:"chamber_rate"`
	ChamberDue   float64    `json:"chamber_due"`
	TotalDue     float64    `json:"total_due"`
	Status       Status     `json:"status"`
	PaidAt       *time.Time `json:"paid_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Totals aggregates one account set over one window.
type Totals struct {
	Turnover float64 `json:"turnover"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}
