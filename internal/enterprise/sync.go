package enterprise

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/chiffre-app/chiffre/internal/rates"
	"github.com/chiffre-app/chiffre/internal/shared"
)

// rateTolerance absorbs floating-point noise when comparing cached values
// against the rate store.
const rateTolerance = 1e-9

// RateSource resolves active rates by activity code.
type RateSource interface {
	GetActive(ctx context.Context, code string) (rates.ActivityRate, error)
}

// FieldDiff records one cached value overwritten by a sync.
type FieldDiff struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// SyncResult reports the outcome of reconciling one enterprise.
type SyncResult struct {
	EnterpriseID int64                `json:"enterprise_id"`
	Updated      bool                 `json:"updated"`
	Ignored      bool                 `json:"ignored"`
	Reason       string               `json:"reason,omitempty"`
	Diffs        map[string]FieldDiff `json:"diffs,omitempty"`
}

// SyncService reconciles cached enterprise snapshots against the rate store.
type SyncService struct {
	repo   Repository
	source RateSource
	logger *slog.Logger
}

// NewSyncService constructs a SyncService.
func NewSyncService(repo Repository, source RateSource, logger *slog.Logger) *SyncService {
	return &SyncService{repo: repo, source: source, logger: logger}
}

// expectedSnapshot mirrors the calculator's rate selection: the income-tax
// rate is cached only under the libératoire election, else zero.
func expectedSnapshot(rate rates.ActivityRate, e MicroEnterprise) RateSnapshot {
	snap := RateSnapshot{
		SocialRate:      rate.SocialRate,
		CFPRate:         deref(rate.CFPRate),
		Ceiling:         rate.Ceiling,
		VATCeiling:      rate.VATCeiling,
		VATCeilingMajor: rate.VATCeilingMajor,
		VATAlertRatio:   rate.VATAlertRatio,
	}
	if e.IRLiberatoire {
		snap.IRRate = deref(rate.IncomeTaxRate)
	}
	return snap
}

func snapshotDiffs(current, expected RateSnapshot) map[string]FieldDiff {
	diffs := make(map[string]FieldDiff)
	compare := func(field string, from, to float64) {
		if math.Abs(from-to) > rateTolerance {
			diffs[field] = FieldDiff{From: from, To: to}
		}
	}
	compare("social_rate", current.SocialRate, expected.SocialRate)
	compare("ir_rate", current.IRRate, expected.IRRate)
	compare("cfp_rate", current.CFPRate, expected.CFPRate)
	compare("ceiling", current.Ceiling, expected.Ceiling)
	compare("vat_ceiling", current.VATCeiling, expected.VATCeiling)
	compare("vat_ceiling_major", current.VATCeilingMajor, expected.VATCeilingMajor)
	compare("vat_alert_ratio", current.VATAlertRatio, expected.VATAlertRatio)
	return diffs
}

// Sync reconciles one enterprise. Enterprises without a resolvable activity
// code are reported as ignored, never as an error. The snapshot write must
// succeed before Updated is reported true.
func (s *SyncService) Sync(ctx context.Context, e MicroEnterprise) (SyncResult, error) {
	result := SyncResult{EnterpriseID: e.ID}

	if e.ActivityCode == nil || *e.ActivityCode == "" {
		result.Ignored = true
		result.Reason = "no activity code assigned"
		return result, nil
	}

	rate, err := s.source.GetActive(ctx, *e.ActivityCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			result.Ignored = true
			result.Reason = "activity code not present in rate store"
			return result, nil
		}
		return result, err
	}

	expected := expectedSnapshot(rate, e)
	diffs := snapshotDiffs(e.Snapshot, expected)
	if len(diffs) == 0 {
		return result, nil
	}

	if err := s.repo.UpdateSnapshot(ctx, e.ID, expected); err != nil {
		return result, err
	}
	result.Updated = true
	result.Diffs = diffs
	return result, nil
}

// PropagateAll reconciles every enterprise and returns the count whose cached
// snapshot changed. Unmappable enterprises are skipped, not failed.
func (s *SyncService) PropagateAll(ctx context.Context) (int, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, e := range all {
		result, err := s.Sync(ctx, e)
		if err != nil {
			return updated, err
		}
		if result.Updated {
			updated++
			if s.logger != nil {
				s.logger.Info("ceiling snapshot resynced",
					slog.Int64("enterprise_id", e.ID),
					slog.Int("fields", len(result.Diffs)))
			}
		}
	}
	return updated, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
