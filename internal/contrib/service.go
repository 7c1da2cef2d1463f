package contrib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chiffre-app/chiffre/internal/enterprise"
	"github.com/chiffre-app/chiffre/internal/rates"
	"github.com/chiffre-app/chiffre/internal/shared"
)

// EnterpriseSource is the slice of the enterprise module contrib needs:
// ownership-scoped reads for user flows, the full listing for scheduled
// refreshes.
type EnterpriseSource interface {
	GetOwned(ctx context.Context, userID, id int64) (enterprise.MicroEnterprise, error)
	ListAll(ctx context.Context) ([]enterprise.MicroEnterprise, error)
}

// RateSource resolves an activity code to its currently active rate.
type RateSource interface {
	GetActive(ctx context.Context, code string) (rates.ActivityRate, error)
}

// Service drives the period lifecycle: ensure/recompute on read, freeze on
// payment, batch refresh from the worker.
type Service struct {
	repo        Repository
	enterprises EnterpriseSource
	rateSource  RateSource
	now         func() time.Time
}

func NewService(repo Repository, enterprises EnterpriseSource, rateSource RateSource) *Service {
	return &Service{
		repo:        repo,
		enterprises: enterprises,
		rateSource:  rateSource,
		now:         time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// EnsureCurrentPeriod resolves the declaration window containing now,
// recomputes its turnover and dues, and upserts it. A period that was paid
// in the meantime is returned as stored, untouched.
func (s *Service) EnsureCurrentPeriod(ctx context.Context, userID, enterpriseID int64) (Period, error) {
	e, err := s.enterprises.GetOwned(ctx, userID, enterpriseID)
	if err != nil {
		return Period{}, err
	}
	return s.refresh(ctx, e, s.now())
}

// refresh recomputes the window containing ref for one enterprise. The
// write is conditional on the row still being pending; when it is not, the
// stored row wins and is returned verbatim.
func (s *Service) refresh(ctx context.Context, e enterprise.MicroEnterprise, ref time.Time) (Period, error) {
	bounds := ResolvePeriod(ref, e.Frequency)

	accountIDs, err := s.repo.AccountIDs(ctx, e.ID)
	if err != nil {
		return Period{}, err
	}
	totals, err := s.repo.Aggregate(ctx, accountIDs, bounds.Start, bounds.End)
	if err != nil {
		return Period{}, err
	}

	rate, err := s.resolveRate(ctx, e)
	if err != nil {
		return Period{}, err
	}
	dues := ComputeDues(rate, e, totals.Turnover)

	candidate := Period{
		EnterpriseID: e.ID,
		Key:          bounds.Key,
		Start:        bounds.Start,
		End:          bounds.End,
		DueDate:      bounds.DueDate,
		Turnover:     totals.Turnover,
		SocialRate:   dues.SocialRate,
		SocialDue:    dues.SocialDue,
		IRRate:       dues.IRRate,
		IRDue:        dues.IRDue,
		CFPRate:      dues.CFPRate,
		CFPDue:       dues.CFPDue,
		ChamberType:  dues.ChamberType,
		ChamberRate:  dues.ChamberRate,
		ChamberDue:   dues.ChamberDue,
		TotalDue:     dues.TotalDue,
		Status:       StatusPending,
	}

	stored, written, err := s.repo.UpsertPending(ctx, candidate, s.now())
	if err != nil {
		return Period{}, err
	}
	if !written {
		return s.repo.GetByKey(ctx, e.ID, bounds.Key)
	}
	return stored, nil
}

// resolveRate maps the enterprise's activity code to its active rate. No
// code, or a code absent from the store, yields nil: dues come out zero
// rather than failing the whole period.
func (s *Service) resolveRate(ctx context.Context, e enterprise.MicroEnterprise) (*rates.ActivityRate, error) {
	if e.ActivityCode == nil || *e.ActivityCode == "" {
		return nil, nil
	}
	rate, err := s.rateSource.GetActive(ctx, *e.ActivityCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

// ListPeriods returns the enterprise's periods, newest first, after making
// sure the current one exists and is fresh.
func (s *Service) ListPeriods(ctx context.Context, userID, enterpriseID int64) ([]Period, error) {
	if _, err := s.EnsureCurrentPeriod(ctx, userID, enterpriseID); err != nil {
		return nil, err
	}
	return s.repo.ListByEnterprise(ctx, enterpriseID)
}

// MarkPaid freezes a pending period. Paying an already-paid period is a
// no-op returning the frozen row; a missing or foreign period is not found.
func (s *Service) MarkPaid(ctx context.Context, userID, periodID int64) (Period, error) {
	affected, err := s.repo.MarkPaidPending(ctx, userID, periodID, s.now())
	if err != nil {
		return Period{}, err
	}
	p, err := s.repo.GetOwned(ctx, userID, periodID)
	if err != nil {
		return Period{}, err
	}
	if affected == 0 && p.Status == StatusPending {
		return Period{}, fmt.Errorf("period %d: %w", periodID, shared.ErrDuplicate)
	}
	return p, nil
}

// GetPeriod returns one owned period without recomputing it.
func (s *Service) GetPeriod(ctx context.Context, userID, periodID int64) (Period, error) {
	return s.repo.GetOwned(ctx, userID, periodID)
}

// RefreshAll recomputes the current period for every enterprise. Used by the
// scheduled job; per-enterprise failures are collected so one bad row does
// not starve the rest.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	all, err := s.enterprises.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	ref := s.now()
	var refreshed int
	var errs []error
	for _, e := range all {
		if _, err := s.refresh(ctx, e, ref); err != nil {
			errs = append(errs, fmt.Errorf("enterprise %d: %w", e.ID, err))
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}
