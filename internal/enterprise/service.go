package enterprise

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chiffre-app/chiffre/internal/shared"
)

// Service owns enterprise CRUD, account attachment and category management.
// Every operation takes the acting user id explicitly and enforces ownership
// at the repository boundary.
type Service struct {
	repo Repository
	sync *SyncService
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, sync *SyncService) *Service {
	return &Service{repo: repo, sync: sync, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and stores a new enterprise, then seeds its cached
// snapshot from the rate store when an activity code is set.
func (s *Service) Create(ctx context.Context, e MicroEnterprise) (MicroEnterprise, error) {
	if e.Frequency == "" {
		e.Frequency = FrequencyQuarterly
	}
	if e.Region == "" {
		e.Region = RegionNone
	}
	if e.CreatedOn.IsZero() {
		e.CreatedOn = s.now()
	}
	if err := e.Validate(); err != nil {
		return MicroEnterprise{}, err
	}
	created, err := s.repo.Insert(ctx, e)
	if err != nil {
		return MicroEnterprise{}, err
	}
	if s.sync != nil {
		if result, err := s.sync.Sync(ctx, created); err == nil && result.Updated {
			created, err = s.repo.GetOwned(ctx, created.UserID, created.ID)
			if err != nil {
				return MicroEnterprise{}, err
			}
		}
	}
	return created, nil
}

// List returns the user's enterprises.
func (s *Service) List(ctx context.Context, userID int64) ([]MicroEnterprise, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns one owned enterprise.
func (s *Service) Get(ctx context.Context, userID, id int64) (MicroEnterprise, error) {
	return s.repo.GetOwned(ctx, userID, id)
}

// Update replaces the mutable attributes of an owned enterprise and resyncs
// its snapshot, since the activity code or election may have changed.
func (s *Service) Update(ctx context.Context, e MicroEnterprise) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return err
	}
	if s.sync != nil {
		fresh, err := s.repo.GetOwned(ctx, e.UserID, e.ID)
		if err != nil {
			return err
		}
		if _, err := s.sync.Sync(ctx, fresh); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an owned enterprise; attached accounts fall back to
// unattached via the schema's ON DELETE SET NULL.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return s.repo.Delete(ctx, userID, id)
}

// AttachAccount points an owned account at an owned enterprise.
func (s *Service) AttachAccount(ctx context.Context, userID, accountID, enterpriseID int64) error {
	if _, err := s.repo.GetOwned(ctx, userID, enterpriseID); err != nil {
		return err
	}
	return s.repo.SetAccountEnterprise(ctx, userID, accountID, &enterpriseID)
}

// DetachAccount clears the account's enterprise foreign key. Periods already
// computed from this account are not retroactively adjusted; only the next
// pending-period recompute reflects the change.
func (s *Service) DetachAccount(ctx context.Context, userID, accountID int64) error {
	return s.repo.SetAccountEnterprise(ctx, userID, accountID, nil)
}

// VATStatus evaluates the franchise alert for an owned enterprise.
func (s *Service) VATStatus(ctx context.Context, userID, enterpriseID int64) (VATStatus, float64, error) {
	e, err := s.repo.GetOwned(ctx, userID, enterpriseID)
	if err != nil {
		return "", 0, err
	}
	turnover, err := s.repo.YearTurnover(ctx, e.ID, s.now())
	if err != nil {
		return "", 0, err
	}
	return e.VATStatusFor(turnover), turnover, nil
}

// ListCategories returns the categories of an owned enterprise.
func (s *Service) ListCategories(ctx context.Context, userID, enterpriseID int64) ([]Category, error) {
	if _, err := s.repo.GetOwned(ctx, userID, enterpriseID); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, enterpriseID)
}

// CreateCategory adds a category to an owned enterprise.
func (s *Service) CreateCategory(ctx context.Context, userID int64, c Category) (Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Category{}, fmt.Errorf("enterprise: category name is required: %w", shared.ErrInvalidInput)
	}
	if c.Kind != CategoryIncome && c.Kind != CategoryExpense {
		return Category{}, fmt.Errorf("enterprise: category kind must be INCOME or EXPENSE: %w", shared.ErrInvalidInput)
	}
	if _, err := s.repo.GetOwned(ctx, userID, c.EnterpriseID); err != nil {
		return Category{}, err
	}
	return s.repo.InsertCategory(ctx, c)
}

// DeleteCategory removes a category from an owned enterprise.
func (s *Service) DeleteCategory(ctx context.Context, userID, enterpriseID, id int64) error {
	if _, err := s.repo.GetOwned(ctx, userID, enterpriseID); err != nil {
		return err
	}
	return s.repo.DeleteCategory(ctx, enterpriseID, id)
}

// SyncOne exposes a single-enterprise ceiling sync for the admin surface.
func (s *Service) SyncOne(ctx context.Context, userID, enterpriseID int64) (SyncResult, error) {
	e, err := s.repo.GetOwned(ctx, userID, enterpriseID)
	if err != nil {
		return SyncResult{}, err
	}
	if s.sync == nil {
		return SyncResult{EnterpriseID: e.ID, Ignored: true, Reason: "sync not configured"}, nil
	}
	return s.sync.Sync(ctx, e)
}
