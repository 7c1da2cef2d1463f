package enterprise

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chiffre-app/chiffre/internal/rates"
	"github.com/chiffre-app/chiffre/internal/shared"
)

type memoryEnterpriseRepo struct {
	enterprises map[int64]MicroEnterprise
	categories  map[int64]Category
	accounts    map[int64]*int64 // account id -> enterprise id
	turnover    map[int64]float64

	nextID         int64
	nextCategoryID int64
	snapshotErr    error
}

func newMemoryEnterpriseRepo() *memoryEnterpriseRepo {
	return &memoryEnterpriseRepo{
		enterprises: make(map[int64]MicroEnterprise),
		categories:  make(map[int64]Category),
		accounts:    make(map[int64]*int64),
		turnover:    make(map[int64]float64),
	}
}

func (r *memoryEnterpriseRepo) Insert(ctx context.Context, e MicroEnterprise) (MicroEnterprise, error) {
	r.nextID++
	e.ID = r.nextID
	r.enterprises[e.ID] = e
	return e, nil
}

func (r *memoryEnterpriseRepo) ListByUser(ctx context.Context, userID int64) ([]MicroEnterprise, error) {
	var out []MicroEnterprise
	for _, e := range r.enterprises {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryEnterpriseRepo) GetOwned(ctx context.Context, userID, id int64) (MicroEnterprise, error) {
	e, ok := r.enterprises[id]
	if !ok || e.UserID != userID {
		return MicroEnterprise{}, shared.ErrNotFound
	}
	return e, nil
}

func (r *memoryEnterpriseRepo) Update(ctx context.Context, e MicroEnterprise) error {
	existing, ok := r.enterprises[e.ID]
	if !ok || existing.UserID != e.UserID {
		return shared.ErrNotFound
	}
	e.Snapshot = existing.Snapshot
	r.enterprises[e.ID] = e
	return nil
}

func (r *memoryEnterpriseRepo) Delete(ctx context.Context, userID, id int64) error {
	e, ok := r.enterprises[id]
	if !ok || e.UserID != userID {
		return shared.ErrNotFound
	}
	delete(r.enterprises, id)
	return nil
}

func (r *memoryEnterpriseRepo) ListAll(ctx context.Context) ([]MicroEnterprise, error) {
	var out []MicroEnterprise
	for _, e := range r.enterprises {
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryEnterpriseRepo) UpdateSnapshot(ctx context.Context, enterpriseID int64, snap RateSnapshot) error {
	if r.snapshotErr != nil {
		return r.snapshotErr
	}
	e, ok := r.enterprises[enterpriseID]
	if !ok {
		return shared.ErrNotFound
	}
	e.Snapshot = snap
	r.enterprises[enterpriseID] = e
	return nil
}

func (r *memoryEnterpriseRepo) SetAccountEnterprise(ctx context.Context, userID, accountID int64, enterpriseID *int64) error {
	r.accounts[accountID] = enterpriseID
	return nil
}

func (r *memoryEnterpriseRepo) ListCategories(ctx context.Context, enterpriseID int64) ([]Category, error) {
	var out []Category
	for _, c := range r.categories {
		if c.EnterpriseID == enterpriseID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryEnterpriseRepo) InsertCategory(ctx context.Context, c Category) (Category, error) {
	r.nextCategoryID++
	c.ID = r.nextCategoryID
	r.categories[c.ID] = c
	return c, nil
}

func (r *memoryEnterpriseRepo) DeleteCategory(ctx context.Context, enterpriseID, id int64) error {
	c, ok := r.categories[id]
	if !ok || c.EnterpriseID != enterpriseID {
		return shared.ErrNotFound
	}
	delete(r.categories, id)
	return nil
}

func (r *memoryEnterpriseRepo) YearTurnover(ctx context.Context, enterpriseID int64, asOf time.Time) (float64, error) {
	return r.turnover[enterpriseID], nil
}

type staticRateSource map[string]rates.ActivityRate

func (s staticRateSource) GetActive(ctx context.Context, code string) (rates.ActivityRate, error) {
	rate, ok := s[code]
	if !ok {
		return rates.ActivityRate{}, shared.ErrNotFound
	}
	return rate, nil
}

func ptr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func serviceActivity() rates.ActivityRate {
	return rates.ActivityRate{
		Code:          "service",
		Label:         "Prestations de services",
		Family:        rates.FamilyService,
		SocialRate:    0.212,
		IncomeTaxRate: ptr(0.017),
		CFPRate:       ptr(0.003),
		ChamberType:   rates.ChamberNone,
		Ceiling:       77700,
		VATCeiling:    36800,
		VATCeilingMajor: 39100,
		VATAlertRatio: 0.8,
	}
}

func TestSyncDetectsAndAppliesDiffs(t *testing.T) {
	repo := newMemoryEnterpriseRepo()
	source := staticRateSource{"service": serviceActivity()}
	sync := NewSyncService(repo, source, nil)

	e, _ := repo.Insert(context.Background(), MicroEnterprise{
		UserID:        1,
		Name:          "Atelier",
		ActivityCode:  strPtr("service"),
		IRLiberatoire: true,
		Frequency:     FrequencyQuarterly,
		Region:        RegionNone,
		Snapshot:      RateSnapshot{SocialRate: 0.211, Ceiling: 77700},
	})

	result, err := sync.Sync(context.Background(), e)
	require.NoError(t, err)
	require.True(t, result.Updated)
	require.Contains(t, result.Diffs, "social_rate")
	require.Contains(t, result.Diffs, "ir_rate")
	require.InDelta(t, 0.211, result.Diffs["social_rate"].From, 1e-12)
	require.InDelta(t, 0.212, result.Diffs["social_rate"].To, 1e-12)

	synced := repo.enterprises[e.ID]
	require.InDelta(t, 0.212, synced.Snapshot.SocialRate, 1e-12)
	require.InDelta(t, 0.017, synced.Snapshot.IRRate, 1e-12)
	require.InDelta(t, 0.003, synced.Snapshot.CFPRate, 1e-12)
}

func TestSyncIRRateZeroWithoutElection(t *testing.T) {
	repo := newMemoryEnterpriseRepo()
	source := staticRateSource{"service": serviceActivity()}
	sync := NewSyncService(repo, source, nil)

	e, _ := repo.Insert(context.Background(), MicroEnterprise{
		UserID:       1,
		Name:         "Atelier",
		ActivityCode: strPtr("service"),
		Frequency:    FrequencyQuarterly,
		Region:       RegionNone,
	})

	result, err := sync.Sync(context.Background(), e)
	require.NoError(t, err)
	require.True(t, result.Updated)
	require.Zero(t, repo.enterprises[e.ID].Snapshot.IRRate)
}

func TestSyncWithinToleranceIsNoop(t *testing.T) {
	repo := newMemoryEnterpriseRepo()
	source := staticRateSource{"service": serviceActivity()}
	sync := NewSyncService(repo, source, nil)

	e, _ := repo.Insert(context.Background(), MicroEnterprise{
		UserID:       1,
		Name:         "Atelier",
		ActivityCode: strPtr("service"),
		Frequency:    FrequencyQuarterly,
		Region:       RegionNone,
		Snapshot: RateSnapshot{
			SocialRate:      0.212 + 1e-12,
			CFPRate:         0.003,
			Ceiling:         77700,
			VATCeiling:      36800,
			VATCeilingMajor: 39100,
			VATAlertRatio:   0.8,
		},
	})

	result, err := sync.Sync(context.Background(), e)
	require.NoError(t, err)
	require.False(t, result.Updated)
	require.Empty(t, result.Diffs)
}

func TestSyncUnknownCodeIgnored(t *testing.T) {
	repo := newMemoryEnterpriseRepo()
	sync := NewSyncService(repo, staticRateSource{}, nil)

	e, _ := repo.Insert(context.Background(), MicroEnterprise{
		UserID:       1,
		Name:         "Atelier",
		ActivityCode: strPtr("ghost"),
		Frequency:    FrequencyQuarterly,
		Region:       RegionNone,
	})

	result, err := sync.Sync(context.Background(), e)
	require.NoError(t, err)
	require.True(t, result.Ignored)
	require.False(t, result.Updated)
	require.NotEmpty(t, result.Reason)
}

func TestSyncFailedWriteNotReportedUpdated(t *testing.T) {
	repo := newMemoryEnterpriseRepo()
	repo.snapshotErr = context.DeadlineExceeded
	source := staticRateSource{"service": serviceActivity()}
	sync := NewSyncService(repo, source, nil)

	e, _ := repo.Insert(context.Background(), MicroEnterprise{
		UserID:       1,
		Name:         "Atelier",
		ActivityCode: strPtr("service"),
		Frequency:    FrequencyQuarterly,
		Region:       RegionNone,
	})

	result, err := sync.Sync(context.Background(), e)
	require.Error(t, err)
	require.False(t, result.Updated)
}

func TestOwnershipIsolation(t *testing.T) {
	repo := newMemoryEnterpriseRepo()
	service := NewService(repo, nil)

	mine, err := service.Create(context.Background(), MicroEnterprise{UserID: 1, Name: "Mine"})
	require.NoError(t, err)

	_, err = service.Get(context.Background(), 2, mine.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = service.Delete(context.Background(), 2, mine.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = service.CreateCategory(context.Background(), 2, Category{
		EnterpriseID: mine.ID, Name: "Conseil", Kind: CategoryIncome,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVATStatusThresholds(t *testing.T) {
	e := MicroEnterprise{Snapshot: RateSnapshot{
		VATCeiling:      36800,
		VATCeilingMajor: 39100,
		VATAlertRatio:   0.8,
	}}

	require.Equal(t, VATOK, e.VATStatusFor(20000))
	require.Equal(t, VATApproaching, e.VATStatusFor(30000))
	require.Equal(t, VATExceeded, e.VATStatusFor(37000))
	require.Equal(t, VATMajorExceeded, e.VATStatusFor(40000))

	override := e
	override.VATCeilingOverride = ptr(50000)
	require.Equal(t, VATOK, override.VATStatusFor(37000))
}
