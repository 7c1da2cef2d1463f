package rates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chiffre-app/chiffre/internal/shared"
)

type memoryRateRepo struct {
	active  map[string]ActivityRate
	drafts  map[int64]Draft
	history map[int64]HistoryEntry

	nextDraftID   int64
	nextHistoryID int64
}

func newMemoryRateRepo() *memoryRateRepo {
	return &memoryRateRepo{
		active:  make(map[string]ActivityRate),
		drafts:  make(map[int64]Draft),
		history: make(map[int64]HistoryEntry),
	}
}

func (r *memoryRateRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryRateTx{repo: r})
}

func (r *memoryRateRepo) ListActive(ctx context.Context) ([]ActivityRate, error) {
	var out []ActivityRate
	for _, ar := range r.active {
		out = append(out, ar)
	}
	return out, nil
}

func (r *memoryRateRepo) GetActive(ctx context.Context, code string) (ActivityRate, error) {
	ar, ok := r.active[code]
	if !ok {
		return ActivityRate{}, shared.ErrNotFound
	}
	return ar, nil
}

func (r *memoryRateRepo) ListDrafts(ctx context.Context) ([]Draft, error) {
	var out []Draft
	for _, d := range r.drafts {
		out = append(out, d)
	}
	return out, nil
}

func (r *memoryRateRepo) InsertDraft(ctx context.Context, ar ActivityRate) (Draft, error) {
	for _, d := range r.drafts {
		if d.Code == ar.Code {
			return Draft{}, shared.ErrDuplicate
		}
	}
	r.nextDraftID++
	d := Draft{ID: r.nextDraftID, ActivityRate: ar}
	r.drafts[d.ID] = d
	return d, nil
}

func (r *memoryRateRepo) UpdateDraft(ctx context.Context, id int64, ar ActivityRate) (bool, error) {
	d, ok := r.drafts[id]
	if !ok {
		return false, nil
	}
	d.ActivityRate = ar
	r.drafts[id] = d
	return true, nil
}

func (r *memoryRateRepo) DeleteDraft(ctx context.Context, id int64) (int64, error) {
	if _, ok := r.drafts[id]; !ok {
		return 0, nil
	}
	delete(r.drafts, id)
	return 1, nil
}

func (r *memoryRateRepo) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for _, h := range r.history {
		out = append(out, h)
	}
	return out, nil
}

func (r *memoryRateRepo) GetHistory(ctx context.Context, id int64) (HistoryEntry, error) {
	h, ok := r.history[id]
	if !ok {
		return HistoryEntry{}, shared.ErrNotFound
	}
	return h, nil
}

type memoryRateTx struct {
	repo *memoryRateRepo
}

func (t *memoryRateTx) ListActive(ctx context.Context) ([]ActivityRate, error) {
	return t.repo.ListActive(ctx)
}

func (t *memoryRateTx) ListDrafts(ctx context.Context) ([]Draft, error) {
	return t.repo.ListDrafts(ctx)
}

func (t *memoryRateTx) InsertHistory(ctx context.Context, note *string, snapshot []ActivityRate, appliedAt time.Time) (int64, error) {
	t.repo.nextHistoryID++
	t.repo.history[t.repo.nextHistoryID] = HistoryEntry{
		ID:        t.repo.nextHistoryID,
		Note:      note,
		AppliedAt: appliedAt,
		Snapshot:  append([]ActivityRate(nil), snapshot...),
	}
	return t.repo.nextHistoryID, nil
}

func (t *memoryRateTx) UpsertActive(ctx context.Context, ar ActivityRate, now time.Time) error {
	ar.UpdatedAt = now
	t.repo.active[ar.Code] = ar
	return nil
}

func (t *memoryRateTx) ReplaceActive(ctx context.Context, rs []ActivityRate, now time.Time) error {
	t.repo.active = make(map[string]ActivityRate)
	for _, ar := range rs {
		if err := t.UpsertActive(ctx, ar, now); err != nil {
			return err
		}
	}
	return nil
}

func serviceRate(code string, social float64) ActivityRate {
	return ActivityRate{
		Code:        code,
		Label:       "Prestations de services",
		Family:      FamilyService,
		SocialRate:  social,
		ChamberType: ChamberNone,
		Ceiling:     77700,
		VATCeiling:  36800,
	}
}

func TestApplyDraftSetMergesIntoActive(t *testing.T) {
	repo := newMemoryRateRepo()
	store := NewStore(repo)

	untouched := serviceRate("vente", 0.123)
	repo.active["vente"] = untouched
	repo.active["service"] = serviceRate("service", 0.211)

	draft := serviceRate("service", 0.212)
	_, err := store.CreateDraft(context.Background(), draft)
	require.NoError(t, err)

	touched, err := store.ApplyDraftSet(context.Background(), "2025 rates")
	require.NoError(t, err)
	require.Equal(t, 1, touched)

	require.InDelta(t, 0.212, repo.active["service"].SocialRate, 1e-12)
	require.Equal(t, untouched.SocialRate, repo.active["vente"].SocialRate)
	require.Len(t, repo.history, 1)
	require.Len(t, repo.history[1].Snapshot, 2)
	require.Equal(t, "2025 rates", *repo.history[1].Note)
}

func TestApplyDraftSetEmptyStillWritesHistory(t *testing.T) {
	repo := newMemoryRateRepo()
	store := NewStore(repo)
	repo.active["service"] = serviceRate("service", 0.211)

	touched, err := store.ApplyDraftSet(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 0, touched)
	require.Len(t, repo.history, 1)
	require.Nil(t, repo.history[1].Note)
	require.Len(t, repo.history[1].Snapshot, 1)
}

func TestRollbackRestoresSnapshotWithoutDeletingHistory(t *testing.T) {
	repo := newMemoryRateRepo()
	store := NewStore(repo)
	repo.active["service"] = serviceRate("service", 0.211)

	_, err := store.ApplyDraftSet(context.Background(), "checkpoint")
	require.NoError(t, err)

	_, err = store.CreateDraft(context.Background(), serviceRate("service", 0.220))
	require.NoError(t, err)
	_, err = store.CreateDraft(context.Background(), serviceRate("liberal", 0.246))
	require.NoError(t, err)
	_, err = store.ApplyDraftSet(context.Background(), "bad edit")
	require.NoError(t, err)
	require.Len(t, repo.active, 2)

	require.NoError(t, store.RollbackToHistory(context.Background(), 1))

	require.Len(t, repo.active, 1)
	require.InDelta(t, 0.211, repo.active["service"].SocialRate, 1e-12)
	// Rollback deletes no history rows and writes no new checkpoint.
	require.Len(t, repo.history, 2)
}

func TestRollbackUnknownHistory(t *testing.T) {
	store := NewStore(newMemoryRateRepo())
	err := store.RollbackToHistory(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateDraftValidation(t *testing.T) {
	store := NewStore(newMemoryRateRepo())

	bad := serviceRate("", 0.211)
	_, err := store.CreateDraft(context.Background(), bad)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	neg := serviceRate("service", 0.211)
	negRate := -0.01
	neg.CFPRate = &negRate
	_, err = store.CreateDraft(context.Background(), neg)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	// A present-but-zero optional rate is valid and distinct from absent.
	zero := serviceRate("service", 0.211)
	zeroRate := 0.0
	zero.IncomeTaxRate = &zeroRate
	_, err = store.CreateDraft(context.Background(), zero)
	require.NoError(t, err)
}

func TestDeleteMissingDraftIsNoop(t *testing.T) {
	store := NewStore(newMemoryRateRepo())
	require.NoError(t, store.DeleteDraft(context.Background(), 404))
}
