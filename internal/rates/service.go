package rates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chiffre-app/chiffre/internal/shared"
)

// Propagator fans a rate change out to the cached enterprise snapshots.
// Implemented by the enterprise ceiling sync; wired in main to avoid a
// package cycle.
type Propagator interface {
	PropagateAll(ctx context.Context) (int, error)
}

// Store is the rate-table service: read projections over active/draft/history
// plus the transactional apply and rollback operations.
type Store struct {
	repo       Repository
	propagator Propagator
	now        func() time.Time
}

// NewStore constructs a Store.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// WithPropagator attaches the ceiling-sync fan-out.
func (s *Store) WithPropagator(p Propagator) *Store {
	s.propagator = p
	return s
}

// WithNow overrides the clock for deterministic tests.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListActive returns the currently applied rate set.
func (s *Store) ListActive(ctx context.Context) ([]ActivityRate, error) {
	return s.repo.ListActive(ctx)
}

// GetActive returns one active rate by activity code.
func (s *Store) GetActive(ctx context.Context, code string) (ActivityRate, error) {
	return s.repo.GetActive(ctx, code)
}

// ListDrafts returns the proposed edits.
func (s *Store) ListDrafts(ctx context.Context) ([]Draft, error) {
	return s.repo.ListDrafts(ctx)
}

// ListHistory returns the most recent applied snapshots, newest first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	return s.repo.ListHistory(ctx, limit)
}

// CreateDraft validates and stores a new draft row.
func (s *Store) CreateDraft(ctx context.Context, ar ActivityRate) (Draft, error) {
	if err := ar.Validate(); err != nil {
		return Draft{}, err
	}
	return s.repo.InsertDraft(ctx, ar)
}

// UpdateDraft validates and replaces an existing draft row.
func (s *Store) UpdateDraft(ctx context.Context, id int64, ar ActivityRate) error {
	if id <= 0 {
		return fmt.Errorf("rates: draft id: %w", shared.ErrInvalidInput)
	}
	if err := ar.Validate(); err != nil {
		return err
	}
	found, err := s.repo.UpdateDraft(ctx, id, ar)
	if err != nil {
		return err
	}
	if !found {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteDraft removes a draft. Deleting a missing id is a silent no-op.
func (s *Store) DeleteDraft(ctx context.Context, id int64) error {
	_, err := s.repo.DeleteDraft(ctx, id)
	return err
}

// ApplyDraftSet atomically snapshots the active set into history, then
// merge-upserts every drafted code into active. Codes present only in active
// are left untouched. Returns the number of codes touched. An empty draft set
// still writes the history checkpoint.
func (s *Store) ApplyDraftSet(ctx context.Context, note string) (int, error) {
	var touched int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		active, err := tx.ListActive(ctx)
		if err != nil {
			return err
		}
		drafts, err := tx.ListDrafts(ctx)
		if err != nil {
			return err
		}

		var notePtr *string
		if trimmed := strings.TrimSpace(note); trimmed != "" {
			notePtr = &trimmed
		}
		now := s.now()
		if _, err := tx.InsertHistory(ctx, notePtr, active, now); err != nil {
			return err
		}

		for _, d := range drafts {
			if err := tx.UpsertActive(ctx, d.ActivityRate, now); err != nil {
				return err
			}
			touched++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return touched, nil
}

// RollbackToHistory atomically replaces the entire active set with the
// snapshot stored at the given history id. History rows are never deleted and
// no pre-rollback checkpoint is written: rollback is a restore, not a new
// checkpoint.
func (s *Store) RollbackToHistory(ctx context.Context, historyID int64) error {
	entry, err := s.repo.GetHistory(ctx, historyID)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.ReplaceActive(ctx, entry.Snapshot, s.now())
	})
}

// PropagateCeilings resynchronizes every enterprise's cached snapshot against
// the active set, returning the count of enterprises that changed.
func (s *Store) PropagateCeilings(ctx context.Context) (int, error) {
	if s.propagator == nil {
		return 0, nil
	}
	return s.propagator.PropagateAll(ctx)
}
