// Package jobs defines the background task types and the asynq worker that
// runs them: scheduled contribution-period refreshes and rate snapshot
// propagation.
package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/chiffre-app/chiffre/internal/contrib"
	"github.com/chiffre-app/chiffre/internal/observability"
	"github.com/chiffre-app/chiffre/internal/rates"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskContribRefresh recomputes the current contribution period for
	// every enterprise.
	TaskContribRefresh = "contrib:refresh"
	// TaskRatesPropagate pushes the active rate table into every
	// enterprise's cached snapshot.
	TaskRatesPropagate = "rates:propagate"
)

// NewContribRefreshTask constructs the periodic refresh task. It carries no
// payload; the handler always sweeps everything.
func NewContribRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskContribRefresh, nil)
}

// NewRatesPropagateTask constructs the rate propagation task.
func NewRatesPropagateTask() *asynq.Task {
	return asynq.NewTask(TaskRatesPropagate, nil)
}

// HandleContribRefresh returns the handler for TaskContribRefresh.
func HandleContribRefresh(logger *slog.Logger, service *contrib.Service, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		refreshed, err := service.RefreshAll(ctx)
		if metrics != nil {
			metrics.PeriodsRefreshed.Add(float64(refreshed))
		}
		if err != nil {
			logger.Error("contribution refresh incomplete",
				slog.Int("refreshed", refreshed), slog.Any("error", err))
			return err
		}
		logger.Info("contribution refresh done", slog.Int("refreshed", refreshed))
		return nil
	}
}

// HandleRatesPropagate returns the handler for TaskRatesPropagate.
func HandleRatesPropagate(logger *slog.Logger, store *rates.Store, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		updated, err := store.PropagateCeilings(ctx)
		if metrics != nil {
			metrics.RateSyncUpdates.Add(float64(updated))
		}
		if err != nil {
			logger.Error("rate propagation incomplete",
				slog.Int("updated", updated), slog.Any("error", err))
			return err
		}
		logger.Info("rate propagation done", slog.Int("updated", updated))
		return nil
	}
}
