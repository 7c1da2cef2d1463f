package contrib

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chiffre-app/chiffre/internal/platform/httpx"
	"github.com/chiffre-app/chiffre/internal/shared"
)

// Handler exposes the contribution period endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountEnterpriseRoutes registers the per-enterprise period routes; the
// router mounts them under /enterprises.
func (h *Handler) MountEnterpriseRoutes(r chi.Router) {
	r.Get("/{id}/contributions", h.list)
	r.Post("/{id}/contributions/refresh", h.refresh)
}

// MountRoutes registers the period-scoped routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{periodID}", h.show)
	r.Post("/{periodID}/pay", h.pay)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	periods, err := h.service.ListPeriods(r.Context(), actor.UserID, id)
	if err != nil {
		h.logger.Error("list contribution periods", slog.Int64("enterprise_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": NewPeriodViews(periods)})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.EnsureCurrentPeriod(r.Context(), actor.UserID, id)
	if err != nil {
		h.logger.Error("refresh contribution period", slog.Int64("enterprise_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPeriodView(p))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	periodID, err := pathID(r, "periodID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.GetPeriod(r.Context(), actor.UserID, periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPeriodView(p))
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	periodID, err := pathID(r, "periodID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.MarkPaid(r.Context(), actor.UserID, periodID)
	if err != nil {
		h.logger.Error("mark period paid", slog.Int64("period_id", periodID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPeriodView(p))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s: %w", name, shared.ErrInvalidInput)
	}
	return id, nil
}
