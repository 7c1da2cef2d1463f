package rates

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chiffre-app/chiffre/internal/platform/httpx"
	"github.com/chiffre-app/chiffre/internal/shared"
)

// Handler exposes the rate-store admin endpoints.
type Handler struct {
	logger   *slog.Logger
	store    *Store
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{
		logger:   logger,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountReadRoutes registers the read-only rate routes.
func (h *Handler) MountReadRoutes(r chi.Router) {
	r.Get("/", h.listActive)
}

// MountAdminRoutes registers the draft, apply, history and propagation
// routes. The caller is expected to gate these behind an admin check.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/drafts", h.listDrafts)
	r.Post("/drafts", h.createDraft)
	r.Put("/drafts/{id}", h.updateDraft)
	r.Delete("/drafts/{id}", h.deleteDraft)
	r.Post("/apply", h.applyDraftSet)
	r.Get("/history", h.listHistory)
	r.Post("/history/{id}/rollback", h.rollback)
	r.Post("/propagate", h.propagate)
}

type draftRequest struct {
	Code               string   `json:"code" validate:"required"`
	Label              string   `json:"label" validate:"required"`
	Family             string   `json:"family" validate:"required,oneof=SALE SERVICE LIBERAL FURNISHED_RENTAL"`
	SocialRate         float64  `json:"social_rate" validate:"gte=0"`
	IncomeTaxRate      *float64 `json:"income_tax_rate" validate:"omitempty,gte=0"`
	CFPRate            *float64 `json:"cfp_rate" validate:"omitempty,gte=0"`
	ChamberType        string   `json:"chamber_type" validate:"omitempty,oneof=NONE CMA CCI"`
	ChamberRate        *float64 `json:"chamber_rate" validate:"omitempty,gte=0"`
	ChamberRateAlsace  *float64 `json:"chamber_rate_alsace" validate:"omitempty,gte=0"`
	ChamberRateMoselle *float64 `json:"chamber_rate_moselle" validate:"omitempty,gte=0"`
	Ceiling            float64  `json:"ceiling" validate:"gte=0"`
	VATCeiling         float64  `json:"vat_ceiling" validate:"gte=0"`
	VATCeilingMajor    float64  `json:"vat_ceiling_major" validate:"gte=0"`
	VATAlertRatio      float64  `json:"vat_alert_ratio" validate:"gte=0"`
}

func (req draftRequest) toActivityRate() ActivityRate {
	chamber := ChamberType(req.ChamberType)
	if chamber == "" {
		chamber = ChamberNone
	}
	return ActivityRate{
		Code:               req.Code,
		Label:              req.Label,
		Family:             Family(req.Family),
		SocialRate:         req.SocialRate,
		IncomeTaxRate:      req.IncomeTaxRate,
		CFPRate:            req.CFPRate,
		ChamberType:        chamber,
		ChamberRate:        req.ChamberRate,
		ChamberRateAlsace:  req.ChamberRateAlsace,
		ChamberRateMoselle: req.ChamberRateMoselle,
		Ceiling:            req.Ceiling,
		VATCeiling:         req.VATCeiling,
		VATCeilingMajor:    req.VATCeilingMajor,
		VATAlertRatio:      req.VATAlertRatio,
	}
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list active rates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rates": out})
}

func (h *Handler) listDrafts(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListDrafts(r.Context())
	if err != nil {
		h.logger.Error("list rate drafts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"drafts": out})
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	draft, err := h.store.CreateDraft(r.Context(), req.toActivityRate())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, draft)
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req draftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.store.UpdateDraft(r.Context(), id, req.toActivityRate()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.store.DeleteDraft(r.Context(), id); err != nil {
		h.logger.Error("delete rate draft", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) applyDraftSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	touched, err := h.store.ApplyDraftSet(r.Context(), req.Note)
	if err != nil {
		h.logger.Error("apply draft set", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"touched": touched})
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.store.ListHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error("list rate history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *Handler) rollback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.store.RollbackToHistory(r.Context(), id); err != nil {
		h.logger.Error("rollback rates", slog.Int64("history_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rolled_back": true})
}

func (h *Handler) propagate(w http.ResponseWriter, r *http.Request) {
	updated, err := h.store.PropagateCeilings(r.Context())
	if err != nil {
		h.logger.Error("propagate ceilings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id: %w", shared.ErrInvalidInput)
	}
	return id, nil
}
