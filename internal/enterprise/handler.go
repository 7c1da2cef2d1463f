package enterprise

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chiffre-app/chiffre/internal/platform/httpx"
	"github.com/chiffre-app/chiffre/internal/shared"
)

// Handler exposes the enterprise endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers enterprise routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/sync", h.syncOne)
	r.Post("/{id}/accounts/{accountID}", h.attachAccount)
	r.Delete("/{id}/accounts/{accountID}", h.detachAccount)
	r.Get("/{id}/categories", h.listCategories)
	r.Post("/{id}/categories", h.createCategory)
	r.Delete("/{id}/categories/{categoryID}", h.deleteCategory)
}

type enterpriseRequest struct {
	Name               string   `json:"name" validate:"required"`
	RegimeLabel        *string  `json:"regime_label"`
	ActivityCode       *string  `json:"activity_code"`
	Frequency          string   `json:"frequency" validate:"omitempty,oneof=MONTHLY QUARTERLY"`
	IRLiberatoire      bool     `json:"ir_liberatoire"`
	Region             string   `json:"region" validate:"omitempty,oneof=NONE ALSACE MOSELLE"`
	ACRERate           *float64 `json:"acre_rate" validate:"omitempty,gte=0,lte=1"`
	CeilingOverride    *float64 `json:"ceiling_override" validate:"omitempty,gte=0"`
	VATCeilingOverride *float64 `json:"vat_ceiling_override" validate:"omitempty,gte=0"`
	CreatedOn          string   `json:"created_on"`
}

func (h *Handler) decodeEnterprise(r *http.Request) (MicroEnterprise, error) {
	var req enterpriseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return MicroEnterprise{}, fmt.Errorf("payload: %w", shared.ErrInvalidInput)
	}
	if err := h.validate.Struct(req); err != nil {
		return MicroEnterprise{}, fmt.Errorf("%v: %w", err, shared.ErrInvalidInput)
	}
	e := MicroEnterprise{
		Name:               req.Name,
		RegimeLabel:        req.RegimeLabel,
		ActivityCode:       req.ActivityCode,
		Frequency:          Frequency(req.Frequency),
		IRLiberatoire:      req.IRLiberatoire,
		Region:             Region(req.Region),
		ACRERate:           req.ACRERate,
		CeilingOverride:    req.CeilingOverride,
		VATCeilingOverride: req.VATCeilingOverride,
	}
	if req.CreatedOn != "" {
		createdOn, err := time.Parse("2006-01-02", req.CreatedOn)
		if err != nil {
			return MicroEnterprise{}, fmt.Errorf("created_on: %w", shared.ErrInvalidInput)
		}
		e.CreatedOn = createdOn
	}
	return e, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	out, err := h.service.List(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("list enterprises", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"enterprises": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	e, err := h.decodeEnterprise(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e.UserID = actor.UserID
	created, err := h.service.Create(r.Context(), e)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Get(r.Context(), actor.UserID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, turnover, err := h.service.VATStatus(r.Context(), actor.UserID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"enterprise":    e,
		"vat_status":    status,
		"year_turnover": turnover,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.decodeEnterprise(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e.ID = id
	e.UserID = actor.UserID
	if e.CreatedOn.IsZero() {
		existing, err := h.service.Get(r.Context(), actor.UserID, id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		e.CreatedOn = existing.CreatedOn
	}
	if err := h.service.Update(r.Context(), e); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor.UserID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) syncOne(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.SyncOne(r.Context(), actor.UserID, id)
	if err != nil {
		h.logger.Error("sync enterprise", slog.Int64("enterprise_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) attachAccount(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := pathID(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.AttachAccount(r.Context(), actor.UserID, accountID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attached": true})
}

func (h *Handler) detachAccount(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	accountID, err := pathID(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DetachAccount(r.Context(), actor.UserID, accountID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"detached": true})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListCategories(r.Context(), actor.UserID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		Name string `json:"name" validate:"required"`
		Kind string `json:"kind" validate:"required,oneof=INCOME EXPENSE"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateCategory(r.Context(), actor.UserID, Category{
		EnterpriseID: id,
		Name:         req.Name,
		Kind:         req.Kind,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), actor.UserID, id, categoryID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s: %w", name, shared.ErrInvalidInput)
	}
	return id, nil
}
