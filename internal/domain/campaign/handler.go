package campaign

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/missionhub/missionhub-api/internal/middleware"
	"github.com/missionhub/missionhub-api/internal/pkg/response"
)

// Handler handles campaign HTTP requests
type Handler struct {
	svc *Service
}

// NewHandler creates campaign handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListActive handles GET /campaigns
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	listings, err := h.svc.ListActive(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list campaigns")
		return
	}
	response.OK(w, listings)
}

// Get handles GET /campaigns/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign id")
		return
	}

	c, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCampaignNotFound) {
			response.NotFound(w, "campaign not found")
			return
		}
		response.InternalError(w, "failed to get campaign")
		return
	}
	response.OK(w, c)
}

// ListMine handles GET /campaigns/mine for advertisers
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	advertiserID := middleware.GetUserID(r.Context())
	if advertiserID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	limit, offset := parsePage(r)
	campaigns, err := h.svc.ListByAdvertiser(r.Context(), advertiserID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list campaigns")
		return
	}
	response.OK(w, campaigns)
}

// Pause handles POST /admin/campaigns/{id}/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.flip(w, r, h.svc.Pause, "paused")
}

// Resume handles POST /admin/campaigns/{id}/resume
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.flip(w, r, h.svc.Resume, "active")
}

func (h *Handler) flip(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) error, status string) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign id")
		return
	}

	if err := op(r.Context(), id); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			response.Conflict(w, "campaign is not in a state that allows this change")
			return
		}
		response.InternalError(w, "failed to update campaign")
		return
	}

	response.OK(w, map[string]string{"status": status})
}

// Routes returns member/advertiser campaign routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.ListActive)
	r.Get("/mine", h.ListMine)
	r.Get("/{id}", h.Get)
	return r
}

// AdminRoutes returns admin campaign routes
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminOnly)
	r.Post("/{id}/pause", h.Pause)
	r.Post("/{id}/resume", h.Resume)
	return r
}

func parsePage(r *http.Request) (limit, offset int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
