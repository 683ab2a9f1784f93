package mission

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/missionhub/missionhub-api/internal/middleware"
	"github.com/missionhub/missionhub-api/internal/pkg/response"
	"github.com/missionhub/missionhub-api/internal/pkg/validator"
)

// Handler handles mission HTTP requests
type Handler struct {
	svc *Service
}

// NewHandler creates mission handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Join handles POST /missions/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	dayID, err := uuid.Parse(req.MissionDayID)
	if err != nil {
		response.BadRequest(w, "invalid mission day id")
		return
	}

	p, err := h.svc.Join(r.Context(), memberID, dayID)
	if err != nil {
		switch {
		case errors.Is(err, ErrQuotaExhausted):
			response.Conflict(w, "today's quota for this mission is exhausted")
		case errors.Is(err, ErrAlreadyJoined):
			response.Conflict(w, "already participating in this mission day")
		default:
			response.InternalError(w, "failed to join mission")
		}
		return
	}

	response.Created(w, p)
}

// SubmitEvidence handles POST /missions/participations/{id}/evidence
func (h *Handler) SubmitEvidence(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	participationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid participation id")
		return
	}

	var req SubmitEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p, err := h.svc.SubmitEvidence(r.Context(), memberID, participationID, req.EvidenceURL, req.EvidenceNote)
	if err != nil {
		switch {
		case errors.Is(err, ErrParticipationNotFound):
			response.NotFound(w, "participation not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "participation belongs to another member")
		case errors.Is(err, ErrParticipationExpired):
			response.Conflict(w, "participation deadline has passed")
		case errors.Is(err, ErrInvalidTransition):
			response.Conflict(w, "participation is not awaiting evidence")
		default:
			response.InternalError(w, "failed to submit evidence")
		}
		return
	}

	response.OK(w, p)
}

// Cancel handles POST /missions/participations/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	participationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid participation id")
		return
	}

	if err := h.svc.Cancel(r.Context(), memberID, participationID); err != nil {
		switch {
		case errors.Is(err, ErrParticipationNotFound):
			response.NotFound(w, "participation not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "participation belongs to another member")
		case errors.Is(err, ErrInvalidTransition):
			response.Conflict(w, "participation can no longer be canceled")
		default:
			response.InternalError(w, "failed to cancel participation")
		}
		return
	}

	response.OK(w, map[string]string{"status": "canceled"})
}

// ListMine handles GET /missions/participations
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	limit, offset := parsePage(r)
	participations, err := h.svc.ListMine(r.Context(), memberID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list participations")
		return
	}
	response.OK(w, participations)
}

// GetDay handles GET /missions/days/{id}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	dayID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid mission day id")
		return
	}

	d, err := h.svc.GetDay(r.Context(), dayID)
	if err != nil {
		if errors.Is(err, ErrDayNotFound) {
			response.NotFound(w, "mission day not found")
			return
		}
		response.InternalError(w, "failed to get mission day")
		return
	}
	response.OK(w, d)
}

// ListReviews handles GET /admin/missions/reviews
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	participations, err := h.svc.ListPendingReview(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list review queue")
		return
	}
	response.OK(w, participations)
}

// Review handles POST /admin/missions/participations/{id}/review
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	participationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid participation id")
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p, err := h.svc.Review(r.Context(), participationID, ParticipationStatus(req.Decision), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrParticipationNotFound):
			response.NotFound(w, "participation not found")
		case errors.Is(err, ErrInvalidTransition):
			response.Conflict(w, "participation is not reviewable")
		default:
			response.InternalError(w, "failed to review participation")
		}
		return
	}

	response.OK(w, p)
}

// Routes returns member-facing mission routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/join", h.Join)
	r.Get("/days/{id}", h.GetDay)
	r.Get("/participations", h.ListMine)
	r.Post("/participations/{id}/evidence", h.SubmitEvidence)
	r.Post("/participations/{id}/cancel", h.Cancel)
	return r
}

// AdminRoutes returns admin review routes
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminOnly)
	r.Get("/reviews", h.ListReviews)
	r.Post("/participations/{id}/review", h.Review)
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
