package payout

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

// Handler handles payout HTTP requests
type Handler struct {
	svc *Service
}

// NewHandler creates payout handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreatePayoutRequest is the body for requesting a payout
type CreatePayoutRequest struct {
	AmountKRW int64  `json:"amountKrw" validate:"required,gt=0"`
	BankName  string `json:"bankName" validate:"required,max=100"`
	AccountNo string `json:"accountNo" validate:"required,max=50"`
}

// RejectPayoutRequest is the admin rejection body
type RejectPayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Create handles POST /payouts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p, err := h.svc.Request(r.Context(), memberID, req.AmountKRW, req.BankName, req.AccountNo)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be positive")
		case errors.Is(err, ErrInsufficientBalance):
			response.UnprocessableEntity(w, "INSUFFICIENT_BALANCE", "insufficient available balance")
		default:
			response.InternalError(w, "failed to create payout request")
		}
		return
	}

	response.Created(w, p)
}

// ListMine handles GET /payouts
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	limit, offset := parsePage(r)
	payouts, err := h.svc.ListMine(r.Context(), memberID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list payouts")
		return
	}
	response.OK(w, payouts)
}

// Get handles GET /payouts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}

	p, err := h.svc.GetByID(r.Context(), memberID, payoutID)
	if err != nil {
		switch {
		case errors.Is(err, ErrPayoutNotFound):
			response.NotFound(w, "payout not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "payout belongs to another member")
		default:
			response.InternalError(w, "failed to get payout")
		}
		return
	}
	response.OK(w, p)
}

// ListQueue handles GET /admin/payouts?status=requested
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	if status == "" {
		status = StatusRequested
	}
	switch status {
	case StatusRequested, StatusApproved, StatusRejected, StatusPaid:
	default:
		response.BadRequest(w, "invalid status filter")
		return
	}

	limit, offset := parsePage(r)
	payouts, err := h.svc.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list payouts")
		return
	}
	response.OK(w, payouts)
}

// Approve handles POST /admin/payouts/{id}/approve. The response body carries
// the decided request; a rejection for insufficient balance is a 200 with
// status "rejected", not an error.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}

	p, err := h.svc.Approve(r.Context(), payoutID)
	if err != nil {
		switch {
		case errors.Is(err, ErrPayoutNotFound):
			response.NotFound(w, "payout not found")
		case errors.Is(err, ErrInvalidTransition):
			response.Conflict(w, "payout has already been decided")
		default:
			response.InternalError(w, "failed to approve payout")
		}
		return
	}
	response.OK(w, p)
}

// Reject handles POST /admin/payouts/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}

	var req RejectPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p, err := h.svc.Reject(r.Context(), payoutID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrPayoutNotFound):
			response.NotFound(w, "payout not found")
		case errors.Is(err, ErrInvalidTransition):
			response.Conflict(w, "payout has already been decided")
		default:
			response.InternalError(w, "failed to reject payout")
		}
		return
	}
	response.OK(w, p)
}

// Routes returns member-facing payout routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.ListMine)
	r.Get("/{id}", h.Get)
	return r
}

// AdminRoutes returns admin payout routes
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminOnly)
	r.Get("/", h.ListQueue)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
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
