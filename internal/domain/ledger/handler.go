package ledger

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

// Handler handles ledger HTTP requests
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Balance handles GET /ledger/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "failed to get balance")
		return
	}

	response.OK(w, map[string]interface{}{"balance_krw": balance})
}

// Entries handles GET /ledger/entries
func (h *Handler) Entries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := parsePage(r)
	entries, total, err := h.svc.ListEntries(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list ledger entries")
		return
	}

	response.WithMeta(w, entries, response.Meta{Total: total, Limit: limit, Offset: offset})
}

// AdjustRequest for POST /ledger/adjust (admin)
type AdjustRequest struct {
	OwnerID   string `json:"owner_id" validate:"required,uuid4"`
	AmountKRW int64  `json:"amount_krw" validate:"required"`
	RefID     string `json:"ref_id" validate:"omitempty,max=128"`
}

// Adjust handles POST /ledger/adjust (admin)
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		response.BadRequest(w, "invalid owner_id")
		return
	}

	entry, err := h.svc.Adjust(r.Context(), ownerID, req.AmountKRW, req.RefID)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "amount must be non-zero")
			return
		}
		response.InternalError(w, "failed to record adjustment")
		return
	}

	response.Created(w, entry)
}

// Routes returns member/advertiser-facing ledger routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/entries", h.Entries)
	return r
}

// AdminRoutes returns admin ledger routes
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminOnly)
	r.Post("/adjust", h.Adjust)
	return r
}

func parsePage(r *http.Request) (limit, offset int) {
	limit = 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
