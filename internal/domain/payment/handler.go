package payment

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

// Handler handles payment HTTP requests
type Handler struct {
	svc *Service
}

// NewHandler creates payment handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateTopUpRequest is the body for initiating a top-up
type CreateTopUpRequest struct {
	AmountKRW  int64  `json:"amountKrw" validate:"required,gt=0"`
	Provider   string `json:"provider" validate:"omitempty,max=64"`
	ExternalID string `json:"externalId" validate:"omitempty,max=128"`
}

// WebhookRequest is the provider callback body
type WebhookRequest struct {
	ExternalID string `json:"externalId" validate:"required,max=128"`
	Status     string `json:"status" validate:"required,max=32"`
}

// CreateTopUp handles POST /payments/topup
func (h *Handler) CreateTopUp(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req CreateTopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p, err := h.svc.CreateTopUp(r.Context(), ownerID, req.AmountKRW, req.Provider, req.ExternalID)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "amount must be positive")
			return
		}
		response.InternalError(w, "failed to create payment")
		return
	}

	response.Created(w, p)
}

// History handles GET /payments
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	limit, offset := parsePage(r)
	payments, err := h.svc.History(r.Context(), ownerID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list payments")
		return
	}

	response.OK(w, payments)
}

// Webhook handles POST /webhooks/payment/{provider}
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), provider, req.ExternalID, req.Status); err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			// Acknowledge so the provider stops redelivering for a payment
			// we never issued.
			response.OK(w, map[string]string{"status": "ignored"})
			return
		}
		response.InternalError(w, "failed to process webhook")
		return
	}

	response.OK(w, map[string]string{"status": "accepted"})
}

// Routes returns authenticated payment routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/topup", h.CreateTopUp)
	r.Get("/", h.History)
	return r
}

// WebhookRoutes returns unauthenticated provider callback routes
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{provider}", h.Webhook)
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
