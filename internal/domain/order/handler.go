package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/missionhub/missionhub-api/internal/middleware"
	"github.com/missionhub/missionhub-api/internal/pkg/response"
	"github.com/missionhub/missionhub-api/internal/pkg/validator"
)

// Handler handles product order HTTP requests
type Handler struct {
	svc *Service
}

// NewHandler creates order handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateOrderRequest is the body for placing a product order
type CreateOrderRequest struct {
	CampaignTitle string `json:"campaignTitle" validate:"required,max=200"`
	ProductName   string `json:"productName" validate:"required,max=200"`
	BudgetKRW     int64  `json:"budgetKrw" validate:"required,gt=0"`
	DailyTarget   int    `json:"dailyTarget" validate:"required,gt=0"`
	RewardKRW     int64  `json:"rewardKrw" validate:"required,gt=0"`
	StartDate     string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate       string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// Create handles POST /orders
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	advertiserID := middleware.GetUserID(r.Context())
	if advertiserID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)

	o, err := h.svc.Create(r.Context(), advertiserID, req.CampaignTitle, req.ProductName,
		req.BudgetKRW, req.DailyTarget, req.RewardKRW, start, end)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidBudget), errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrInvalidPeriod):
			response.BadRequest(w, err.Error())
		default:
			response.InternalError(w, "failed to create order")
		}
		return
	}

	response.Created(w, o)
}

// PayWithPoints handles POST /orders/{id}/pay-with-points
func (h *Handler) PayWithPoints(w http.ResponseWriter, r *http.Request) {
	advertiserID := middleware.GetUserID(r.Context())
	if advertiserID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	if err := h.svc.PayWithPoints(r.Context(), advertiserID, orderID); err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			response.NotFound(w, "order not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "order belongs to another advertiser")
		case errors.Is(err, ErrNotPending):
			response.Conflict(w, "order is not pending")
		case errors.Is(err, ErrInsufficientBalance):
			response.UnprocessableEntity(w, "INSUFFICIENT_BALANCE", "insufficient balance")
		default:
			response.InternalError(w, "failed to pay order")
		}
		return
	}

	response.OK(w, map[string]string{"status": "fulfilled"})
}

// Cancel handles POST /orders/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	advertiserID := middleware.GetUserID(r.Context())
	if advertiserID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	if err := h.svc.Cancel(r.Context(), advertiserID, orderID); err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			response.NotFound(w, "order not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "order belongs to another advertiser")
		case errors.Is(err, ErrNotPending):
			response.Conflict(w, "order is not pending")
		default:
			response.InternalError(w, "failed to cancel order")
		}
		return
	}

	response.OK(w, map[string]string{"status": "canceled"})
}

// Get handles GET /orders/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	advertiserID := middleware.GetUserID(r.Context())
	if advertiserID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	o, err := h.svc.GetByID(r.Context(), advertiserID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			response.NotFound(w, "order not found")
		case errors.Is(err, ErrNotOwner):
			response.Forbidden(w, "order belongs to another advertiser")
		default:
			response.InternalError(w, "failed to get order")
		}
		return
	}

	response.OK(w, o)
}

// List handles GET /orders
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	advertiserID := middleware.GetUserID(r.Context())
	if advertiserID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	limit, offset := parsePage(r)
	orders, err := h.svc.ListByAdvertiser(r.Context(), advertiserID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list orders")
		return
	}

	response.OK(w, orders)
}

// Fulfill handles POST /admin/orders/{id}/fulfill
func (h *Handler) Fulfill(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	if err := h.svc.Fulfill(r.Context(), orderID); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			response.NotFound(w, "order not found")
			return
		}
		response.InternalError(w, "failed to fulfill order")
		return
	}

	response.OK(w, map[string]string{"status": "fulfilled"})
}

// Routes returns advertiser-facing order routes
func (h *Handler) Routes(authMiddleware, advertiserOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(advertiserOnly)
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/pay-with-points", h.PayWithPoints)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}

// AdminRoutes returns admin order routes
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminOnly)
	r.Post("/{id}/fulfill", h.Fulfill)
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
