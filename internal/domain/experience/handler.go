package experience

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

// Handler handles experience HTTP requests
type Handler struct {
	svc *Service
}

// NewHandler creates experience handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateCampaignRequest is the body for opening an experience campaign
type CreateCampaignRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	ProductName string `json:"productName" validate:"required,max=200"`
	TeamSize    int    `json:"teamSize" validate:"required,gte=2,lte=20"`
	MaxTeams    int    `json:"maxTeams" validate:"required,gte=1,lte=100"`
	RewardKRW   int64  `json:"rewardKrw" validate:"required,gt=0"`
	Deadline    string `json:"deadline" validate:"required,datetime=2006-01-02"`
}

// CreateTeamRequest is the body for opening a team
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateCampaign handles POST /experiences for advertisers
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	advertiserID := middleware.GetUserID(r.Context())
	if advertiserID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	deadline, _ := time.Parse("2006-01-02", req.Deadline)
	c, err := h.svc.CreateCampaign(r.Context(), advertiserID, req.Title, req.ProductName,
		req.TeamSize, req.MaxTeams, req.RewardKRW, deadline)
	if err != nil {
		response.InternalError(w, "failed to create experience campaign")
		return
	}

	response.Created(w, c)
}

// ListOpen handles GET /experiences
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	campaigns, err := h.svc.ListOpen(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list experience campaigns")
		return
	}
	response.OK(w, campaigns)
}

// ListTeams handles GET /experiences/{id}/teams
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign id")
		return
	}

	limit, offset := parsePage(r)
	teams, err := h.svc.ListTeams(r.Context(), campaignID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list teams")
		return
	}
	response.OK(w, teams)
}

// CreateTeam handles POST /experiences/{id}/teams
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign id")
		return
	}

	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	t, err := h.svc.CreateTeam(r.Context(), memberID, campaignID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrCampaignNotFound):
			response.NotFound(w, "experience campaign not found")
		case errors.Is(err, ErrCampaignClosed):
			response.Conflict(w, "experience campaign is closed")
		case errors.Is(err, ErrAlreadyMember):
			response.Conflict(w, "already on a team in this campaign")
		case errors.Is(err, ErrTeamLimitReached):
			response.Conflict(w, "campaign team limit reached")
		default:
			response.InternalError(w, "failed to create team")
		}
		return
	}

	response.Created(w, t)
}

// JoinTeam handles POST /experiences/teams/{id}/join
func (h *Handler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	teamID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid team id")
		return
	}

	t, err := h.svc.JoinTeam(r.Context(), memberID, teamID)
	if err != nil {
		switch {
		case errors.Is(err, ErrTeamNotFound):
			response.NotFound(w, "team not found")
		case errors.Is(err, ErrTeamFull):
			response.Conflict(w, "team has no seats remaining")
		case errors.Is(err, ErrAlreadyMember):
			response.Conflict(w, "already on a team in this campaign")
		default:
			response.InternalError(w, "failed to join team")
		}
		return
	}

	response.OK(w, t)
}

// LeaveTeam handles POST /experiences/teams/{id}/leave
func (h *Handler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetUserID(r.Context())
	if memberID == uuid.Nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	teamID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid team id")
		return
	}

	if err := h.svc.LeaveTeam(r.Context(), memberID, teamID); err != nil {
		switch {
		case errors.Is(err, ErrTeamNotFound):
			response.NotFound(w, "team not found")
		case errors.Is(err, ErrInvalidStatus):
			response.Conflict(w, "team is no longer forming")
		case errors.Is(err, ErrNotMember):
			response.Conflict(w, "not a member of this team")
		default:
			response.InternalError(w, "failed to leave team")
		}
		return
	}

	response.OK(w, map[string]string{"status": "left"})
}

// CompleteTeam handles POST /admin/experiences/teams/{id}/complete
func (h *Handler) CompleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid team id")
		return
	}

	if err := h.svc.CompleteTeam(r.Context(), teamID); err != nil {
		switch {
		case errors.Is(err, ErrTeamNotFound):
			response.NotFound(w, "team not found")
		case errors.Is(err, ErrInvalidStatus):
			response.Conflict(w, "team is not formed")
		default:
			response.InternalError(w, "failed to complete team")
		}
		return
	}

	response.OK(w, map[string]string{"status": "completed"})
}

// DisbandTeam handles POST /admin/experiences/teams/{id}/disband
func (h *Handler) DisbandTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid team id")
		return
	}

	if err := h.svc.DisbandTeam(r.Context(), teamID); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			response.Conflict(w, "team is not forming")
			return
		}
		response.InternalError(w, "failed to disband team")
		return
	}

	response.OK(w, map[string]string{"status": "disbanded"})
}

// Routes returns experience routes. Campaign creation is advertiser only;
// the rest is open to any authenticated user.
func (h *Handler) Routes(authMiddleware, advertiserOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.ListOpen)
	r.With(advertiserOnly).Post("/", h.CreateCampaign)
	r.Get("/{id}/teams", h.ListTeams)
	r.Post("/{id}/teams", h.CreateTeam)
	r.Post("/teams/{id}/join", h.JoinTeam)
	r.Post("/teams/{id}/leave", h.LeaveTeam)
	return r
}

// AdminRoutes returns admin experience routes
func (h *Handler) AdminRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminOnly)
	r.Post("/teams/{id}/complete", h.CompleteTeam)
	r.Post("/teams/{id}/disband", h.DisbandTeam)
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
