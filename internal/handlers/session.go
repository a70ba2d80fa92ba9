package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"safetrack-backend/internal/middleware"
	"safetrack-backend/internal/models"
	"safetrack-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	sessionService *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// CreateSessionRequest represents the request body for creating a session
type CreateSessionRequest struct {
	Title                  string                  `json:"title"`
	Description            string                  `json:"description"`
	Type                   models.SessionType      `json:"type"`
	Password               string                  `json:"password"`
	RadiusLimit            *float64                `json:"radius_limit"`
	LocationSharingEnabled bool                    `json:"location_sharing_enabled"`
	MaxParticipants        *int                    `json:"max_participants"`
	Tags                   []string                `json:"tags"`
	Settings               *models.SessionSettings `json:"settings"`
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.sessionService.Create(r.Context(), userID, services.CreateSessionInput{
		Title:                  req.Title,
		Description:            req.Description,
		Type:                   req.Type,
		Password:               req.Password,
		RadiusLimit:            req.RadiusLimit,
		LocationSharingEnabled: req.LocationSharingEnabled,
		MaxParticipants:        req.MaxParticipants,
		Tags:                   req.Tags,
		Settings:               req.Settings,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create session")
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, sess)
}

// List handles GET /api/v1/sessions. The filter query parameter selects
// "active" or "recent" views; the default is everything the caller belongs to.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var (
		sessions []*models.Session
		err      error
	)
	switch r.URL.Query().Get("filter") {
	case "active":
		sessions, err = h.sessionService.ListActive(ctx, userID)
	case "recent":
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
				limit = n
			}
		}
		sessions, err = h.sessionService.ListRecent(ctx, userID, limit)
	default:
		sessions, err = h.sessionService.ListMine(ctx, userID)
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// Search handles GET /api/v1/sessions/search?q=prefix
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, "q is required", http.StatusBadRequest)
		return
	}

	sessions, err := h.sessionService.Search(r.Context(), userID, q)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// Get handles GET /api/v1/sessions/{code}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")

	sess, err := h.sessionService.Get(r.Context(), userID, code)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// UpdateSessionRequest represents the request body for updating a session
type UpdateSessionRequest struct {
	Title                  string                 `json:"title"`
	Description            string                 `json:"description"`
	Password               string                 `json:"password"`
	RadiusLimit            *float64               `json:"radius_limit"`
	LocationSharingEnabled bool                   `json:"location_sharing_enabled"`
	MaxParticipants        *int                   `json:"max_participants"`
	Tags                   []string               `json:"tags"`
	Settings               models.SessionSettings `json:"settings"`
}

// Update handles PUT /api/v1/sessions/{code}
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")

	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.sessionService.Update(r.Context(), userID, code, services.UpdateSessionInput{
		Title:                  req.Title,
		Description:            req.Description,
		Password:               req.Password,
		RadiusLimit:            req.RadiusLimit,
		LocationSharingEnabled: req.LocationSharingEnabled,
		MaxParticipants:        req.MaxParticipants,
		Tags:                   req.Tags,
		Settings:               req.Settings,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("code", code).Msg("Failed to update session")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// End handles POST /api/v1/sessions/{code}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")

	if err := h.sessionService.End(r.Context(), userID, code); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("code", code).Msg("Failed to end session")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/sessions/{code}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")

	if err := h.sessionService.Delete(r.Context(), userID, code); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("code", code).Msg("Failed to delete session")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JoinRequest represents the request body for joining a session
type JoinRequest struct {
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Join handles POST /api/v1/sessions/{code}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.sessionService.Join(r.Context(), userID, code, req.Password, req.DisplayName)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("code", code).Msg("Failed to join session")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// Leave handles POST /api/v1/sessions/{code}/leave
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")

	if err := h.sessionService.Leave(r.Context(), userID, code); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rejoin handles POST /api/v1/sessions/{code}/rejoin
func (h *SessionHandler) Rejoin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")

	if err := h.sessionService.Rejoin(r.Context(), userID, code); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Alerts handles GET /api/v1/sessions/{code}/alerts
func (h *SessionHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")

	alerts, err := h.sessionService.Alerts(r.Context(), userID, code)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if alerts == nil {
		alerts = []models.RadiusAlert{}
	}
	respondJSON(w, http.StatusOK, alerts)
}

// LocationUpdateRequest carries a position fix for the caller's own record
type LocationUpdateRequest struct {
	Fix models.Fix `json:"fix"`
}

// UpdateLocation handles PUT /api/v1/sessions/{code}/location. The admin's
// fix updates the session reference point, anyone else's their own record.
func (h *SessionHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	code := chi.URLParam(r, "code")

	var req LocationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.sessionService.Get(ctx, userID, code)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if sess.IsAdmin(userID) {
		err = h.sessionService.UpdateAdminLocation(ctx, userID, code, req.Fix)
	} else {
		err = h.sessionService.UpdateParticipantLocation(ctx, userID, code, req.Fix)
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusRequest sets a participant's status
type StatusRequest struct {
	Status models.ParticipantStatus `json:"status"`
}

// UpdateParticipantStatus handles PUT /api/v1/sessions/{code}/participants/{participant_id}/status
func (h *SessionHandler) UpdateParticipantStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")
	participantID := chi.URLParam(r, "participant_id")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sessionService.UpdateParticipantStatus(r.Context(), userID, code, participantID, req.Status); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RoleRequest sets a participant's role
type RoleRequest struct {
	Role models.ParticipantRole `json:"role"`
}

// UpdateParticipantRole handles PUT /api/v1/sessions/{code}/participants/{participant_id}/role
func (h *SessionHandler) UpdateParticipantRole(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	code := chi.URLParam(r, "code")
	participantID := chi.URLParam(r, "participant_id")

	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sessionService.UpdateParticipantRole(r.Context(), userID, code, participantID, req.Role); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("code", code).Msg("Failed to update participant role")
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
