package handlers

import (
	"encoding/json"
	"net/http"

	"safetrack-backend/internal/middleware"
	"safetrack-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	profileService *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.profileService.Get(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateProfileRequest carries the editable fields; absent fields are kept.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Phone       *string `json:"phone"`
	PhotoURL    *string `json:"photo_url"`
}

// Update handles PATCH /api/v1/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.profileService.Update(r.Context(), userID, services.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update profile")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// AvatarUploadRequest asks for a pre-signed avatar upload URL
type AvatarUploadRequest struct {
	ContentType string `json:"content_type"`
}

// PresignAvatar handles POST /api/v1/profile/avatar
func (h *ProfileHandler) PresignAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req AvatarUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	upload, err := h.profileService.PresignAvatarUpload(r.Context(), userID, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to presign avatar upload")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, upload)
}

// DeleteAccount handles DELETE /api/v1/profile
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.profileService.DeleteAccount(r.Context(), userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete account")
		respondDomainError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("Account deleted")
	w.WriteHeader(http.StatusNoContent)
}
