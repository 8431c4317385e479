package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/service"
)

// ProfileHandler serves the signed-in user's profile and its edit endpoint.
type ProfileHandler struct {
	loader   *aggregate.Loader
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(loader *aggregate.Loader, profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		loader:   loader,
		profiles: profiles,
		logger:   logger,
	}
}

// HandleGet returns the signed-in user's profile document.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, apperror.AuthRequired())
		return
	}
	user, err := h.loader.LoadUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate edits the signed-in user's profile.
//
// HTTP: PUT /api/profile
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username      string `json:"username"`
		FirstName     string `json:"firstName"`
		LastName      string `json:"lastName"`
		Bio           string `json:"bio"`
		ProfilePicURL string `json:"profilePicUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.profiles.Update(r.Context(), userID, service.ProfileInput{
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Bio:           req.Bio,
		ProfilePicURL: req.ProfilePicURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleRecipes returns the signed-in user's own submissions.
//
// HTTP: GET /api/profile/recipes
func (h *ProfileHandler) HandleRecipes(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, apperror.AuthRequired())
		return
	}
	views, err := h.loader.LoadUserRecipes(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleCommunities returns the communities the signed-in user belongs to.
//
// HTTP: GET /api/profile/communities
func (h *ProfileHandler) HandleCommunities(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, apperror.AuthRequired())
		return
	}
	views, err := h.loader.LoadUserCommunities(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}
