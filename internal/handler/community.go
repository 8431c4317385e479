package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/search"
	"github.com/potluck-app/potluck/internal/service"
)

// CommunityHandler serves community browse, detail, creation and
// membership endpoints.
type CommunityHandler struct {
	loader      *aggregate.Loader
	communities *service.CommunityService
	logger      *slog.Logger
}

func NewCommunityHandler(loader *aggregate.Loader, communities *service.CommunityService, logger *slog.Logger) *CommunityHandler {
	return &CommunityHandler{
		loader:      loader,
		communities: communities,
		logger:      logger,
	}
}

// HandleList returns all communities, filtered by the optional search
// query parameter.
//
// HTTP: GET /api/communities?search=...
func (h *CommunityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.loader.LoadCommunities(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, search.Communities(views, searchQuery(r)))
}

// HandleGet returns one community with its creator and member count.
//
// HTTP: GET /api/communities/{id}
func (h *CommunityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.loader.LoadCommunity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleRecipes returns the recipes shared into a community.
//
// HTTP: GET /api/communities/{id}/recipes
func (h *CommunityHandler) HandleRecipes(w http.ResponseWriter, r *http.Request) {
	views, err := h.loader.LoadCommunityRecipes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := currentUser(r.Context(), h.loader)
	if err != nil {
		writeError(w, err)
		return
	}
	aggregate.MarkSaved(views, user)
	writeJSON(w, http.StatusOK, views)
}

// HandleCreate creates a community with the signed-in user as creator and
// first member.
//
// HTTP: POST /api/communities
func (h *CommunityHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CommunityName string `json:"communityName"`
		Description   string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	user, err := currentUser(r.Context(), h.loader)
	if err != nil {
		writeError(w, err)
		return
	}

	community, err := h.communities.Create(r.Context(), user, req.CommunityName, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, community)
}

// HandleMembership joins or leaves a community. The client states the end
// state; a stale premise gets 409.
//
// HTTP: PUT /api/communities/{id}/membership   body: {"join": true|false}
func (h *CommunityHandler) HandleMembership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Join bool `json:"join"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.communities.SetMembership(r.Context(), userID, chi.URLParam(r, "id"), req.Join); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"member": req.Join})
}
