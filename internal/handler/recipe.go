package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/model"
	"github.com/potluck-app/potluck/internal/search"
	"github.com/potluck-app/potluck/internal/service"
)

// RecipeHandler serves the recipe feed, detail, CRUD and save endpoints.
type RecipeHandler struct {
	loader     *aggregate.Loader
	recipes    *service.RecipeService
	favourites *service.FavouriteService
	logger     *slog.Logger
}

func NewRecipeHandler(loader *aggregate.Loader, recipes *service.RecipeService, favourites *service.FavouriteService, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{
		loader:     loader,
		recipes:    recipes,
		favourites: favourites,
		logger:     logger,
	}
}

// currentUser resolves the session's user profile, nil for anonymous
// requests. A session pointing at a deleted profile counts as anonymous.
func currentUser(ctx context.Context, loader *aggregate.Loader) (*model.User, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, nil
	}
	user, err := loader.LoadUser(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func searchQuery(r *http.Request) search.Query {
	return search.Query{
		Text: r.URL.Query().Get("search"),
		Tag:  r.URL.Query().Get("tag"),
	}
}

// HandleList returns the recipe feed, filtered by the optional search and
// tag query parameters, with Saved flags for the signed-in viewer.
//
// HTTP: GET /api/recipes?search=...&tag=...
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.loader.LoadRecipes(r.Context())
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

	writeJSON(w, http.StatusOK, search.Recipes(views, searchQuery(r)))
}

// HandleGet returns one recipe with its author joined.
//
// HTTP: GET /api/recipes/{id}
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.loader.LoadRecipe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := currentUser(r.Context(), h.loader)
	if err != nil {
		writeError(w, err)
		return
	}
	if user != nil {
		view.Saved = user.HasFavourite(view.ID)
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSaved returns the signed-in user's saved recipes. Favourites whose
// recipe has since been deleted are dropped from the response.
//
// HTTP: GET /api/recipes/saved
func (h *RecipeHandler) HandleSaved(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context(), h.loader)
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := h.loader.LoadSavedRecipes(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

type recipeRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Ingredients     string   `json:"ingredients"`
	Instructions    string   `json:"instructions"`
	PrepTimeMinutes int      `json:"prepTimeMinutes"`
	CookTimeMinutes int      `json:"cookTimeMinutes"`
	Difficulty      string   `json:"difficulty"`
	ImageDataURL    string   `json:"imageDataUrl"`
	CommunityIDs    []string `json:"communityIds"`
	Tag             string   `json:"tag"`
}

func (req recipeRequest) input() service.RecipeInput {
	return service.RecipeInput{
		Name:            req.Name,
		Description:     req.Description,
		Ingredients:     req.Ingredients,
		Instructions:    req.Instructions,
		PrepTimeMinutes: req.PrepTimeMinutes,
		CookTimeMinutes: req.CookTimeMinutes,
		Difficulty:      req.Difficulty,
		ImageDataURL:    req.ImageDataURL,
		CommunityIDs:    req.CommunityIDs,
		Tag:             req.Tag,
	}
}

// HandleCreate stores a new recipe submitted by the signed-in user.
//
// HTTP: POST /api/recipes
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	user, err := currentUser(r.Context(), h.loader)
	if err != nil {
		writeError(w, err)
		return
	}

	recipe, err := h.recipes.Create(r.Context(), user, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

// HandleUpdate edits a recipe. Author only.
//
// HTTP: PUT /api/recipes/{id}
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	user, err := currentUser(r.Context(), h.loader)
	if err != nil {
		writeError(w, err)
		return
	}

	recipe, err := h.recipes.Update(r.Context(), user, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// HandleDeleteRequest starts the two-phase delete and returns the
// confirmation token the client must echo back to actually delete.
//
// HTTP: POST /api/recipes/{id}/delete-request
func (h *RecipeHandler) HandleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context(), h.loader)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.recipes.RequestDelete(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"confirmToken": token})
}

// HandleDelete completes the two-phase delete.
//
// HTTP: DELETE /api/recipes/{id}   body: {"confirmToken": "..."}
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfirmToken string `json:"confirmToken"`
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

	if err := h.recipes.ConfirmDelete(r.Context(), user, chi.URLParam(r, "id"), req.ConfirmToken); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSave toggles a recipe in or out of the user's favourites. The
// client states the end state it wants; a request whose premise is already
// outdated gets 409 and must refresh.
//
// HTTP: PUT /api/recipes/{id}/save   body: {"save": true|false}
func (h *RecipeHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Save bool `json:"save"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.favourites.Toggle(r.Context(), userID, chi.URLParam(r, "id"), req.Save); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": req.Save})
}
