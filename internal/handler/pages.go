package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/model"
	"github.com/potluck-app/potluck/internal/search"
	"github.com/potluck-app/potluck/internal/service"
)

// pageNames are the content templates, each parsed together with base.html
// so {{template "content" .}} resolves per page.
var pageNames = []string{
	"login",
	"signup",
	"home",
	"browse",
	"create_recipe",
	"recipe_details",
	"saved_recipes",
	"edit_recipe",
	"profile",
	"edit_profile",
	"communities",
	"create_community",
	"community_details",
	"not_found",
}

// PageHandler renders the HTML pages. Templates are parsed once at
// startup; each page gets its own template set cloned from base.html.
type PageHandler struct {
	templates map[string]*template.Template
	loader    *aggregate.Loader
	logger    *slog.Logger
}

// PageData is the payload every page template receives.
type PageData struct {
	Title  string
	Active string      // highlighted nav entry
	User   *model.User // nil for anonymous visitors
	Data   any         // page-specific payload
}

func NewPageHandler(templateDir string, loader *aggregate.Loader, logger *slog.Logger) (*PageHandler, error) {
	templates := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFiles(
			filepath.Join(templateDir, "base.html"),
			filepath.Join(templateDir, name+".html"),
		)
		if err != nil {
			return nil, err
		}
		templates[name] = tmpl
	}
	return &PageHandler{
		templates: templates,
		loader:    loader,
		logger:    logger,
	}, nil
}

func (h *PageHandler) render(w http.ResponseWriter, page string, data PageData) {
	tmpl, ok := h.templates[page]
	if !ok {
		h.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

func (h *PageHandler) user(r *http.Request) *model.User {
	user, err := currentUser(r.Context(), h.loader)
	if err != nil {
		h.logger.Warn("resolving page user", slog.String("error", err.Error()))
		return nil
	}
	return user
}

// HandleLanding redirects signed-in visitors to their feed and everyone
// else to the login page.
//
// HTTP: GET /
func (h *PageHandler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	if h.user(r) != nil {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// HTTP: GET /login
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login", PageData{Title: "PotLuck — Log In", Active: "login"})
}

// HTTP: GET /signup
func (h *PageHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	h.render(w, "signup", PageData{Title: "PotLuck — Sign Up", Active: "signup"})
}

type feedData struct {
	Recipes []model.RecipeView
	Query   search.Query
}

// HandleHome renders the signed-in feed: all recipes, saved ones flagged.
//
// HTTP: GET /home
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	views, err := h.loader.LoadRecipes(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	aggregate.MarkSaved(views, user)
	h.render(w, "home", PageData{
		Title:  "PotLuck — Home",
		Active: "home",
		User:   user,
		Data:   feedData{Recipes: views},
	})
}

// HandleBrowse renders the searchable browse grid.
//
// HTTP: GET /main?search=...&tag=...
func (h *PageHandler) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	views, err := h.loader.LoadRecipes(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	aggregate.MarkSaved(views, user)
	q := searchQuery(r)
	h.render(w, "browse", PageData{
		Title:  "PotLuck — Browse",
		Active: "browse",
		User:   user,
		Data:   feedData{Recipes: search.Recipes(views, q), Query: q},
	})
}

type createRecipeData struct {
	Communities []model.CommunityView
}

// HandleCreateRecipe renders the submission form with the user's
// communities as share targets.
//
// HTTP: GET /create
func (h *PageHandler) HandleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	communities, err := h.loader.LoadUserCommunities(r.Context(), user.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, "create_recipe", PageData{
		Title:  "PotLuck — New Recipe",
		Active: "create",
		User:   user,
		Data:   createRecipeData{Communities: communities},
	})
}

// HandleRecipeDetails renders one recipe. The ID arrives as a query
// parameter, matching the links the cards emit.
//
// HTTP: GET /recipeDetails?id=...
func (h *PageHandler) HandleRecipeDetails(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	view, err := h.loader.LoadRecipe(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if user != nil {
		view.Saved = user.HasFavourite(view.ID)
	}
	h.render(w, "recipe_details", PageData{
		Title: "PotLuck — " + view.Name,
		User:  user,
		Data:  view,
	})
}

// HandleSavedRecipes renders the user's saved-recipe shelf. Recipes whose
// source document has since been deleted still show as placeholder cards.
//
// HTTP: GET /recipe
func (h *PageHandler) HandleSavedRecipes(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	saved, err := h.loader.LoadSavedRecipes(r.Context(), user)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, "saved_recipes", PageData{
		Title:  "PotLuck — Saved Recipes",
		Active: "saved",
		User:   user,
		Data:   feedData{Recipes: saved},
	})
}

type editRecipeData struct {
	Recipe      *model.RecipeView
	Communities []model.CommunityView
	// Plain-text copies for the textareas; storage holds <br> breaks.
	Description  string
	Ingredients  string
	Instructions string
}

// HandleEditRecipe renders the prefilled edit form. Author only.
//
// HTTP: GET /editRecipe?id=...
func (h *PageHandler) HandleEditRecipe(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	view, err := h.loader.LoadRecipe(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if view.SubmittedByUserID != user.ID {
		h.renderError(w, r, apperror.Forbidden("only the recipe's author can edit it"))
		return
	}
	communities, err := h.loader.LoadUserCommunities(r.Context(), user.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, "edit_recipe", PageData{
		Title: "PotLuck — Edit Recipe",
		User:  user,
		Data: editRecipeData{
			Recipe:       view,
			Communities:  communities,
			Description:  service.RestoreNewlines(view.Description),
			Ingredients:  service.RestoreNewlines(view.Ingredients),
			Instructions: service.RestoreNewlines(view.Instructions),
		},
	})
}

type profileData struct {
	Own         []model.RecipeView
	Saved       []model.RecipeView
	Communities []model.CommunityView
}

// HandleProfile renders the signed-in user's profile with their own,
// saved, and community content.
//
// HTTP: GET /profile
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	own, err := h.loader.LoadUserRecipes(r.Context(), user.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	saved, err := h.loader.LoadSavedRecipes(r.Context(), user)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	communities, err := h.loader.LoadUserCommunities(r.Context(), user.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, "profile", PageData{
		Title:  "PotLuck — Profile",
		Active: "profile",
		User:   user,
		Data:   profileData{Own: own, Saved: saved, Communities: communities},
	})
}

// HTTP: GET /profile/edit
func (h *PageHandler) HandleEditProfile(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	h.render(w, "edit_profile", PageData{
		Title:  "PotLuck — Edit Profile",
		Active: "profile",
		User:   user,
	})
}

type communitiesData struct {
	Communities []model.CommunityView
	Query       search.Query
}

// HTTP: GET /communities?search=...
func (h *PageHandler) HandleCommunities(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	views, err := h.loader.LoadCommunities(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	q := searchQuery(r)
	h.render(w, "communities", PageData{
		Title:  "PotLuck — Communities",
		Active: "communities",
		User:   user,
		Data:   communitiesData{Communities: search.Communities(views, q), Query: q},
	})
}

// HTTP: GET /communities/create
func (h *PageHandler) HandleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	h.render(w, "create_community", PageData{
		Title:  "PotLuck — New Community",
		Active: "communities",
		User:   user,
	})
}

type communityDetailsData struct {
	Community *model.CommunityView
	Recipes   []model.RecipeView
	IsMember  bool
}

// HTTP: GET /communities/{id}
func (h *PageHandler) HandleCommunityDetails(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	id := chi.URLParam(r, "id")
	view, err := h.loader.LoadCommunity(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	recipes, err := h.loader.LoadCommunityRecipes(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	aggregate.MarkSaved(recipes, user)
	isMember := user != nil && view.HasMember(user.ID)
	h.render(w, "community_details", PageData{
		Title:  "PotLuck — " + view.CommunityName,
		Active: "communities",
		User:   user,
		Data:   communityDetailsData{Community: view, Recipes: recipes, IsMember: isMember},
	})
}

// HandleNotFound is the catch-all page.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	tmpl := h.templates["not_found"]
	if err := tmpl.ExecuteTemplate(w, "base", PageData{Title: "PotLuck — Not Found", User: h.user(r)}); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
	}
}

// renderError maps a load failure to the closest page-level response.
func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		h.HandleNotFound(w, r)
	case errors.Is(err, apperror.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, apperror.ErrUnavailable):
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("page render failed", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
