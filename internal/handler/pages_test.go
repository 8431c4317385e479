package handler_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/handler"
)

func newPageHandler(t *testing.T) *handler.PageHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := docstore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	loader := aggregate.NewLoader(store, logger)
	h, err := handler.NewPageHandler("../../web/templates", loader, logger)
	require.NoError(t, err, "template parsing must succeed")
	return h
}

// Anonymous static pages are pinned as golden files; regressions in the
// base layout show up as a diff instead of a vague assertion failure.
func TestPages_Golden(t *testing.T) {
	h := newPageHandler(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	t.Run("login", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		g.Assert(t, "login_page", rr.Body.Bytes())
	})

	t.Run("not found", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleNotFound(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		g.Assert(t, "not_found_page", rr.Body.Bytes())
	})
}

func TestPages_HomeRendersEmptyFeed(t *testing.T) {
	h := newPageHandler(t)

	rr := httptest.NewRecorder()
	h.HandleHome(rr, httptest.NewRequest(http.MethodGet, "/home", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No recipes yet")
}

func TestPages_AuthGatedRedirectToLogin(t *testing.T) {
	h := newPageHandler(t)

	gated := map[string]http.HandlerFunc{
		"/create":       h.HandleCreateRecipe,
		"/recipe":       h.HandleSavedRecipes,
		"/profile":      h.HandleProfile,
		"/profile/edit": h.HandleEditProfile,
	}
	for path, fn := range gated {
		rr := httptest.NewRecorder()
		fn(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusFound, rr.Code, path)
		assert.Equal(t, "/login", rr.Header().Get("Location"), path)
	}
}

func TestPages_RecipeDetailsMissingID(t *testing.T) {
	h := newPageHandler(t)

	rr := httptest.NewRecorder()
	h.HandleRecipeDetails(rr, httptest.NewRequest(http.MethodGet, "/recipeDetails?id=ghost", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "Page not found"))
}
