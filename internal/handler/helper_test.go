package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/handler"
	"github.com/potluck-app/potluck/internal/identity"
	"github.com/potluck-app/potluck/internal/service"
)

// testEnv wires the full stack against an in-memory store, with the same
// routes the server registers.
type testEnv struct {
	router   *chi.Mux
	store    *docstore.SQLite
	provider *identity.Provider
	tokens   *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := docstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-key")
	if err != nil {
		t.Fatal(err)
	}
	provider := identity.NewProvider(store, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger)
	loader := aggregate.NewLoader(store, logger)

	recipeService := service.NewRecipeService(store, loader.Cache(), tokens, logger)
	favouriteService := service.NewFavouriteService(store, logger)
	communityService := service.NewCommunityService(store, loader.Cache(), logger)
	profileService := service.NewProfileService(store, logger)

	sessionHandler := handler.NewSessionHandler(provider, tokens, nil, logger)
	recipeHandler := handler.NewRecipeHandler(loader, recipeService, favouriteService, logger)
	communityHandler := handler.NewCommunityHandler(loader, communityService, logger)
	profileHandler := handler.NewProfileHandler(loader, profileService, logger)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", sessionHandler.HandleSignUp)
		r.Post("/auth/login", sessionHandler.HandleLogin)
		r.Post("/auth/logout", sessionHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/recipes", recipeHandler.HandleList)
			r.Get("/recipes/{id}", recipeHandler.HandleGet)
			r.Get("/communities", communityHandler.HandleList)
			r.Get("/communities/{id}", communityHandler.HandleGet)
			r.Get("/communities/{id}/recipes", communityHandler.HandleRecipes)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/auth/me", sessionHandler.HandleMe)
			r.Get("/recipes/saved", recipeHandler.HandleSaved)
			r.Post("/recipes", recipeHandler.HandleCreate)
			r.Put("/recipes/{id}", recipeHandler.HandleUpdate)
			r.Post("/recipes/{id}/delete-request", recipeHandler.HandleDeleteRequest)
			r.Delete("/recipes/{id}", recipeHandler.HandleDelete)
			r.Put("/recipes/{id}/save", recipeHandler.HandleSave)

			r.Post("/communities", communityHandler.HandleCreate)
			r.Put("/communities/{id}/membership", communityHandler.HandleMembership)

			r.Get("/profile", profileHandler.HandleGet)
			r.Put("/profile", profileHandler.HandleUpdate)
			r.Get("/profile/recipes", profileHandler.HandleRecipes)
			r.Get("/profile/communities", profileHandler.HandleCommunities)
		})
	})

	return &testEnv{
		router:   router,
		store:    store,
		provider: provider,
		tokens:   tokens,
	}
}

// signUp creates an account and returns a session cookie for it.
func (e *testEnv) signUp(t *testing.T, email, username string) *http.Cookie {
	t.Helper()
	h, err := e.provider.SignUp(context.Background(), email, "password1", username)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	token, err := e.tokens.Generate(h.ID)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Cookie{Name: auth.SessionCookie, Value: token}
}
