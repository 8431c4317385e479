// Package server wires the document store, identity provider, services and
// handlers into a chi router and owns the HTTP server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/handler"
	"github.com/potluck-app/potluck/internal/identity"
	"github.com/potluck-app/potluck/internal/middleware"
	"github.com/potluck-app/potluck/internal/service"
)

type Config struct {
	Port        int
	TemplateDir string
	StaticDir   string
	DBPath      string

	// JWTSecret signs session and delete-confirmation tokens. Required.
	JWTSecret string

	// GitHub OAuth is optional; when the client ID is empty the routes
	// respond 501/404 and email/password remains the only sign-in path.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  *docstore.SQLite
}

func New(cfg Config, logger *slog.Logger) (*Server, error) {
	store, err := docstore.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	s.router.Handle("/assets/*", http.StripPrefix("/assets/", fileServer))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}

	provider := identity.NewProvider(s.store, auth.NewPasswordService(), s.logger)
	loader := aggregate.NewLoader(s.store, s.logger)

	// A sign-in or sign-out swaps the whole view; the next page starts
	// from a fresh snapshot.
	provider.Subscribe(func(*identity.Handle) { loader.Cache().Reset() })

	recipeService := service.NewRecipeService(s.store, loader.Cache(), tokens, s.logger)
	favouriteService := service.NewFavouriteService(s.store, s.logger)
	communityService := service.NewCommunityService(s.store, loader.Cache(), s.logger)
	profileService := service.NewProfileService(s.store, s.logger)

	sessionHandler := handler.NewSessionHandler(provider, tokens, github, s.logger)
	recipeHandler := handler.NewRecipeHandler(loader, recipeService, favouriteService, s.logger)
	communityHandler := handler.NewCommunityHandler(loader, communityService, s.logger)
	profileHandler := handler.NewProfileHandler(loader, profileService, s.logger)

	pageHandler, err := handler.NewPageHandler(s.config.TemplateDir, loader, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	// Pages. OptionalAuth lets every page render its signed-in state
	// without blocking anonymous visitors; the handlers that need a user
	// redirect to /login themselves.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Get("/", pageHandler.HandleLanding)
		r.Get("/login", pageHandler.HandleLogin)
		r.Get("/signup", pageHandler.HandleSignup)
		r.Get("/home", pageHandler.HandleHome)
		r.Get("/main", pageHandler.HandleBrowse)
		r.Get("/create", pageHandler.HandleCreateRecipe)
		r.Get("/recipeDetails", pageHandler.HandleRecipeDetails)
		r.Get("/recipe", pageHandler.HandleSavedRecipes)
		r.Get("/editRecipe", pageHandler.HandleEditRecipe)
		r.Get("/profile", pageHandler.HandleProfile)
		r.Get("/profile/edit", pageHandler.HandleEditProfile)
		r.Get("/communities", pageHandler.HandleCommunities)
		r.Get("/communities/create", pageHandler.HandleCreateCommunity)
		r.Get("/communities/{id}", pageHandler.HandleCommunityDetails)
		r.NotFound(pageHandler.HandleNotFound)
	})

	// OAuth endpoints live outside /api; GitHub redirects the browser here.
	s.router.Get("/auth/github", sessionHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", sessionHandler.HandleGitHubCallback)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", sessionHandler.HandleSignUp)
		r.Post("/auth/login", sessionHandler.HandleLogin)
		r.Post("/auth/logout", sessionHandler.HandleLogout)

		// Reads work for anonymous visitors; Saved flags appear when a
		// session cookie is present.
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

	return nil
}

// Start runs the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully with a deadline.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.Int("port", s.config.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		s.logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
