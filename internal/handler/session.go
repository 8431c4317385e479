package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/identity"
)

const oauthStateCookie = "oauth_state"

// SessionHandler manages signup, login, logout and the GitHub OAuth flow.
// On every successful sign-in it sets the HttpOnly session cookie; the
// identity provider's subscriber hook is not needed here because the
// handler is the one place sessions begin and end.
type SessionHandler struct {
	provider *identity.Provider
	tokens   *auth.TokenService
	github   *auth.GitHubProvider // nil when OAuth is not configured
	logger   *slog.Logger
}

func NewSessionHandler(provider *identity.Provider, tokens *auth.TokenService, github *auth.GitHubProvider, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		provider: provider,
		tokens:   tokens,
		github:   github,
		logger:   logger,
	}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// HandleSignUp creates an account and signs the new user in.
//
// HTTP: POST /api/auth/signup
func (h *SessionHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	handle, err := h.provider.SignUp(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		h.logger.Warn("signup failed", slog.String("error", err.Error()))
		writeIdentityError(w, err)
		return
	}

	if err := h.startSession(w, handle); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{UserID: handle.ID, Email: handle.Email})
}

// HandleLogin signs an existing user in.
//
// HTTP: POST /api/auth/login
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	handle, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("error", err.Error()))
		writeIdentityError(w, err)
		return
	}

	if err := h.startSession(w, handle); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{UserID: handle.ID, Email: handle.Email})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.provider.SignOut()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe reports the current session's account. The auth middleware has
// already validated the cookie, so a lookup miss means the account was
// deleted after the token was issued.
//
// HTTP: GET /api/auth/me
func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthRequired())
		return
	}
	handle, err := h.provider.Lookup(r.Context(), userID)
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{UserID: handle.ID, Email: handle.Email})
}

// HandleGitHubLogin redirects to GitHub's authorization page with a fresh
// state value stored in a short-lived cookie.
//
// HTTP: GET /auth/github
func (h *SessionHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "oauth_disabled", Message: "GitHub sign-in is not configured"})
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		writeError(w, err)
		return
	}
	state := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow. The state cookie must
// match the state query parameter, or the code is discarded.
//
// HTTP: GET /auth/github/callback
func (h *SessionHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_state", Message: "OAuth state mismatch; please try signing in again"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	ghUser, err := h.github.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Error("GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "oauth_failed", Message: "GitHub sign-in failed; please try again"})
		return
	}

	handle, err := h.provider.SignInGitHub(r.Context(), ghUser)
	if err != nil {
		writeIdentityError(w, err)
		return
	}

	if err := h.startSession(w, handle); err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/home", http.StatusFound)
}

// startSession issues a session JWT and sets the HttpOnly cookie.
func (h *SessionHandler) startSession(w http.ResponseWriter, handle *identity.Handle) error {
	token, err := h.tokens.Generate(handle.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("session started", slog.String("userID", handle.ID))
	return nil
}
