package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/model"
)

// collectionCredentials holds one document per account:
// {email, passwordHash}. The document ID is the user ID; the users
// collection keys profile documents by the same ID.
const collectionCredentials = "credentials"

// MinPasswordLength mirrors the provider's weak-password rule.
const MinPasswordLength = 6

// Provider implements email/password identity on top of the document store.
//
// On signup it creates both the credential record and the default profile
// document, so a freshly signed-up user immediately has a browsable
// profile.
type Provider struct {
	store     docstore.Store
	passwords *auth.PasswordService
	logger    *slog.Logger

	mu      sync.Mutex
	subs    map[int]func(*Handle)
	nextSub int
}

// NewProvider creates a Provider.
func NewProvider(store docstore.Store, passwords *auth.PasswordService, logger *slog.Logger) *Provider {
	return &Provider{
		store:     store,
		passwords: passwords,
		logger:    logger,
		subs:      make(map[int]func(*Handle)),
	}
}

// credential is the stored account record.
type credential struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

// SignUp creates an account and its default profile document, then
// announces the sign-in to subscribers.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*Handle, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &Error{Code: CodeInvalidEmail}
	}
	if password == "" {
		return nil, &Error{Code: CodeMissingPassword}
	}
	if len(password) < MinPasswordLength {
		return nil, &Error{Code: CodeWeakPassword}
	}

	existing, err := p.store.Query(ctx, collectionCredentials, "email", docstore.OpEqual, email)
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Err: err}
	}
	if len(existing) > 0 {
		return nil, &Error{Code: CodeEmailInUse}
	}

	hash, err := p.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("identity: hashing password: %w", err)
	}

	id, err := p.store.Add(ctx, collectionCredentials, docstore.Doc{
		"email":        email,
		"passwordHash": hash,
	})
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Err: err}
	}

	// The profile document lives at users/{id} with signup defaults.
	profile, err := docstore.Encode(model.NewUser(id, strings.TrimSpace(displayName), email))
	if err != nil {
		return nil, fmt.Errorf("identity: encoding profile: %w", err)
	}
	if err := p.store.Set(ctx, model.CollectionUsers, id, profile); err != nil {
		return nil, &Error{Code: CodeNetwork, Err: err}
	}

	p.logger.Info("user signed up",
		slog.String("userID", id),
		slog.String("email", email),
	)

	h := &Handle{ID: id, Email: email}
	p.notify(h)
	return h, nil
}

// SignIn verifies the credentials and announces the sign-in.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Handle, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, &Error{Code: CodeInvalidEmail}
	}
	if password == "" {
		return nil, &Error{Code: CodeMissingPassword}
	}

	docs, err := p.store.Query(ctx, collectionCredentials, "email", docstore.OpEqual, email)
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Err: err}
	}
	if len(docs) == 0 {
		return nil, &Error{Code: CodeUserNotFound}
	}

	var cred credential
	if err := docstore.Decode(docs[0], &cred); err != nil {
		return nil, fmt.Errorf("identity: decoding credential: %w", err)
	}

	if err := p.passwords.Verify(cred.PasswordHash, password); err != nil {
		return nil, &Error{Code: CodeWrongPassword}
	}

	p.logger.Info("user signed in", slog.String("userID", cred.ID))

	h := &Handle{ID: cred.ID, Email: cred.Email}
	p.notify(h)
	return h, nil
}

// SignInGitHub resolves a GitHub profile into a Handle, creating the
// account and default profile document on first login. No password is
// stored for OAuth accounts.
func (p *Provider) SignInGitHub(ctx context.Context, gh *auth.GitHubUser) (*Handle, error) {
	if gh == nil {
		return nil, fmt.Errorf("identity: GitHub user must not be nil")
	}

	ghID := fmt.Sprintf("github:%d", gh.ID)
	docs, err := p.store.Query(ctx, collectionCredentials, "githubId", docstore.OpEqual, ghID)
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Err: err}
	}

	if len(docs) > 0 {
		var cred credential
		if err := docstore.Decode(docs[0], &cred); err != nil {
			return nil, fmt.Errorf("identity: decoding credential: %w", err)
		}
		h := &Handle{ID: cred.ID, Email: cred.Email}
		p.notify(h)
		return h, nil
	}

	// First login: create the account and the default profile.
	id, err := p.store.Add(ctx, collectionCredentials, docstore.Doc{
		"email":    strings.ToLower(gh.Email),
		"githubId": ghID,
	})
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Err: err}
	}

	user := model.NewUser(id, gh.Login, strings.ToLower(gh.Email))
	if gh.AvatarURL != "" {
		user.ProfilePicURL = gh.AvatarURL
	}
	profile, err := docstore.Encode(user)
	if err != nil {
		return nil, fmt.Errorf("identity: encoding profile: %w", err)
	}
	if err := p.store.Set(ctx, model.CollectionUsers, id, profile); err != nil {
		return nil, &Error{Code: CodeNetwork, Err: err}
	}

	p.logger.Info("user signed up via GitHub",
		slog.String("userID", id),
		slog.String("login", gh.Login),
	)

	h := &Handle{ID: id, Email: strings.ToLower(gh.Email)}
	p.notify(h)
	return h, nil
}

// Lookup resolves a user ID back to its account handle. Unknown IDs map
// to the user-not-found code so callers can treat revoked accounts like
// bad credentials.
func (p *Provider) Lookup(ctx context.Context, userID string) (*Handle, error) {
	doc, err := p.store.Get(ctx, collectionCredentials, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &Error{Code: CodeUserNotFound}
		}
		return nil, &Error{Code: CodeNetwork, Err: err}
	}
	var cred credential
	if err := docstore.Decode(doc, &cred); err != nil {
		return nil, fmt.Errorf("identity: decoding credential: %w", err)
	}
	return &Handle{ID: cred.ID, Email: cred.Email}, nil
}

// SignOut announces the end of the session. Subscribers receive nil.
func (p *Provider) SignOut() {
	p.notify(nil)
}

// Subscribe registers fn to be called with a Handle on sign-in and nil on
// sign-out. The returned func cancels the subscription.
func (p *Provider) Subscribe(fn func(*Handle)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *Provider) notify(h *Handle) {
	p.mu.Lock()
	fns := make([]func(*Handle), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	// Called outside the lock so a callback may cancel its own
	// subscription without deadlocking.
	for _, fn := range fns {
		fn(h)
	}
}
