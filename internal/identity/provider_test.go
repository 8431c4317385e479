package identity

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/model"
)

func newTestProvider(t *testing.T) (*Provider, *docstore.SQLite) {
	t.Helper()
	store, err := docstore.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	p := NewProvider(store, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger)
	return p, store
}

func TestSignUp_CreatesProfileWithDefaults(t *testing.T) {
	p, store := newTestProvider(t)

	h, err := p.SignUp(context.Background(), "ayla@example.com", "secret-pw", "ayla")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if h.ID == "" {
		t.Fatal("SignUp() returned empty handle ID")
	}

	doc, err := store.Get(context.Background(), model.CollectionUsers, h.ID)
	if err != nil {
		t.Fatalf("profile document missing: %v", err)
	}

	var user model.User
	if err := docstore.Decode(doc, &user); err != nil {
		t.Fatalf("decoding profile: %v", err)
	}
	if user.Username != "ayla" {
		t.Errorf("Username = %q, want ayla", user.Username)
	}
	if user.Bio != model.DefaultBio {
		t.Errorf("Bio = %q, want default", user.Bio)
	}
	if user.ProfilePicURL != model.DefaultProfilePic {
		t.Errorf("ProfilePicURL = %q, want default", user.ProfilePicURL)
	}
	if len(user.FavouriteRecipeIDs) != 0 || len(user.CommunityIDs) != 0 {
		t.Error("new profile should start with empty sets")
	}
}

func TestSignUp_EmailInUse(t *testing.T) {
	p, _ := newTestProvider(t)

	ctx := context.Background()
	if _, err := p.SignUp(ctx, "ayla@example.com", "secret-pw", "ayla"); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}

	_, err := p.SignUp(ctx, "Ayla@Example.com", "another-pw", "ayla2")
	if CodeOf(err) != CodeEmailInUse {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeEmailInUse)
	}
	if got := UserMessage(err); got != "Email is already in use." {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestSignUp_WeakPassword(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.SignUp(context.Background(), "ayla@example.com", "12345", "ayla")
	if CodeOf(err) != CodeWeakPassword {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeWeakPassword)
	}
	if got := UserMessage(err); got != "Password too weak (min 6 characters)." {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestSignUp_InvalidEmail(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.SignUp(context.Background(), "not-an-email", "secret-pw", "ayla")
	if CodeOf(err) != CodeInvalidEmail {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeInvalidEmail)
	}
}

func TestSignIn_RoundTrip(t *testing.T) {
	p, _ := newTestProvider(t)

	ctx := context.Background()
	up, err := p.SignUp(ctx, "ayla@example.com", "secret-pw", "ayla")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	in, err := p.SignIn(ctx, "ayla@example.com", "secret-pw")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if in.ID != up.ID {
		t.Errorf("SignIn ID = %q, want %q", in.ID, up.ID)
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	p, _ := newTestProvider(t)

	ctx := context.Background()
	if _, err := p.SignUp(ctx, "ayla@example.com", "secret-pw", "ayla"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	_, err := p.SignIn(ctx, "ayla@example.com", "wrong-pw")
	if CodeOf(err) != CodeWrongPassword {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeWrongPassword)
	}
	if got := UserMessage(err); got != "Incorrect password." {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestSignIn_UnknownEmail(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.SignIn(context.Background(), "ghost@example.com", "whatever")
	if CodeOf(err) != CodeUserNotFound {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeUserNotFound)
	}
}

func TestLookup_RoundTrip(t *testing.T) {
	p, _ := newTestProvider(t)

	h, err := p.SignUp(context.Background(), "ayla@example.com", "secret-pw", "ayla")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	got, err := p.Lookup(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.ID != h.ID || got.Email != "ayla@example.com" {
		t.Errorf("Lookup() = %+v, want ID %q email ayla@example.com", got, h.ID)
	}
}

func TestLookup_UnknownID(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.Lookup(context.Background(), "no-such-user")
	if CodeOf(err) != CodeUserNotFound {
		t.Errorf("Lookup() code = %q, want %q", CodeOf(err), CodeUserNotFound)
	}
}

func TestSubscribe_NotifiedOnSignInAndOut(t *testing.T) {
	p, _ := newTestProvider(t)

	var events []*Handle
	cancel := p.Subscribe(func(h *Handle) { events = append(events, h) })
	defer cancel()

	ctx := context.Background()
	h, err := p.SignUp(ctx, "ayla@example.com", "secret-pw", "ayla")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	p.SignOut()

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0] == nil || events[0].ID != h.ID {
		t.Errorf("first event = %v, want handle %q", events[0], h.ID)
	}
	if events[1] != nil {
		t.Errorf("second event = %v, want nil (sign-out)", events[1])
	}
}

func TestSubscribe_CancelStopsNotifications(t *testing.T) {
	p, _ := newTestProvider(t)

	calls := 0
	cancel := p.Subscribe(func(*Handle) { calls++ })
	cancel()

	p.SignOut()
	if calls != 0 {
		t.Errorf("cancelled subscriber was called %d times", calls)
	}
}

func TestUserMessage_UnknownErrorGetsFallback(t *testing.T) {
	if got := UserMessage(context.DeadlineExceeded); got != "Something went wrong. Please try again." {
		t.Errorf("UserMessage() = %q", got)
	}
}
