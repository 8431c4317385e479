package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/imageutil"
	"github.com/potluck-app/potluck/internal/model"
)

const (
	MaxUsernameLength = 30
	MaxNameLength     = 50
	MaxBioLength      = 500
)

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	Username      string
	FirstName     string
	LastName      string
	Bio           string
	ProfilePicURL string
}

// ProfileService edits user profile documents.
type ProfileService struct {
	store  docstore.Store
	logger *slog.Logger
}

func NewProfileService(store docstore.Store, logger *slog.Logger) *ProfileService {
	return &ProfileService{store: store, logger: logger}
}

// Update applies the editable fields to the user's own profile. Email,
// favourites and memberships are not touched.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	if userID == "" {
		return nil, apperror.AuthRequired()
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username", "username is too long")
	}
	if len(in.FirstName) > MaxNameLength || len(in.LastName) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", "name is too long")
	}
	if len(in.Bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio", "bio is too long")
	}

	pic := in.ProfilePicURL
	if strings.HasPrefix(pic, "data:") {
		bounded, err := imageutil.BoundDataURL(pic)
		if err != nil {
			return nil, err
		}
		pic = bounded
	}
	if pic == "" {
		pic = model.DefaultProfilePic
	}

	if err := s.store.Update(ctx, model.CollectionUsers, userID, docstore.Fields{
		"username":      username,
		"firstName":     strings.TrimSpace(in.FirstName),
		"lastName":      strings.TrimSpace(in.LastName),
		"bio":           strings.TrimSpace(in.Bio),
		"profilePicUrl": pic,
	}); err != nil {
		return nil, err
	}

	doc, err := s.store.Get(ctx, model.CollectionUsers, userID)
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return &user, nil
}
