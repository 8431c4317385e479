package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/model"
)

const (
	MaxCommunityNameLength = 80
)

// CommunityService owns community creation and membership.
type CommunityService struct {
	store  docstore.Store
	cache  *aggregate.Cache
	logger *slog.Logger
	now    func() time.Time
}

func NewCommunityService(store docstore.Store, cache *aggregate.Cache, logger *slog.Logger) *CommunityService {
	return &CommunityService{
		store:  store,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Create stores a new community with the creator as its first member and
// records the membership on the creator's profile.
func (s *CommunityService) Create(ctx context.Context, user *model.User, name, description string) (*model.Community, error) {
	if user == nil {
		return nil, apperror.AuthRequired()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("communityName", "community name is required")
	}
	if len(name) > MaxCommunityNameLength {
		return nil, apperror.ValidationFailed("communityName", "community name is too long")
	}
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description", "description is too long")
	}

	community := &model.Community{
		CommunityName: name,
		Description:   NormalizeNewlines(description),
		CreatedBy:     user.ID,
		CreatedAt:     s.now(),
		MembersUID:    []string{user.ID},
	}
	doc, err := docstore.Encode(community)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, model.CollectionCommunities, doc)
	if err != nil {
		return nil, err
	}
	community.ID = id

	if err := s.store.Update(ctx, model.CollectionUsers, user.ID, docstore.Fields{
		"communityIDs": docstore.AddToSet(id),
	}); err != nil {
		return nil, err
	}

	s.cache.Invalidate(model.CollectionCommunities)
	s.logger.Info("community created",
		slog.String("communityID", id),
		slog.String("userID", user.ID),
	)
	return community, nil
}

// SetMembership joins (join=true) or leaves (join=false) a community.
//
// Membership lives on both sides, the community's member set and the
// user's community set, and both are updated. The community document is
// re-read before the write; if it already reflects the requested end state
// the toggle is stale and refused without writing either side.
func (s *CommunityService) SetMembership(ctx context.Context, userID, communityID string, join bool) error {
	if userID == "" {
		return apperror.AuthRequired()
	}

	doc, err := s.store.Get(ctx, model.CollectionCommunities, communityID)
	if err != nil {
		return err
	}
	var community model.Community
	if err := docstore.Decode(doc, &community); err != nil {
		return err
	}

	if community.HasMember(userID) == join {
		return apperror.Stale("your membership changed elsewhere; refresh and try again")
	}

	memberOp := docstore.RemoveFromSet(userID)
	communityOp := docstore.RemoveFromSet(communityID)
	if join {
		memberOp = docstore.AddToSet(userID)
		communityOp = docstore.AddToSet(communityID)
	}

	if err := s.store.Update(ctx, model.CollectionCommunities, communityID, docstore.Fields{
		"membersUID": memberOp,
	}); err != nil {
		return err
	}
	if err := s.store.Update(ctx, model.CollectionUsers, userID, docstore.Fields{
		"communityIDs": communityOp,
	}); err != nil {
		return err
	}

	s.cache.Invalidate(model.CollectionCommunities)
	s.logger.Info("membership changed",
		slog.String("communityID", communityID),
		slog.String("userID", userID),
		slog.Bool("joined", join),
	)
	return nil
}
