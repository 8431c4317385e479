// Package aggregate builds view-ready records from the document store.
//
// A raw recipe or community document references its author by ID; the pages
// want a display name. This layer fetches the referenced user documents and
// attaches a derived author field, degrading to a sentinel ("unknown" or
// "deleted") when the reference dangles. A missing author never fails the
// batch, and one failed lookup never aborts the others.
//
// All author lookups for a batch run concurrently and the load resolves
// once every lookup has settled (fan-out, then an all-complete barrier).
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/model"
)

// Loader fetches collections, joins author names, and owns the snapshot
// cache the filter engine works from.
type Loader struct {
	store  docstore.Store
	cache  *Cache
	logger *slog.Logger
}

// NewLoader creates a Loader with an empty cache.
func NewLoader(store docstore.Store, logger *slog.Logger) *Loader {
	return &Loader{
		store:  store,
		cache:  NewCache(),
		logger: logger,
	}
}

// Cache exposes the loader's cache so mutation code can invalidate the
// affected collection and navigation code can reset between views.
func (l *Loader) Cache() *Cache {
	return l.cache
}

// LoadRecipes returns every recipe joined with its author, from cache when
// the snapshot is still valid. This is the browse-feed load.
func (l *Loader) LoadRecipes(ctx context.Context) ([]model.RecipeView, error) {
	if v, ok := l.cache.get(model.CollectionRecipes); ok {
		return copyOf(v.([]model.RecipeView)), nil
	}

	docs, err := l.store.List(ctx, model.CollectionRecipes)
	if err != nil {
		return nil, loadFailed("recipes", err)
	}

	views, err := l.joinRecipes(ctx, docs, model.AuthorUnknown)
	if err != nil {
		return nil, err
	}

	l.cache.put(model.CollectionRecipes, views)
	// Callers mark per-user state (Saved) on the result, so the cached
	// snapshot must never be handed out directly.
	return copyOf(views), nil
}

// LoadRecipe returns one recipe joined with its author.
func (l *Loader) LoadRecipe(ctx context.Context, id string) (*model.RecipeView, error) {
	doc, err := l.store.Get(ctx, model.CollectionRecipes, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, loadFailed("recipe", err)
	}

	views, err := l.joinRecipes(ctx, []docstore.Doc{doc}, model.AuthorUnknown)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// LoadUserRecipes returns the recipes submitted by one user (the profile
// grid). Not cached: the snapshot cache holds whole-collection views only.
func (l *Loader) LoadUserRecipes(ctx context.Context, userID string) ([]model.RecipeView, error) {
	docs, err := l.store.Query(ctx, model.CollectionRecipes, "submittedByUserID", docstore.OpEqual, userID)
	if err != nil {
		return nil, loadFailed("recipes", err)
	}
	return l.joinRecipes(ctx, docs, model.AuthorUnknown)
}

// LoadCommunityRecipes returns the recipes shared into a community.
func (l *Loader) LoadCommunityRecipes(ctx context.Context, communityID string) ([]model.RecipeView, error) {
	docs, err := l.store.Query(ctx, model.CollectionRecipes, "communityId", docstore.OpArrayContains, communityID)
	if err != nil {
		return nil, loadFailed("recipes", err)
	}
	return l.joinRecipes(ctx, docs, model.AuthorUnknown)
}

// LoadSavedRecipes resolves the user's favourite IDs into recipe views.
// A favourite whose recipe has been deleted is silently skipped; a
// favourite whose author is gone renders with the "deleted" sentinel.
func (l *Loader) LoadSavedRecipes(ctx context.Context, user *model.User) ([]model.RecipeView, error) {
	if user == nil {
		return nil, apperror.AuthRequired()
	}

	docs := make([]docstore.Doc, len(user.FavouriteRecipeIDs))
	errs := make([]error, len(user.FavouriteRecipeIDs))

	var wg sync.WaitGroup
	for i, id := range user.FavouriteRecipeIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			docs[i], errs[i] = l.store.Get(ctx, model.CollectionRecipes, id)
		}(i, id)
	}
	wg.Wait()

	present := make([]docstore.Doc, 0, len(docs))
	for i, err := range errs {
		if err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				return nil, loadFailed("saved recipes", err)
			}
			// Recipe deleted since it was saved. Skip the card.
			continue
		}
		present = append(present, docs[i])
	}

	views, err := l.joinRecipes(ctx, present, model.AuthorDeleted)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].Saved = true
	}
	return views, nil
}

// LoadCommunities returns every community joined with its creator's name
// and member count, from cache when valid.
func (l *Loader) LoadCommunities(ctx context.Context) ([]model.CommunityView, error) {
	if v, ok := l.cache.get(model.CollectionCommunities); ok {
		return copyOf(v.([]model.CommunityView)), nil
	}

	docs, err := l.store.List(ctx, model.CollectionCommunities)
	if err != nil {
		return nil, loadFailed("communities", err)
	}

	views, err := l.joinCommunities(ctx, docs)
	if err != nil {
		return nil, err
	}

	l.cache.put(model.CollectionCommunities, views)
	return copyOf(views), nil
}

// LoadCommunity returns one community with creator join.
func (l *Loader) LoadCommunity(ctx context.Context, id string) (*model.CommunityView, error) {
	doc, err := l.store.Get(ctx, model.CollectionCommunities, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, loadFailed("community", err)
	}

	views, err := l.joinCommunities(ctx, []docstore.Doc{doc})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// LoadUserCommunities returns the communities a user belongs to.
func (l *Loader) LoadUserCommunities(ctx context.Context, userID string) ([]model.CommunityView, error) {
	docs, err := l.store.Query(ctx, model.CollectionCommunities, "membersUID", docstore.OpArrayContains, userID)
	if err != nil {
		return nil, loadFailed("communities", err)
	}
	return l.joinCommunities(ctx, docs)
}

// LoadUser returns one user profile document.
func (l *Loader) LoadUser(ctx context.Context, userID string) (*model.User, error) {
	doc, err := l.store.Get(ctx, model.CollectionUsers, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, loadFailed("user", err)
	}

	var user model.User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// MarkSaved sets the Saved flag on each view the user has favourited.
// No-op for anonymous viewers.
func MarkSaved(views []model.RecipeView, user *model.User) {
	if user == nil {
		return
	}
	for i := range views {
		views[i].Saved = user.HasFavourite(views[i].ID)
	}
}

// joinRecipes decodes raw documents and attaches author names. The author
// lookups fan out one goroutine per record; each branch that fails writes
// the sentinel into its own slot, so the barrier below always completes
// and no branch can fail the batch.
func (l *Loader) joinRecipes(ctx context.Context, docs []docstore.Doc, sentinel string) ([]model.RecipeView, error) {
	views := make([]model.RecipeView, len(docs))
	for i, doc := range docs {
		if err := docstore.Decode(doc, &views[i].Recipe); err != nil {
			return nil, err
		}
	}

	var wg sync.WaitGroup
	for i := range views {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i].Author = l.authorName(ctx, views[i].SubmittedByUserID, sentinel)
		}(i)
	}
	wg.Wait()

	return views, nil
}

func (l *Loader) joinCommunities(ctx context.Context, docs []docstore.Doc) ([]model.CommunityView, error) {
	views := make([]model.CommunityView, len(docs))
	for i, doc := range docs {
		if err := docstore.Decode(doc, &views[i].Community); err != nil {
			return nil, err
		}
		views[i].MemberCount = len(views[i].MembersUID)
	}

	var wg sync.WaitGroup
	for i := range views {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Creators render in the handle style, so the fallback
			// keeps the @ prefix the recipe sentinels drop.
			views[i].Creator = l.authorName(ctx, views[i].CreatedBy, "@"+model.AuthorUnknown)
		}(i)
	}
	wg.Wait()

	return views, nil
}

// authorName resolves a user ID to "@username", or the sentinel verbatim
// when the reference is empty, the user document is missing, or the lookup
// fails. Recipe joins pass bare sentinels ("unknown", "deleted"); the
// community-creator join passes "@unknown".
func (l *Loader) authorName(ctx context.Context, userID, sentinel string) string {
	if userID == "" {
		return sentinel
	}

	doc, err := l.store.Get(ctx, model.CollectionUsers, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			l.logger.Warn("author lookup failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		return sentinel
	}

	var user model.User
	if err := docstore.Decode(doc, &user); err != nil || user.Username == "" {
		return sentinel
	}
	return "@" + user.Username
}

func copyOf[T any](views []T) []T {
	out := make([]T, len(views))
	copy(out, views)
	return out
}

// loadFailed wraps a whole-operation store failure as a retryable,
// user-visible error. Per-record failures never reach here.
func loadFailed(what string, err error) error {
	return fmt.Errorf("%w: %s", apperror.Unavailable("failed to load "+what), err)
}
