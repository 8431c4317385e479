package service

import (
	"context"
	"log/slog"

	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/model"
)

// FavouriteService toggles recipes in and out of a user's saved set.
type FavouriteService struct {
	store  docstore.Store
	logger *slog.Logger
}

func NewFavouriteService(store docstore.Store, logger *slog.Logger) *FavouriteService {
	return &FavouriteService{store: store, logger: logger}
}

// Toggle adds (save=true) or removes (save=false) a recipe from the user's
// favourites.
//
// The user document is re-read immediately before the write and the write
// is refused with a stale error when the server-side set already reflects
// the requested end state: the caller's view was built from an older
// snapshot (another tab toggled first) and must be refreshed, not trusted.
// The write itself is an atomic set operation, so even a guard race cannot
// produce duplicates or remove-misses.
func (s *FavouriteService) Toggle(ctx context.Context, userID, recipeID string, save bool) error {
	if userID == "" {
		return apperror.AuthRequired()
	}

	if save {
		// Saving a recipe that no longer exists would leave a dangling
		// favourite; refuse early.
		if _, err := s.store.Get(ctx, model.CollectionRecipes, recipeID); err != nil {
			return err
		}
	}

	doc, err := s.store.Get(ctx, model.CollectionUsers, userID)
	if err != nil {
		return err
	}
	var user model.User
	if err := docstore.Decode(doc, &user); err != nil {
		return err
	}

	if user.HasFavourite(recipeID) == save {
		return apperror.Stale("your saved recipes changed elsewhere; refresh and try again")
	}

	op := docstore.RemoveFromSet(recipeID)
	if save {
		op = docstore.AddToSet(recipeID)
	}
	if err := s.store.Update(ctx, model.CollectionUsers, userID, docstore.Fields{
		"favouriteRecipeIDs": op,
	}); err != nil {
		return err
	}

	s.logger.Info("favourite toggled",
		slog.String("userID", userID),
		slog.String("recipeID", recipeID),
		slog.Bool("saved", save),
	)
	return nil
}
