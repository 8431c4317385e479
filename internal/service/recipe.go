// Package service contains the business logic layer: validation, ownership
// rules, the re-read guards on set toggles, and the two-phase delete flow.
// Services accept primitives and domain types, never HTTP types, and return
// apperror values the handler layer translates to status codes.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/potluck-app/potluck/internal/aggregate"
	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/auth"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/imageutil"
	"github.com/potluck-app/potluck/internal/model"
)

const (
	MaxRecipeNameLength  = 100
	MaxDescriptionLength = 2000
	MaxBodyFieldLength   = 10000

	// ActionDeleteRecipe scopes delete-confirmation tokens so a token
	// issued for one recipe cannot confirm the deletion of another.
	ActionDeleteRecipe = "delete-recipe"
)

// RecipeInput is the validated-on-entry form payload for creating or
// editing a recipe. Prep and cook times arrive in minutes and are stored
// preformatted.
type RecipeInput struct {
	Name            string
	Description     string
	Ingredients     string
	Instructions    string
	PrepTimeMinutes int
	CookTimeMinutes int
	Difficulty      string
	ImageDataURL    string
	CommunityIDs    []string
	Tag             string
}

// RecipeService owns recipe creation, editing and the two-phase delete.
type RecipeService struct {
	store  docstore.Store
	cache  *aggregate.Cache
	tokens *auth.TokenService
	logger *slog.Logger
	now    func() time.Time
}

func NewRecipeService(store docstore.Store, cache *aggregate.Cache, tokens *auth.TokenService, logger *slog.Logger) *RecipeService {
	return &RecipeService{
		store:  store,
		cache:  cache,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// Create validates the input and stores a new recipe owned by user.
func (s *RecipeService) Create(ctx context.Context, user *model.User, in RecipeInput) (*model.Recipe, error) {
	if user == nil {
		return nil, apperror.AuthRequired()
	}

	recipe, err := s.buildRecipe(in)
	if err != nil {
		return nil, err
	}
	recipe.SubmittedByUserID = user.ID
	recipe.SubmittedTimestamp = s.now()

	doc, err := docstore.Encode(recipe)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Add(ctx, model.CollectionRecipes, doc)
	if err != nil {
		return nil, err
	}
	recipe.ID = id

	s.cache.Invalidate(model.CollectionRecipes)
	s.logger.Info("recipe created",
		slog.String("recipeID", id),
		slog.String("userID", user.ID),
	)
	return recipe, nil
}

// Update replaces an existing recipe's content. Only the submitter may
// edit; the original submitter and timestamp are preserved.
func (s *RecipeService) Update(ctx context.Context, user *model.User, recipeID string, in RecipeInput) (*model.Recipe, error) {
	existing, err := s.ownedRecipe(ctx, user, recipeID)
	if err != nil {
		return nil, err
	}

	recipe, err := s.buildRecipe(in)
	if err != nil {
		return nil, err
	}
	recipe.ID = existing.ID
	recipe.SubmittedByUserID = existing.SubmittedByUserID
	recipe.SubmittedTimestamp = existing.SubmittedTimestamp

	doc, err := docstore.Encode(recipe)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, model.CollectionRecipes, recipeID, doc); err != nil {
		return nil, err
	}

	s.cache.Invalidate(model.CollectionRecipes)
	s.logger.Info("recipe updated", slog.String("recipeID", recipeID))
	return recipe, nil
}

// RequestDelete begins the two-phase delete: it verifies ownership and
// returns a short-lived token scoped to this user, action and recipe.
// Nothing is deleted until the token comes back through ConfirmDelete.
func (s *RecipeService) RequestDelete(ctx context.Context, user *model.User, recipeID string) (string, error) {
	if _, err := s.ownedRecipe(ctx, user, recipeID); err != nil {
		return "", err
	}
	return s.tokens.GenerateConfirm(user.ID, ActionDeleteRecipe, recipeID)
}

// ConfirmDelete completes the two-phase delete. The token must have been
// issued to the same user for the same recipe; ownership is re-checked in
// case it changed between the two phases.
func (s *RecipeService) ConfirmDelete(ctx context.Context, user *model.User, recipeID, token string) error {
	if user == nil {
		return apperror.AuthRequired()
	}
	if err := s.tokens.ValidateConfirm(token, user.ID, ActionDeleteRecipe, recipeID); err != nil {
		return apperror.Forbidden("delete confirmation is invalid or has expired")
	}
	if _, err := s.ownedRecipe(ctx, user, recipeID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, model.CollectionRecipes, recipeID); err != nil {
		return err
	}

	s.cache.Invalidate(model.CollectionRecipes)
	s.logger.Info("recipe deleted",
		slog.String("recipeID", recipeID),
		slog.String("userID", user.ID),
	)
	return nil
}

// ownedRecipe fetches a recipe and verifies user is its submitter.
func (s *RecipeService) ownedRecipe(ctx context.Context, user *model.User, recipeID string) (*model.Recipe, error) {
	if user == nil {
		return nil, apperror.AuthRequired()
	}
	doc, err := s.store.Get(ctx, model.CollectionRecipes, recipeID)
	if err != nil {
		return nil, err
	}
	var recipe model.Recipe
	if err := docstore.Decode(doc, &recipe); err != nil {
		return nil, err
	}
	if recipe.SubmittedByUserID != user.ID {
		return nil, apperror.Forbidden("only the recipe's author can do that")
	}
	return &recipe, nil
}

// buildRecipe validates and normalizes the form input into a Recipe.
func (s *RecipeService) buildRecipe(in RecipeInput) (*model.Recipe, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "recipe name is required")
	}
	if len(name) > MaxRecipeNameLength {
		return nil, apperror.ValidationFailed("name", "recipe name is too long")
	}
	if len(in.Description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description", "description is too long")
	}
	if len(in.Ingredients) > MaxBodyFieldLength {
		return nil, apperror.ValidationFailed("ingredients", "ingredients list is too long")
	}
	if len(in.Instructions) > MaxBodyFieldLength {
		return nil, apperror.ValidationFailed("instructions", "instructions are too long")
	}
	if in.PrepTimeMinutes < 0 || in.CookTimeMinutes < 0 {
		return nil, apperror.ValidationFailed("time", "times cannot be negative")
	}

	image, err := imageutil.BoundDataURL(in.ImageDataURL)
	if err != nil {
		return nil, err
	}

	communityIDs := in.CommunityIDs
	if communityIDs == nil {
		communityIDs = []string{}
	}

	return &model.Recipe{
		Name:         name,
		Description:  NormalizeNewlines(in.Description),
		Ingredients:  NormalizeNewlines(in.Ingredients),
		Instructions: NormalizeNewlines(in.Instructions),
		PrepTime:     model.FormatTime(in.PrepTimeMinutes),
		CookTime:     model.FormatTime(in.CookTimeMinutes),
		Difficulty:   strings.TrimSpace(in.Difficulty),
		ImageURL:     image,
		CommunityIDs: communityIDs,
		Tags:         strings.TrimSpace(in.Tag),
	}, nil
}

// NormalizeNewlines converts newlines to "<br>" for storage; the rendered
// pages inject the stored text directly.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// RestoreNewlines is the inverse, used when prefilling the edit form.
func RestoreNewlines(s string) string {
	return strings.ReplaceAll(s, "<br>", "\n")
}
