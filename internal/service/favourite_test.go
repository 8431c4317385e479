package service

import (
	"context"
	"errors"
	"testing"

	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/model"
)

func seedRecipeDoc(t *testing.T, store *docstore.SQLite, id, name string) {
	t.Helper()
	err := store.Set(context.Background(), model.CollectionRecipes, id, docstore.Doc{
		"name":              name,
		"submittedByUserID": "someone",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFavouriteToggle_SaveAndUnsave(t *testing.T) {
	store := newTestStore(t)
	svc := NewFavouriteService(store, testLogger())
	seedProfile(t, store, "u1")
	seedRecipeDoc(t, store, "r1", "Soup")

	if err := svc.Toggle(context.Background(), "u1", "r1", true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := getUser(t, store, "u1"); !got.HasFavourite("r1") {
		t.Error("save did not add to favouriteRecipeIDs")
	}

	if err := svc.Toggle(context.Background(), "u1", "r1", false); err != nil {
		t.Fatalf("unsave: %v", err)
	}
	if got := getUser(t, store, "u1"); got.HasFavourite("r1") {
		t.Error("unsave did not remove from favouriteRecipeIDs")
	}
}

func TestFavouriteToggle_StaleViewRefused(t *testing.T) {
	store := newTestStore(t)
	svc := NewFavouriteService(store, testLogger())
	seedProfile(t, store, "u1")
	seedRecipeDoc(t, store, "r1", "Soup")

	if err := svc.Toggle(context.Background(), "u1", "r1", true); err != nil {
		t.Fatal(err)
	}

	// Second save from a view that predates the first: the server-side set
	// already holds r1, so the toggle is stale.
	err := svc.Toggle(context.Background(), "u1", "r1", true)
	if !errors.Is(err, apperror.ErrStale) {
		t.Errorf("got %v, want ErrStale", err)
	}
	if got := getUser(t, store, "u1"); len(got.FavouriteRecipeIDs) != 1 {
		t.Errorf("stale toggle wrote anyway: %v", got.FavouriteRecipeIDs)
	}

	// Unsave of something never saved is stale in the other direction.
	seedRecipeDoc(t, store, "r2", "Salad")
	err = svc.Toggle(context.Background(), "u1", "r2", false)
	if !errors.Is(err, apperror.ErrStale) {
		t.Errorf("got %v, want ErrStale", err)
	}
}

func TestFavouriteToggle_MissingRecipe(t *testing.T) {
	store := newTestStore(t)
	svc := NewFavouriteService(store, testLogger())
	seedProfile(t, store, "u1")

	err := svc.Toggle(context.Background(), "u1", "ghost", true)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestFavouriteToggle_Anonymous(t *testing.T) {
	svc := NewFavouriteService(newTestStore(t), testLogger())
	err := svc.Toggle(context.Background(), "", "r1", true)
	if !errors.Is(err, apperror.ErrAuthRequired) {
		t.Errorf("got %v, want ErrAuthRequired", err)
	}
}

func TestProfileUpdate(t *testing.T) {
	store := newTestStore(t)
	svc := NewProfileService(store, testLogger())
	seedProfile(t, store, "u1")

	user, err := svc.Update(context.Background(), "u1", ProfileInput{
		Username:  "new-name",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Bio:       "I cook sometimes",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if user.Username != "new-name" || user.FirstName != "Ada" {
		t.Errorf("updated = %+v", user)
	}
	if user.ProfilePicURL != model.DefaultProfilePic {
		t.Errorf("empty pic should fall back to default, got %q", user.ProfilePicURL)
	}
	if user.Email != "u1@example.com" {
		t.Errorf("email must survive a profile edit, got %q", user.Email)
	}
}

func TestProfileUpdate_Validation(t *testing.T) {
	store := newTestStore(t)
	svc := NewProfileService(store, testLogger())
	seedProfile(t, store, "u1")

	_, err := svc.Update(context.Background(), "u1", ProfileInput{Username: ""})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}

	_, err = svc.Update(context.Background(), "", ProfileInput{Username: "x"})
	if !errors.Is(err, apperror.ErrAuthRequired) {
		t.Errorf("got %v, want ErrAuthRequired", err)
	}
}
