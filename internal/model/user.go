// Package model defines the data structures used throughout the application.
package model

// Collection names in the document store.
//
// The recipe collection is singular for historical reasons: the production
// data was created under that name, and renaming a collection means
// rewriting every document, so we keep it.
const (
	CollectionUsers       = "users"
	CollectionRecipes     = "recipe"
	CollectionCommunities = "communities"
)

// Default profile values applied at signup.
const (
	DefaultBio        = "New PotLuck user!"
	DefaultProfilePic = "/assets/images/profile-pic-placeholder.jpg"
)

// User is the profile document stored at users/{id}.
//
// The document ID equals the identity-provider user ID, so a session's
// subject claim is also the key of its profile document.
//
// FavouriteRecipeIDs and CommunityIDs are logically sets: they are only
// mutated through the store's add-to-set / remove-from-set operations, which
// keep them free of duplicates even under concurrent writers.
type User struct {
	ID                 string   `json:"id"`
	Username           string   `json:"username"`
	FirstName          string   `json:"firstName"`
	LastName           string   `json:"lastName"`
	Bio                string   `json:"bio"`
	Email              string   `json:"email"`
	ProfilePicURL      string   `json:"profilePicUrl"`
	FavouriteRecipeIDs []string `json:"favouriteRecipeIDs"`
	CommunityIDs       []string `json:"communityIDs"`
}

// NewUser builds a profile document with signup defaults.
// The caller supplies the identity-provider ID, the chosen display name and
// the verified email.
func NewUser(id, username, email string) *User {
	return &User{
		ID:                 id,
		Username:           username,
		Email:              email,
		Bio:                DefaultBio,
		ProfilePicURL:      DefaultProfilePic,
		FavouriteRecipeIDs: []string{},
		CommunityIDs:       []string{},
	}
}

// HasFavourite reports whether recipeID is in the user's saved set.
func (u *User) HasFavourite(recipeID string) bool {
	for _, id := range u.FavouriteRecipeIDs {
		if id == recipeID {
			return true
		}
	}
	return false
}

// InCommunity reports whether communityID is in the user's membership set.
func (u *User) InCommunity(communityID string) bool {
	for _, id := range u.CommunityIDs {
		if id == communityID {
			return true
		}
	}
	return false
}
