package model

// Sentinel author names used when a referenced user document is missing or
// its lookup fails. The feed and detail pages show "unknown"; the saved-card
// path historically shows "deleted". Both spellings are kept so existing
// styling that matches on them keeps working.
const (
	AuthorUnknown = "unknown"
	AuthorDeleted = "deleted"
)

// RecipeView is the denormalized projection of a Recipe joined with its
// author's user document. It is built for display only and never persisted;
// it is recomputed on every fetch.
type RecipeView struct {
	Recipe
	// Author is the author's username prefixed with "@", or a bare
	// sentinel ("unknown" / "deleted") when the user document cannot
	// be fetched.
	Author string `json:"author"`
	// Saved is true when the viewing user has this recipe in their
	// favourites. Only meaningful on views built for a signed-in user.
	Saved bool `json:"saved"`
}

// CommunityView is a Community joined with its creator's username.
type CommunityView struct {
	Community
	Creator     string `json:"creator"`
	MemberCount int    `json:"memberCount"`
}
