package model

import (
	"strconv"
	"time"
)

// Recipe is a document in the recipe collection.
//
// Description, Ingredients and Instructions are stored with newlines
// normalized to "<br>" so the rendered pages can inject them directly; the
// edit form restores the newlines (see service.RestoreNewlines).
//
// PrepTime and CookTime are preformatted display strings ("1 hour 30
// minutes", "45 minutes", "" when unset); see FormatTime.
//
// ImageURL is an inline data URL, bounded in byte size so the whole document
// stays under the store's per-document limit.
//
// CommunityIDs is the set of communities the recipe was shared into,
// queried with array-contains on the community page. Tags is a single
// cooking-implement label ("pot", "bowl", ...), despite the plural name the
// original schema gave it.
type Recipe struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Ingredients        string    `json:"ingredients"`
	Instructions       string    `json:"instructions"`
	PrepTime           string    `json:"prepTime"`
	CookTime           string    `json:"cookTime"`
	Difficulty         string    `json:"difficulty"`
	ImageURL           string    `json:"imageUrl"`
	SubmittedByUserID  string    `json:"submittedByUserID"`
	SubmittedTimestamp time.Time `json:"submittedTimestamp"`
	CommunityIDs       []string  `json:"communityId"`
	Tags               string    `json:"tags"`
}

// FormatTime renders a duration in minutes the way the recipe forms expect.
// Zero or negative input yields the empty string, meaning "not set".
func FormatTime(minutes int) string {
	switch {
	case minutes >= 120:
		return strconv.Itoa(minutes/60) + " hours " + strconv.Itoa(minutes%60) + " minutes"
	case minutes >= 60:
		return "1 hour " + strconv.Itoa(minutes%60) + " minutes"
	case minutes > 0:
		return strconv.Itoa(minutes) + " minutes"
	default:
		return ""
	}
}
