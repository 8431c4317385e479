package model

import "time"

// Community is a document in the communities collection.
//
// MembersUID is a set of user IDs mutated only via add-to-set /
// remove-from-set; the creator is a member from the moment of creation.
// Communities are never deleted.
type Community struct {
	ID            string    `json:"id"`
	CommunityName string    `json:"communityName"`
	Description   string    `json:"description"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	MembersUID    []string  `json:"membersUID"`
}

// HasMember reports whether userID is in the membership set.
func (c *Community) HasMember(userID string) bool {
	for _, id := range c.MembersUID {
		if id == userID {
			return true
		}
	}
	return false
}
