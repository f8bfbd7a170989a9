package models

import "time"

// Follow is a directed follow edge. Only the SQL store persists edges as rows; the document
// stores keep them embedded in User.Followings.
type Follow struct {
	FollowerID  string    `gorm:"primaryKey;size:36" json:"follower_id"`
	FollowingID string    `gorm:"primaryKey;size:36;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}
