package models

import "time"

// Comment represents a reply to a post.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"size:36;index;not null" json:"post"`
	AuthorID  string    `gorm:"size:36;index;not null" json:"-"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"-"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"creation_time"`
	UpdatedAt time.Time `json:"modification_time"`
}

// CommentView is the author-denormalized read-model of a comment.
type CommentView struct {
	ID               string    `json:"id"`
	Content          string    `json:"content"`
	Post             string    `json:"post"`
	CreationTime     time.Time `json:"creation_time"`
	ModificationTime time.Time `json:"modification_time"`
	Author           Author    `json:"author"`
}

// View converts c into its read-model. ok is false when the author did not resolve.
func (c Comment) View() (CommentView, bool) {
	if c.Author == nil {
		return CommentView{}, false
	}
	return CommentView{
		ID:               c.ID,
		Content:          c.Content,
		Post:             c.PostID,
		CreationTime:     c.CreatedAt.UTC(),
		ModificationTime: c.UpdatedAt.UTC(),
		Author:           AuthorOf(*c.Author),
	}, true
}
