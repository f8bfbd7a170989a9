package models

import "time"

// Post is a piece of content created by a user. Author is filled in by the join at read time.
type Post struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  string    `gorm:"size:36;index;not null" json:"-"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"creation_time"`
	UpdatedAt time.Time `json:"modification_time"`
}

// PostView is the author-denormalized read-model of a post.
type PostView struct {
	ID               string    `json:"id"`
	Content          string    `json:"content"`
	CreationTime     time.Time `json:"creation_time"`
	ModificationTime time.Time `json:"modification_time"`
	Author           Author    `json:"author"`
}

// View converts p into its read-model. ok is false when the author did not resolve.
func (p Post) View() (PostView, bool) {
	if p.Author == nil {
		return PostView{}, false
	}
	return PostView{
		ID:               p.ID,
		Content:          p.Content,
		CreationTime:     p.CreatedAt.UTC(),
		ModificationTime: p.UpdatedAt.UTC(),
		Author:           AuthorOf(*p.Author),
	}, true
}
