package models

import (
	"time"

	"gorm.io/gorm"
)

// Role distinguishes ordinary members from the protected administrator account.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Privileged is implemented by anything that can answer whether it acts with admin rights.
type Privileged interface {
	IsAdmin() bool
}

// User is a signed-up account. Credential holds a bcrypt hash; an empty credential means no
// password has been set.
type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	Email      string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Credential string    `gorm:"size:255" json:"-"`
	Role       Role      `gorm:"size:16;not null;default:member" json:"-"`
	Followings []string  `gorm:"-" json:"-"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// IsAdmin reports whether the user is the protected administrator.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// HasCredential reports whether a password was set.
func (u *User) HasCredential() bool {
	return u.Credential != ""
}

// Follows reports whether id is in the user's followings set.
func (u *User) Follows(id string) bool {
	for _, f := range u.Followings {
		if f == id {
			return true
		}
	}
	return false
}

// BeforeCreate hook ensures timestamps and role are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleMember
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Author is the denormalized author embedded into post and comment read-models.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthorOf builds the denormalized author of u.
func AuthorOf(u User) Author {
	return Author{ID: u.ID, Name: u.Name, Email: u.Email}
}
