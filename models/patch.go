package models

import (
	"bytes"
	"encoding/json"
)

// Optional is a field of a patch that is either present (Set) or absent.
// A JSON null or a missing key both decode as absent.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// UnmarshalJSON marks the field present unless the literal is null.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		o.Value, o.Set = zero, false
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

// MarshalJSON encodes absent values as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UserPatch lists the user fields that may be modified.
// Credential is never decoded from requests; it is set by the password change flow.
type UserPatch struct {
	Name       Optional[string] `json:"name"`
	Email      Optional[string] `json:"email"`
	Credential Optional[string] `json:"-"`
}

// Empty reports whether no field is present.
func (p UserPatch) Empty() bool {
	return !p.Name.Set && !p.Email.Set && !p.Credential.Set
}

// ContentPatch is the patch accepted by posts and comments.
type ContentPatch struct {
	Content Optional[string] `json:"content"`
}

// Empty reports whether no field is present.
func (p ContentPatch) Empty() bool {
	return !p.Content.Set
}
