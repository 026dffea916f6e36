package models

import "time"

// User is the store's view of an account. Presence fields are updated by
// the relay on connect/disconnect.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar,omitempty"`
	Online     bool      `json:"online"`
	LastActive time.Time `json:"lastActive"`
}
