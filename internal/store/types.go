package store

import (
	"errors"

	"studyhall-backend/internal/scope"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ChatEntry is a chat line to be appended to the chat log.
type ChatEntry struct {
	Scope   scope.Scope
	Role    string
	Sender  string
	Message string
	Admin   bool
}

// ScopeCount is the number of seats configured for a scope.
type ScopeCount struct {
	Floor int
	Zone  *string
	Seats int64
}
