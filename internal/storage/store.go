// Package storage persists one document per user: accounts, expenses and
// profile fields, with a version that increases on every write.
package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrEmptyUserID is returned for writes without an owner.
var ErrEmptyUserID = errors.New("empty user id")

// Store is the document store contract. GetUserRecord returns nil and no
// error for a user that has never written anything.
type Store interface {
	GetUserRecord(ctx context.Context, userID string) (*core.UserRecord, error)
	SetUserRecord(ctx context.Context, userID string, patch core.UserRecordPatch, merge bool) (core.UserRecord, error)
	// Update runs fn on the current record (zero value when absent) and
	// stores the result atomically with respect to other writers.
	Update(ctx context.Context, userID string, fn func(*core.UserRecord) error) (core.UserRecord, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	Close() error
}
