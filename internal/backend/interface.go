// Package backend opens the storage and mirror implementations selected by
// configuration.
package backend

import (
	"context"

	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// StoreResult is an opened user record store.
type StoreResult struct {
	Store storage.Store
	// Ready reports whether the store can serve requests.
	Ready   func(context.Context) error
	Cleanup CleanupFunc
}

// AuditResult is an opened audit mirror.
type AuditResult struct {
	Writer sheets.AuditWriter
	Remote bool
}

// BackendType names a store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
