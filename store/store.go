// Package store provides durable persistence for engine snapshots. The engine
// itself runs only in memory; a host that wants crash recovery saves a
// snapshot after each mutation and restores it on boot.
package store

import "github.com/voteparty/knockout/party"

// Store persists engine snapshots. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save durably replaces the stored snapshot.
	Save(*party.Snapshot) error
	// Load returns the stored snapshot, reporting false when none exists.
	Load() (*party.Snapshot, bool, error)
	Close() error
}
