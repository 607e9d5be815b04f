package domain

import "time"

// SyncStatus is a derived view of queue and network health. It is
// recomputed from the live queue and the network monitor after every
// mutation and is never persisted or treated as a source of truth.
type SyncStatus struct {
	// IsOnline mirrors the network monitor's current state.
	IsOnline bool `json:"isOnline"`

	// LastSyncTime is the completion time of the most recent successful
	// item execution. Zero until the first success.
	LastSyncTime time.Time `json:"lastSyncTime"`

	// PendingItems is the number of items currently awaiting execution,
	// including items scheduled for a future retry.
	PendingItems int `json:"pendingItems"`

	// FailedItems counts items terminally dropped this session, whether
	// from a terminal error classification or retry budget exhaustion.
	FailedItems int `json:"failedItems"`
}
