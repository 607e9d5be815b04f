package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies which registered executor handles a queue item.
type TaskType string

// The closed set of task types the engine dispatches on. Executor
// registration validates against this set so an unknown tag is rejected
// at wiring time rather than at dispatch time.
const (
	TaskTypeNetworkCall  TaskType = "network_call"
	TaskTypeDataSync     TaskType = "data_sync"
	TaskTypeFileTransfer TaskType = "file_transfer"
	TaskTypeCompute      TaskType = "compute"
	TaskTypeBackup       TaskType = "backup"
)

// ValidTaskTypes returns every member of the closed task type set.
func ValidTaskTypes() []TaskType {
	return []TaskType{
		TaskTypeNetworkCall,
		TaskTypeDataSync,
		TaskTypeFileTransfer,
		TaskTypeCompute,
		TaskTypeBackup,
	}
}

// IsValid reports whether t is a member of the closed task type set.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeNetworkCall, TaskTypeDataSync, TaskTypeFileTransfer,
		TaskTypeCompute, TaskTypeBackup:
		return true
	}
	return false
}

// QueueItem is a unit of deferred work. Items are created by Enqueue,
// mutated only by the engine during a drain pass (retry bookkeeping), and
// destroyed on success, terminal failure, or retry budget exhaustion.
type QueueItem struct {
	// ID is unique among pending items and sorts chronologically within a
	// type because it embeds the creation timestamp.
	ID string `json:"id"`

	// Type selects the executor that handles this item.
	Type TaskType `json:"type"`

	// Payload is opaque to the engine and understood only by the matching
	// executor.
	Payload json.RawMessage `json:"data"`

	// CreatedAt is the enqueue time.
	CreatedAt time.Time `json:"createdAt"`

	// ScheduledAt is the earliest time the item may next be attempted.
	// Equal to CreatedAt until the first retryable failure.
	ScheduledAt time.Time `json:"scheduledAt"`

	// RetryCount is the number of failed attempts so far.
	// Invariant: 0 <= RetryCount <= MaxRetries.
	RetryCount int `json:"retryCount"`

	// MaxRetries is the producer-supplied ceiling on retries. An item at
	// the ceiling that fails again is removed, never retried further.
	MaxRetries int `json:"maxRetries"`

	// Priority is an advisory ordering hint. It only orders items within
	// the same due batch on an independent-flavor queue; it never preempts
	// an in-flight item. Higher values run earlier.
	Priority int `json:"priority,omitempty"`
}

// NewItemID generates a queue item ID of the form
// {type}-{createdAtUnixMilli}-{suffix}. The millisecond timestamp makes IDs
// of one type sort in creation order; the uuid suffix guarantees uniqueness
// for items created within the same millisecond.
func NewItemID(t TaskType, createdAt time.Time) string {
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("%s-%d-%s", t, createdAt.UnixMilli(), suffix)
}

// Validate checks the item invariants that every stored or in-memory item
// must satisfy.
func (i QueueItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: item ID is empty", ErrInvalidItem)
	}
	if !i.Type.IsValid() {
		return fmt.Errorf("%w: unknown task type %q", ErrInvalidItem, i.Type)
	}
	if i.MaxRetries < 0 {
		return fmt.Errorf("%w: maxRetries must be >= 0, got %d", ErrInvalidItem, i.MaxRetries)
	}
	if i.RetryCount < 0 || i.RetryCount > i.MaxRetries {
		return fmt.Errorf(
			"%w: retryCount %d outside [0, %d]",
			ErrInvalidItem, i.RetryCount, i.MaxRetries,
		)
	}
	return nil
}

// Descriptor is the producer-facing request to enqueue new work. The
// validate tags are enforced by the engine before an item is created.
type Descriptor struct {
	Type       TaskType        `json:"type"       validate:"required,oneof=network_call data_sync file_transfer compute backup"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries int             `json:"maxRetries" validate:"gte=0,lte=100"`
	Priority   int             `json:"priority"`
}
