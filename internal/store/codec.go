package store

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/drift/internal/domain"
)

// EncodeSnapshot serializes an ordered item list to the snapshot wire
// format: a JSON array of item records. Both numeric and string fields
// round-trip exactly; timestamps are RFC 3339 with nanosecond precision.
// A nil slice encodes the same as an empty one.
func EncodeSnapshot(items []domain.QueueItem) ([]byte, error) {
	if items == nil {
		items = []domain.QueueItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encoding snapshot: %v", domain.ErrStorage, err)
	}
	return data, nil
}

// DecodeSnapshot parses snapshot bytes back into an ordered item list.
// Empty input decodes to an empty list. Malformed JSON or an item that
// violates the queue item invariants yields an error wrapping
// domain.ErrStorage so callers can treat the snapshot as corrupt without
// aborting.
func DecodeSnapshot(data []byte) ([]domain.QueueItem, error) {
	if len(data) == 0 {
		return []domain.QueueItem{}, nil
	}

	var items []domain.QueueItem
	if err := json.Unmarshal(data, &items); err != nil {
		return []domain.QueueItem{}, fmt.Errorf(
			"%w: decoding snapshot: %v", domain.ErrStorage, err,
		)
	}
	if items == nil {
		items = []domain.QueueItem{}
	}

	for idx, item := range items {
		if err := item.Validate(); err != nil {
			return []domain.QueueItem{}, fmt.Errorf(
				"%w: snapshot item %d: %v", domain.ErrStorage, idx, err,
			)
		}
		// time.Time carries a wall-clock reading plus location; pin to UTC
		// so a decoded snapshot compares field-for-field with its source.
		items[idx].CreatedAt = item.CreatedAt.UTC()
		items[idx].ScheduledAt = item.ScheduledAt.UTC()
	}

	return items, nil
}
