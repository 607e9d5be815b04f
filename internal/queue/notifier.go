package queue

import (
	"encoding/json"

	"github.com/phrazzld/drift/internal/domain"
)

// Notifier is the external notification collaborator informed of item
// settlements. Both calls are fire-and-forget: the engine recovers and
// logs any panic a notifier raises and never lets it back into the
// queue's control flow.
// Version: 1.0
type Notifier interface {
	// NotifyComplete reports a successfully executed item and its result.
	NotifyComplete(item domain.QueueItem, result json.RawMessage)

	// NotifyFailed reports a terminally dropped item and the error detail.
	NotifyFailed(item domain.QueueItem, err error)
}

// NopNotifier discards all notifications. Used when the host application
// does not wire a notification collaborator.
type NopNotifier struct{}

// NotifyComplete implements Notifier.
func (NopNotifier) NotifyComplete(domain.QueueItem, json.RawMessage) {}

// NotifyFailed implements Notifier.
func (NopNotifier) NotifyFailed(domain.QueueItem, error) {}
