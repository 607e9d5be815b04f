// Package domain defines the core entities and errors of the sync queue.
// It holds the queue item model, the closed set of task types, the derived
// status view, and the error taxonomy that drives retry classification,
// keeping the engine's business rules independent of storage and transport.
package domain
