// Package queue implements the durable, retrying task-processing engine.
// It provides mechanisms for deferring side-effecting work while offline,
// draining pending items when connectivity returns, retrying transient
// failures with capped exponential backoff, and surviving process restarts
// via persisted snapshots, ensuring no drain pass ever overlaps another.
//
// Serialization holds within a single process only. Two processes sharing
// one snapshot store under the same queue name may drain concurrently and
// duplicate side effects; run one engine per queue name.
package queue
