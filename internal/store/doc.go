// Package store defines the persistence contract for queue snapshots and
// the wire codec shared by every backend. The interfaces abstract the
// underlying storage mechanism from the engine, allowing the queue's rules
// to remain independent of whether a snapshot lives in a flat file, an
// embedded SQLite database, or Postgres.
package store
