// Package records implements the record store collaborator: documents keyed
// by id over the alert, notification and subscriber collections, with
// last-write-wins updates, an atomic batch write and filtered live
// subscriptions.
//
// Two backends are provided: MemoryStore for tests and single-node runs, and
// RedisStore for deployments, which keeps one JSON document per key and drives
// live subscriptions through a pub/sub change channel.
package records
