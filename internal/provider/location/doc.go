// Package location defines the location provider collaborator: permission
// state per subject, a one-shot position fetch and a cancellable continuous
// position stream.
//
// RedisFeed consumes the feed the mobile gateway relays through redis.
// NoopProvider stands in when no gateway is configured.
package location
