// Package alert contains core domain types for the SOS alert business logic.
//
// It defines the alert Record, the Status and LocationStatus enums with their
// transition semantics, and the Position fix with map link derivation.
package alert
