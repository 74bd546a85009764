// Package primitives provides the foundational data structures for the saga
// engine: state labels, the terminal marker, the immutable Event record,
// the Bag payload and definition fingerprints.
//
// Core invariants:
// - Events are immutable once created
// - The empty State is reserved as the terminal marker
// - Fingerprints are deterministic for equal definitions
package primitives
