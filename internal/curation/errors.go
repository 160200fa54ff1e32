package curation

import "errors"

// Sentinel errors for the curation layer's error taxonomy (§7), wrapped
// with context the same way internal/ai wraps its own AIError/
// ClassifiedError pair.
var (
	// ErrLayerIntegrity is returned when a loaded layer has a broken
	// reference (a Suggestion pointing at a missing Observation, etc).
	// Fatal to load — the layer must not be mutated.
	ErrLayerIntegrity = errors.New("curation: broken referential integrity")

	// ErrStaleSource is returned by Apply when the source content hash no
	// longer matches the hash the layer was computed from.
	ErrStaleSource = errors.New("curation: source hash mismatch, layer is stale")

	// ErrCancelled is returned when a cooperative cancellation signal fires
	// at a safe boundary; callers should discard partial work.
	ErrCancelled = errors.New("curation: operation cancelled")

	// ErrNotFound is returned when a mutation operation is given an id that
	// does not exist in the layer.
	ErrNotFound = errors.New("curation: id not found")
)

// IntegrityError explains which reference broke referential integrity.
type IntegrityError struct {
	Kind string // "suggestion->observation", "decision->suggestion", "evidence_row"
	ID   string
}

func (e *IntegrityError) Error() string {
	return "curation: " + e.Kind + " reference broken for id " + e.ID
}

func (e *IntegrityError) Unwrap() error { return ErrLayerIntegrity }
