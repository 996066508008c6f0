// models/errors.go
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionEmpty means the page text was too short or held no offer.
	// It is not retried: an empty result is itself information.
	ErrExtractionEmpty = errors.New("no valid offers extracted")

	// ErrRenderFailure covers navigation errors, timeouts and pages with
	// insufficient content. Only this class of failure is retried.
	ErrRenderFailure = errors.New("render failed")

	// ErrMixedCarrier marks a pattern-valid candidate rejected because its legs
	// are flown by different airlines. It is a non-match, not a failure.
	ErrMixedCarrier = errors.New("mixed-carrier combination")

	// ErrLedgerConflict is an invariant violation: a second weekly_lowest row
	// for the same (route, depart, return). Fatal for the cycle.
	ErrLedgerConflict = errors.New("ledger uniqueness violated")
)

// RenderError is returned by renderers. It always matches ErrRenderFailure.
type RenderError struct {
	URL    string
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("render %s: %s", e.URL, e.Reason)
}

func (e *RenderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRenderFailure, e.Err}
	}
	return []error{ErrRenderFailure}
}
