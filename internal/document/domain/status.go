// Package domain holds the lifecycle state machine shared by invoices
// and receipts.
package domain

import "errors"

// Status is the lifecycle state of a billing document.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
	StatusSent      Status = "SENT"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrInvalidState = errors.New("invalid_document_state")
)

// transitions is the closed set of legal moves. Cancellation is only
// reachable before a document has been sent; issued numbers are never
// recycled by cancelling.
var transitions = map[Status]map[Status]bool{
	StatusDraft: {
		StatusDraft:     true, // edit
		StatusFinalized: true,
		StatusCancelled: true,
	},
	StatusFinalized: {
		StatusSent:      true,
		StatusPaid:      true,
		StatusCancelled: true,
	},
	StatusSent: {
		StatusPaid: true,
	},
	StatusPaid:      {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// Transition validates a move and returns the target state.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidState
	}
	return to, nil
}

// Editable reports whether the document's content may still change.
// Once finalized, line items and amounts are immutable.
func (s Status) Editable() bool {
	return s == StatusDraft
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}
