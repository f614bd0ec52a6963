package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrForbidden is a generic sentinel for privileged operations attempted without privilege.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError rejects a request synchronously; nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DuplicateInquiryError is returned when a candidate inquiry blends above the
// similarity cutoff against an existing active inquiry and no sufficient
// justification was supplied. Carries enough detail for the caller to resolve.
type DuplicateInquiryError struct {
	ExistingInquiryID uuid.UUID
	Similarity        float64
}

func (e *DuplicateInquiryError) Error() string {
	return fmt.Sprintf("duplicate inquiry: similarity %.3f against %s", e.Similarity, e.ExistingInquiryID)
}

// PendingAmendmentError is returned when a proposal targets a (node, field path)
// that already has a pending amendment.
type PendingAmendmentError struct {
	ExistingAmendmentID uuid.UUID
	NodeID              string
	FieldPath           string
}

func (e *PendingAmendmentError) Error() string {
	return fmt.Sprintf("pending amendment %s already exists for node %s path %s", e.ExistingAmendmentID, e.NodeID, e.FieldPath)
}

func IsConflict(err error) bool {
	var de *DuplicateInquiryError
	var pe *PendingAmendmentError
	return errors.As(err, &de) || errors.As(err, &pe)
}

// TransientError wraps an upstream failure (oracle, embedding service) that is
// retried with backoff and never surfaced as a user-facing failure.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func NewTransient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
