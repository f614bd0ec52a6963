package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromDomain maps pipeline errors onto HTTP status codes. Conflicts keep enough
// detail (existing id, similarity) in the wrapped error for the caller to resolve.
func FromDomain(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var ve *pkgerrors.ValidationError
	if errors.As(err, &ve) {
		return New(http.StatusBadRequest, "validation_failed", err)
	}
	var de *pkgerrors.DuplicateInquiryError
	if errors.As(err, &de) {
		return New(http.StatusConflict, "duplicate_inquiry", err)
	}
	var pe *pkgerrors.PendingAmendmentError
	if errors.As(err, &pe) {
		return New(http.StatusConflict, "pending_amendment_exists", err)
	}
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, pkgerrors.ErrForbidden):
		return New(http.StatusForbidden, "forbidden", err)
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
