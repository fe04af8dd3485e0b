// Package apperr defines the error kinds the storefront surfaces to callers.
// Kinds are stable machine-readable strings; the UI branches on them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation       Kind = "VALIDATION_ERROR"
	KindNotFound         Kind = "NOT_FOUND"
	KindAlreadyReviewed  Kind = "ALREADY_REVIEWED"
	KindPurchaseRequired Kind = "PURCHASE_REQUIRED"
	KindAlreadyFavorited Kind = "ALREADY_FAVORITED"
	KindTransaction      Kind = "TRANSACTION_ERROR"
	KindInternal         Kind = "INTERNAL_ERROR"
	KindRateLimited      Kind = "RATE_LIMITED"
	KindConflict         Kind = "CONFLICT"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyReviewed  = errors.New("already reviewed")
	ErrPurchaseRequired = errors.New("purchase required")
	ErrAlreadyFavorited = errors.New("already favorited")
	ErrTransaction      = errors.New("transaction failed")
	ErrInternal         = errors.New("internal error")
	ErrRateLimited      = errors.New("rate limited")
	ErrConflict         = errors.New("conflict")
)

var sentinels = map[Kind]error{
	KindValidation:       ErrValidation,
	KindNotFound:         ErrNotFound,
	KindAlreadyReviewed:  ErrAlreadyReviewed,
	KindPurchaseRequired: ErrPurchaseRequired,
	KindAlreadyFavorited: ErrAlreadyFavorited,
	KindTransaction:      ErrTransaction,
	KindInternal:         ErrInternal,
	KindRateLimited:      ErrRateLimited,
	KindConflict:         ErrConflict,
}

// Error carries a kind, a message safe to show to the caller, and the
// underlying cause, which is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind's sentinel so errors.Is(err, ErrNotFound) works
// without exposing the cause chain.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// Validation creates a 400 error for missing or malformed input.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound creates a 404 error.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// AlreadyReviewed creates the error returned for a second review of a product.
func AlreadyReviewed() *Error {
	return &Error{Kind: KindAlreadyReviewed, Message: "You have already reviewed this product"}
}

// PurchaseRequired creates the error returned when the reviewer never bought the product.
func PurchaseRequired() *Error {
	return &Error{Kind: KindPurchaseRequired, Message: "You must purchase this product before reviewing"}
}

// AlreadyFavorited creates the error returned for a duplicate favorite.
func AlreadyFavorited() *Error {
	return &Error{Kind: KindAlreadyFavorited, Message: "Already in favorites"}
}

// Conflict creates a 409 error for a request that clashes with one already accepted.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// RateLimited creates a 429 error.
func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "Too many requests, please slow down"}
}

// Transaction wraps a failed multi-statement write. message is generic.
func Transaction(message string, err error) *Error {
	return &Error{Kind: KindTransaction, Message: message, Err: err}
}

// Internal wraps any other store failure. message is generic.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindAlreadyReviewed, KindAlreadyFavorited:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPurchaseRequired:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to the caller.
func PublicMessage(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
