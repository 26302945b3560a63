// Package services defines the business logic for document check delivery:
// submitting documents to the scoring bot, applying webhook results, and
// sweeping failed deliveries. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrRequestNotFound indicates that the referenced check request does
	// not exist in any request table.
	ErrRequestNotFound = errors.New("check request not found")

	// ErrEmptyDocument is returned when a submission carries no document
	// bytes.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrDocumentTooLarge is returned when a submitted document exceeds the
	// configured maximum file size. The document is rejected before it is
	// stored or sent anywhere.
	ErrDocumentTooLarge = errors.New("document too large")

	// ErrBadSignature is returned when a webhook call carries a signature
	// that does not match the configured shared secret. No row is mutated.
	ErrBadSignature = errors.New("invalid signature")
)
