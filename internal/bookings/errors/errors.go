package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrApprovalNotFound = errors.New("approval not found")

	// ErrStatusChanged means a conditional update matched nothing because another
	// workflow moved the document first.
	ErrStatusChanged = errors.New("document status changed concurrently")
)
