package errors

import "errors"

var (
	ErrPropertyNotFound = errors.New("property not found")

	ErrInvalidID = errors.New("invalid property ID format")

	// ErrRangeTaken is returned when an occupied range would overlap one already recorded.
	ErrRangeTaken = errors.New("date range already occupied")
)
