// Package sanitizer normalizes free-form input before validation and storage.
//
// All functions are idempotent and never fail: invalid input comes back empty
// and is left for the validator to reject.
package sanitizer
