// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates the caller supplied invalid input.
var ErrValidation = errors.New("validation failed")

// ErrStorage indicates the conversation log store failed. It is an
// infrastructure failure, reported separately from the conversation.
var ErrStorage = errors.New("log storage failed")
