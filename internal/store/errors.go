package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyClaimed is returned when a conditional claim update matched an
// existing item whose claim state was already terminal.
var ErrAlreadyClaimed = errors.New("already claimed")

// ErrDuplicateEmail is returned when an insert violates the users email
// uniqueness constraint.
var ErrDuplicateEmail = errors.New("email already registered")
