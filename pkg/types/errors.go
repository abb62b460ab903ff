package types

import "errors"

// Storage errors. Callers test for them with errors.Is; the storage layer
// wraps them with the table, column, or path involved.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
)
