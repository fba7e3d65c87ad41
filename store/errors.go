package store

import "errors"

var (
	// ErrNotFound is returned when a record doesn't exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrAlreadyExists is returned when a create collides with an existing
	// record: a taken primary key, or a duplicate email at registration.
	ErrAlreadyExists = errors.New("store: record already exists")

	// ErrForbidden is returned by callers at the API boundary when an
	// ownership check fails. Nothing in this module returns it: the store
	// never performs ownership checks, and the persistence packages trust
	// their callers. It is defined here so handler layers share one error
	// taxonomy instead of minting their own sentinel.
	ErrForbidden = errors.New("store: operation not permitted")
)
