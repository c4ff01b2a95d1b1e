package domain

import "errors"

var (
	// ErrNotFound indicates a lookup of a record that is not in the registry.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidHandle indicates the raw input could not be normalized into a
	// Letterboxd handle.
	ErrInvalidHandle = errors.New("invalid letterboxd handle")

	// ErrUnknownUser indicates the handle is well-formed but Letterboxd
	// reports no such member.
	ErrUnknownUser = errors.New("unknown letterboxd user")

	// ErrFeedFetch indicates the feed document could not be retrieved or
	// parsed. Transient and local to a single user's poll cycle.
	ErrFeedFetch = errors.New("feed fetch failed")
)
