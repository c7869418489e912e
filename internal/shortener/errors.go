package shortener

import "errors"

var (
	// ErrNotFound means no link exists for the code.
	ErrNotFound = errors.New("short link not found")
	// ErrExpired means the link exists but is past its expiry.
	ErrExpired = errors.New("short link expired")
	// ErrConflict means the code is already committed.
	ErrConflict = errors.New("short code already exists")
	// ErrAllocationExhausted means the bounded allocation attempts all
	// collided. Callers retry later or widen the code space; the allocator
	// does not keep retrying because repeated failure at this volume
	// indicates saturation, not transient contention.
	ErrAllocationExhausted = errors.New("short code allocation attempts exhausted")
)
