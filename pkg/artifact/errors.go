package artifact

import "errors"

var (
	// ErrNotFound is returned when an artifact id or blob hash has no
	// live record
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidHash is returned for hashes that are not 64 lowercase
	// hex characters
	ErrInvalidHash = errors.New("invalid content hash")

	// ErrContentImmutable is returned when an update tries to change
	// content-derived fields
	ErrContentImmutable = errors.New("artifact content is immutable")
)
