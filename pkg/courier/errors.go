package courier

import "errors"

var (
	// ErrAlreadyClaimed is returned when a live claim holds the message
	ErrAlreadyClaimed = errors.New("message already claimed")

	// ErrNotClaimed is returned when complete/fail hits an unclaimed
	// message
	ErrNotClaimed = errors.New("message not claimed")

	// ErrClaimedByOther is returned when the acting agent does not hold
	// the claim
	ErrClaimedByOther = errors.New("message claimed by another agent")

	// ErrHandlerClosed is returned when the debounce handler has shut
	// down
	ErrHandlerClosed = errors.New("debounce handler closed")

	// ErrUnknownProject is returned for webhook slugs with no registry
	// entry
	ErrUnknownProject = errors.New("unknown project slug")
)
