package mailbox

import "errors"

var (
	// ErrMessageNotFound is returned when no file matches the message id
	ErrMessageNotFound = errors.New("message not found")

	// ErrMissingID is returned for messages without an id
	ErrMissingID = errors.New("message id is required")

	// ErrMissingProvider is returned for messages without a provider
	ErrMissingProvider = errors.New("message provider is required")
)
