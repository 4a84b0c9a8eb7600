package hub

import "errors"

// Hub-specific error types
var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrNilEvent          = errors.New("event is nil")
	ErrUnknownEventType  = errors.New("unknown event type")
	ErrMissingRoomID     = errors.New("event carries no usable room id")
	ErrExecutionDisabled = errors.New("no execution dispatcher configured")
)
