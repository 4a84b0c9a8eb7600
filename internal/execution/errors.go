package execution

import "errors"

// Execution error values. They never leave the dispatcher as Go errors; their
// text ends up in ExecutionResult.ErrorText.
var (
	ErrTimedOut       = errors.New("execution timed out")
	ErrRateLimited    = errors.New("execution rate limit exceeded")
	ErrScratchWrite   = errors.New("failed to prepare source file")
	ErrDispatcherDown = errors.New("execution dispatcher is shut down")
	ErrOutputLimit    = errors.New("output limit exceeded")
	ErrUnconfined     = errors.New("execution refused: interpreter sandbox unavailable")

	errTooManyTimers = errors.New("too many pending timers")
)
