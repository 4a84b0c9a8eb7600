package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"codesync/pkg/interfaces"
	"codesync/pkg/types"
)

// Markup files are shown, never run
var markupMessages = map[string]string{
	".html": "HTML files can't be executed directly in terminal.",
	".htm":  "HTML files can't be executed directly in terminal.",
	".css":  "CSS files can't be executed directly in terminal.",
	".md":   "Markdown files can't be executed directly in terminal.",
}

// auditTimeout bounds a single audit log write
const auditTimeout = 5 * time.Second

// registration binds an extension to an executor and its budget
type registration struct {
	language string
	executor interfaces.Executor
	budget   time.Duration
}

// Dispatcher routes execution requests to executors by file extension and
// publishes every result to the requesting room
// ARCHITECTURAL DISCOVERY: Runs happen on their own goroutines so a hung program
// never stalls the event core; the broadcaster is safe for concurrent use
type Dispatcher struct {
	broadcaster  interfaces.Broadcaster
	executionLog interfaces.ExecutionLog
	throttle     *Throttle

	mu        sync.RWMutex
	executors map[string]registration
	closed    bool
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher. executionLog and throttle may be nil.
func NewDispatcher(broadcaster interfaces.Broadcaster, executionLog interfaces.ExecutionLog, throttle *Throttle) *Dispatcher {
	return &Dispatcher{
		broadcaster:  broadcaster,
		executionLog: executionLog,
		throttle:     throttle,
		executors:    make(map[string]registration),
	}
}

// Register binds an extension (".js") to an executor. Registering again replaces it.
func (d *Dispatcher) Register(extension, language string, executor interfaces.Executor, budget time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executors[extension] = registration{language: language, executor: executor, budget: budget}
}

// Extensions returns the number of registered extensions
func (d *Dispatcher) Extensions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.executors)
}

// Dispatch runs a request synchronously and always returns a result
// FUNCTIONAL DISCOVERY: Every failure, including executor panics, is folded into
// ErrorText so it can be broadcast exactly like a success
func (d *Dispatcher) Dispatch(ctx context.Context, req *types.ExecutionRequest) (result types.ExecutionResult) {
	result, _ = d.dispatch(ctx, req)
	return result
}

// dispatch also reports the language label used for the audit log
func (d *Dispatcher) dispatch(ctx context.Context, req *types.ExecutionRequest) (result types.ExecutionResult, language string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Executor panic for %s: %v", req.FileName, r)
			result = types.NewErrorResult("", fmt.Sprintf("Execution error: %v", r))
		}
	}()

	if err := req.Validate(); err != nil && err != types.ErrMissingFileName {
		return types.NewErrorResult("", err.Error()), "invalid"
	}

	extension := req.Extension()
	if message, isMarkup := markupMessages[extension]; isMarkup {
		return types.ExecutionResult{StdoutText: message}, "markup"
	}

	d.mu.RLock()
	reg, exists := d.executors[extension]
	d.mu.RUnlock()
	if !exists {
		return types.ExecutionResult{StdoutText: unsupportedMessage(extension)}, "unsupported"
	}

	return reg.executor.Run(WithFileName(ctx, req.FileName), req.SourceText, reg.budget), reg.language
}

func unsupportedMessage(extension string) string {
	if extension == "" {
		return "Execution for files without an extension is not supported yet."
	}
	return fmt.Sprintf("Execution for %s files is not supported yet.", extension)
}

// Submit runs a request on its own goroutine and broadcasts the result to the whole room
// FUNCTIONAL DISCOVERY: The requester's disconnect does not cancel the run; the
// result goes to whoever is still in the room
func (d *Dispatcher) Submit(req *types.ExecutionRequest) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrDispatcherDown
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	log.Printf("Executing code for %s from %s", req.FileName, req.RequesterName)

	go func() {
		defer d.wg.Done()

		started := time.Now()
		var result types.ExecutionResult
		var language string
		if d.throttle != nil && !d.throttle.Allow(req.ConnectionID) {
			result, language = types.NewErrorResult("", ErrRateLimited.Error()), "throttled"
		} else {
			result, language = d.dispatch(context.Background(), req)
		}

		d.broadcaster.ToRoom(req.RoomID, types.EventExecutionResult, types.ExecutionResultMessage{
			Result:        result,
			RequesterName: req.RequesterName,
		})

		d.record(req, language, result, time.Since(started))
	}()
	return nil
}

// record appends the run to the audit log; failures are logged only
func (d *Dispatcher) record(req *types.ExecutionRequest, language string, result types.ExecutionResult, elapsed time.Duration) {
	if d.executionLog == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	record := &types.ExecutionRecord{
		ID:            uuid.New().String(),
		RoomID:        req.RoomID,
		FileID:        req.FileID,
		FileName:      req.FileName,
		Language:      language,
		RequesterName: req.RequesterName,
		Result:        result,
		DurationMS:    elapsed.Milliseconds(),
		Timestamp:     time.Now(),
	}
	if err := d.executionLog.RecordExecution(ctx, record); err != nil {
		log.Printf("Failed to record execution for room %s: %v", req.RoomID, err)
	}
}

// Forget drops per-connection throttle state
func (d *Dispatcher) Forget(connectionID string) {
	if d.throttle != nil {
		d.throttle.Forget(connectionID)
	}
}

// CleanupThrottle drops throttle state idle for longer than maxIdle
func (d *Dispatcher) CleanupThrottle(maxIdle time.Duration) int {
	if d.throttle == nil {
		return 0
	}
	return d.throttle.Cleanup(maxIdle)
}

// Close rejects new submissions and waits for in-flight runs to publish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
