package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"codesync/pkg/types"
)

// DefaultJavaScriptBudget bounds in-process JavaScript runs
const DefaultJavaScriptBudget = 5 * time.Second

// JavaScriptExecutor runs source in a fresh goja runtime per request
// ARCHITECTURAL DISCOVERY: The runtime is built with only console and timer
// globals - no require, no filesystem and no network bindings exist inside it
type JavaScriptExecutor struct {
	outputLimit int
}

// NewJavaScriptExecutor creates a JavaScript executor
func NewJavaScriptExecutor() *JavaScriptExecutor {
	return &JavaScriptExecutor{outputLimit: DefaultOutputLimit}
}

// SetOutputLimit changes how many console bytes a run may produce before it is interrupted
func (e *JavaScriptExecutor) SetOutputLimit(limit int) {
	if limit > 0 {
		e.outputLimit = limit
	}
}

// Run implements interfaces.Executor
func (e *JavaScriptExecutor) Run(ctx context.Context, source string, budget time.Duration) types.ExecutionResult {
	if budget <= 0 {
		budget = DefaultJavaScriptBudget
	}

	vm := goja.New()
	out := newLimitedBuffer(e.outputLimit, func() {
		vm.Interrupt(fmt.Errorf("%w: more than %d bytes", ErrOutputLimit, e.outputLimit))
	})
	if err := installConsole(vm, out); err != nil {
		return types.NewErrorResult("", err.Error())
	}
	timers, err := installTimers(vm)
	if err != nil {
		return types.NewErrorResult("", err.Error())
	}

	program, err := compileScript(source)
	if err != nil {
		return types.NewErrorResult("", err.Error())
	}

	// TECHNICAL DISCOVERY: Interrupt is the only way to stop a goja loop from outside;
	// the runtime checks the flag between instructions
	deadline := time.AfterFunc(budget, func() {
		vm.Interrupt(fmt.Errorf("%w after %v", ErrTimedOut, budget))
	})
	defer deadline.Stop()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	value, err := vm.RunProgram(program)
	if err == nil {
		err = timers.drain(vm)
	}
	if err != nil {
		return types.NewErrorResult(out.String(), runtimeErrorText(err))
	}

	if value != nil && !goja.IsUndefined(value) {
		out.WriteString("\nReturn value: " + render(vm, value))
	}
	return types.ExecutionResult{StdoutText: out.String()}
}

// compileScript compiles source as a script, falling back to a function body
// FUNCTIONAL DISCOVERY: Users type "return 2+2" at top level, which is only
// legal inside a function - the wrapped form keeps the original error if it fails too
func compileScript(source string) (*goja.Program, error) {
	program, err := goja.Compile("main.js", source, false)
	if err == nil {
		return program, nil
	}

	wrapped, wrapErr := goja.Compile("main.js", "(function(){\n"+source+"\n})()", false)
	if wrapErr == nil {
		return wrapped, nil
	}
	return nil, err
}

// installConsole binds console.log/info/debug/error/warn to the transcript
func installConsole(vm *goja.Runtime, out *limitedBuffer) error {
	console := vm.NewObject()
	writer := func(prefix string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = render(vm, arg)
			}
			out.WriteString(prefix + strings.Join(parts, " ") + "\n")
			return goja.Undefined()
		}
	}

	bindings := map[string]string{
		"log":   "",
		"info":  "",
		"debug": "",
		"error": "ERROR: ",
		"warn":  "WARNING: ",
	}
	for name, prefix := range bindings {
		if err := console.Set(name, writer(prefix)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// render formats a value the way a browser console would print it:
// objects and arrays as indented JSON, everything else as its string form
func render(vm *goja.Runtime, value goja.Value) string {
	obj, ok := value.(*goja.Object)
	if !ok {
		return value.String()
	}
	if _, isFunc := goja.AssertFunction(obj); isFunc {
		return obj.String()
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return obj.String()
	}
	encoded, err := stringify(goja.Undefined(), obj, goja.Null(), vm.ToValue(2))
	if err != nil || goja.IsUndefined(encoded) {
		return obj.String()
	}
	return encoded.String()
}

// runtimeErrorText extracts the user-facing message from a goja failure
func runtimeErrorText(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause.Error()
		}
		return fmt.Sprint(interrupted.Value())
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		if obj, ok := exception.Value().(*goja.Object); ok {
			if message := obj.Get("message"); message != nil && !goja.IsUndefined(message) {
				return message.String()
			}
		}
		return exception.Value().String()
	}
	return err.Error()
}
