package execution

import (
	"github.com/dop251/goja"
)

// maxPendingTimers bounds how many callbacks one run may schedule
const maxPendingTimers = 10000

type timer struct {
	id       int64
	due      int64
	seq      int64
	interval int64 // zero for setTimeout
	fn       goja.Callable
	args     []goja.Value
}

// timerQueue backs setTimeout and setInterval with a virtual clock.
// Callbacks run after the top-level program, in due order, inside the same budget.
type timerQueue struct {
	now     int64
	nextID  int64
	seq     int64
	pending map[int64]*timer
}

// installTimers binds setTimeout/setInterval/clearTimeout/clearInterval
func installTimers(vm *goja.Runtime) (*timerQueue, error) {
	q := &timerQueue{pending: make(map[int64]*timer)}

	bindings := map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":    q.schedule(vm, false),
		"setInterval":   q.schedule(vm, true),
		"clearTimeout":  q.clear,
		"clearInterval": q.clear,
	}
	for name, fn := range bindings {
		if err := vm.Set(name, fn); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (q *timerQueue) schedule(vm *goja.Runtime, repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("The \"callback\" argument must be of type function"))
		}
		if len(q.pending) >= maxPendingTimers {
			panic(vm.NewGoError(errTooManyTimers))
		}

		// Delays below 1ms are treated as 1ms, so intervals always advance the clock
		delay := call.Argument(1).ToInteger()
		if delay < 1 {
			delay = 1
		}
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}

		q.nextID++
		q.seq++
		t := &timer{id: q.nextID, due: q.now + delay, seq: q.seq, fn: fn, args: args}
		if repeat {
			t.interval = delay
		}
		q.pending[t.id] = t
		return vm.ToValue(t.id)
	}
}

func (q *timerQueue) clear(call goja.FunctionCall) goja.Value {
	delete(q.pending, call.Argument(0).ToInteger())
	return goja.Undefined()
}

// next returns the earliest pending timer, ties broken by scheduling order
func (q *timerQueue) next() *timer {
	var earliest *timer
	for _, t := range q.pending {
		if earliest == nil || t.due < earliest.due || (t.due == earliest.due && t.seq < earliest.seq) {
			earliest = t
		}
	}
	return earliest
}

// drain runs callbacks until none are pending. An interval that is never
// cleared keeps running until the budget interrupts the runtime.
func (q *timerQueue) drain(vm *goja.Runtime) error {
	for {
		t := q.next()
		if t == nil {
			return nil
		}

		q.now = t.due
		if t.interval > 0 {
			q.seq++
			t.due += t.interval
			t.seq = q.seq
		} else {
			delete(q.pending, t.id)
		}

		if _, err := t.fn(goja.Undefined(), t.args...); err != nil {
			return err
		}
	}
}
