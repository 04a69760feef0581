package loader

import (
	"time"

	"github.com/dop251/goja"
)

// minInterval keeps setInterval from spinning the VM
const minInterval = 10 * time.Millisecond

type timer struct {
	fn     goja.Callable
	args   []goja.Value
	delay  time.Duration
	repeat bool
	timer  *time.Timer
}

// setTimer implements setTimeout and setInterval; runs under m.mu
func (m *gojaModule) setTimer(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(m.vm.NewTypeError("timer callback must be a function"))
		}
		if len(m.timers) >= m.config.MaxTimers {
			panic(m.vm.NewGoError(errTooManyTimers))
		}

		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		if repeat && delay < minInterval {
			delay = minInterval
		}

		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}

		m.nextTimer++
		tid := m.nextTimer
		t := &timer{fn: fn, args: args, delay: delay, repeat: repeat}
		m.timers[tid] = t
		t.timer = time.AfterFunc(delay, func() { m.fire(tid) })

		return m.vm.ToValue(tid)
	}
}

// clearTimer implements clearTimeout and clearInterval; runs under m.mu
func (m *gojaModule) clearTimer(call goja.FunctionCall) goja.Value {
	tid := call.Argument(0).ToInteger()
	if t, ok := m.timers[tid]; ok {
		t.timer.Stop()
		delete(m.timers, tid)
	}
	return goja.Undefined()
}

// fire runs a due timer on the VM
func (m *gojaModule) fire(tid int64) {
	m.enqueue(func() {
		t, ok := m.timers[tid]
		if !ok {
			return
		}
		if !t.repeat {
			delete(m.timers, tid)
		}

		_, err := t.fn(goja.Undefined(), t.args...)
		m.logCallbackError("timer", err)

		// The callback may have cleared its own interval
		if _, live := m.timers[tid]; live && t.repeat {
			t.timer.Reset(t.delay)
		}
	})
}

// Timers returns the number of pending timers
func (m *gojaModule) Timers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
