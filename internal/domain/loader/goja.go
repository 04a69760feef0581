package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/exterr"
)

// GojaLoader evaluates extensions in per-extension goja VMs
type GojaLoader struct {
	config Config
}

// NewGojaLoader creates a loader with the given limits
func NewGojaLoader(config Config) *GojaLoader {
	return &GojaLoader{config: config.withDefaults()}
}

// gojaModule is an evaluated extension bound to its own VM
type gojaModule struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	config Config
	id     string
	logger *logging.Logger

	// Cancelled on Close; aborts host calls and pending callbacks
	ctx    context.Context
	cancel context.CancelFunc

	exports    *goja.Object
	kind       LifecycleKind
	hook       goja.Callable
	deactivate goja.Callable
	closed     bool

	timers    map[int64]*timer
	nextTimer int64

	// Last error thrown by require for an unknown module, and its name
	notFound *goja.Object
	missing  string
}

// Evaluate runs src once and classifies its exports
func (l *GojaLoader) Evaluate(ctx context.Context, src Source) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, exterr.New(exterr.KindExtensionLoad, src.ExtensionID, err)
	}

	prog, err := goja.Compile(src.Filename, wrapSource(src.Text), false)
	if err != nil {
		return nil, exterr.New(exterr.KindExtensionLoad, src.ExtensionID, fmt.Errorf("compile: %w", err))
	}

	m := newModule(src.ExtensionID, l.config)

	m.mu.Lock()
	err = m.evaluate(ctx, prog)
	m.mu.Unlock()

	if err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// wrapSource turns the entry file into a CommonJS-style function expression
func wrapSource(text string) string {
	return "(function (require, exports, module, React) {\n" + text + "\n})"
}

func newModule(extensionID string, config Config) *gojaModule {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	vm.SetMaxCallStackSize(config.MaxCallStackSize)

	ctx, cancel := context.WithCancel(context.Background())
	m := &gojaModule{
		vm:     vm,
		config: config,
		id:     extensionID,
		logger: config.Logger.ForExtension(extensionID),
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[int64]*timer),
	}
	m.setupGlobals()
	return m
}

// setupGlobals configures global objects and security
func (m *gojaModule) setupGlobals() {
	// Remove dangerous globals
	m.vm.Set("require", goja.Undefined())
	m.vm.Set("process", goja.Undefined())
	m.vm.Set("module", goja.Undefined())
	m.vm.Set("exports", goja.Undefined())

	m.vm.Set("console", m.newConsole())

	m.vm.Set("setTimeout", m.setTimer(false))
	m.vm.Set("setInterval", m.setTimer(true))
	m.vm.Set("clearTimeout", m.clearTimer)
	m.vm.Set("clearInterval", m.clearTimer)
}

// evaluate runs the wrapped program; caller holds m.mu
func (m *gojaModule) evaluate(ctx context.Context, prog *goja.Program) error {
	stop := m.guard(ctx, m.config.EvaluationTimeout)
	defer stop()

	fnVal, err := m.vm.RunProgram(prog)
	if err != nil {
		return m.loadError(err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return exterr.Newf(exterr.KindExtensionLoad, m.id, "entry did not evaluate to a function")
	}

	exports := m.vm.NewObject()
	moduleObj := m.vm.NewObject()
	if err := moduleObj.Set("exports", exports); err != nil {
		return exterr.New(exterr.KindExtensionLoad, m.id, err)
	}

	react := m.newReact()
	resolver := m.newResolver(react)
	if _, err := fn(goja.Undefined(), m.vm.ToValue(resolver), exports, moduleObj, react); err != nil {
		return m.loadError(err)
	}

	m.classify(moduleObj.Get("exports"))
	return nil
}

func (m *gojaModule) loadError(err error) error {
	if m.isNotFound(err) {
		return exterr.New(exterr.KindModuleNotFound, m.id, fmt.Errorf("cannot find module %q", m.missing))
	}
	return exterr.New(exterr.KindExtensionLoad, m.id, m.jsError(err))
}

// isNotFound reports whether err is the uncaught error of a failed require.
// A miss the extension caught leaves later failures classified as their own.
func (m *gojaModule) isNotFound(err error) bool {
	if m.notFound == nil {
		return false
	}
	var exception *goja.Exception
	if !errors.As(err, &exception) {
		return false
	}
	v := exception.Value()
	return v != nil && v.SameAs(m.notFound)
}

// classify decides the lifecycle kind from module.exports
func (m *gojaModule) classify(v goja.Value) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		m.exports = m.vm.NewObject()
		return
	}
	m.exports = v.ToObject(m.vm)

	target := m.exports
	if !hasHook(target) {
		// ES module interop: exports.default = { activate }
		if def, ok := target.Get("default").(*goja.Object); ok && hasHook(def) {
			target = def
		}
	}

	if fn, ok := goja.AssertFunction(target.Get("activate")); ok {
		m.kind, m.hook = LifecycleModern, bindThis(fn, target)
	} else if fn, ok := goja.AssertFunction(target.Get("register")); ok {
		m.kind, m.hook = LifecycleLegacy, bindThis(fn, target)
	}
	if fn, ok := goja.AssertFunction(target.Get("deactivate")); ok {
		m.deactivate = bindThis(fn, target)
	}
}

func hasHook(obj *goja.Object) bool {
	for _, name := range []string{"activate", "register"} {
		if _, ok := goja.AssertFunction(obj.Get(name)); ok {
			return true
		}
	}
	return false
}

func bindThis(fn goja.Callable, this goja.Value) goja.Callable {
	return func(_ goja.Value, args ...goja.Value) (goja.Value, error) {
		return fn(this, args...)
	}
}

// Kind returns the lifecycle kind decided at evaluation
func (m *gojaModule) Kind() LifecycleKind {
	return m.kind
}

// HasDeactivate reports whether exports define deactivate
func (m *gojaModule) HasDeactivate() bool {
	return m.deactivate != nil
}

// Exports returns the sorted export names
func (m *gojaModule) Exports() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exports == nil {
		return nil
	}
	keys := m.exports.Keys()
	sort.Strings(keys)
	return keys
}

// Activate runs the lifecycle hook with a JS binding of api
func (m *gojaModule) Activate(ctx context.Context, api *capability.API) error {
	if m.kind == LifecycleNone {
		return nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return exterr.New(exterr.KindActivation, m.id, ErrClosed)
	}
	jsAPI := m.bindAPI(api)
	m.mu.Unlock()

	// Legacy register is synchronous; a returned promise is not awaited
	await := m.kind == LifecycleModern
	if err := m.call(ctx, m.config.ActivationTimeout, m.hook, await, jsAPI); err != nil {
		return exterr.New(exterr.KindActivation, m.id, err)
	}
	return nil
}

// Deactivate runs exports.deactivate, awaiting a returned promise
func (m *gojaModule) Deactivate(ctx context.Context) error {
	if m.deactivate == nil {
		return nil
	}
	if err := m.call(ctx, m.config.DeactivationTimeout, m.deactivate, true); err != nil {
		return exterr.New(exterr.KindDeactivation, m.id, err)
	}
	return nil
}

// call invokes fn under the VM lock. When await is set and fn returns a
// pending promise the lock is released while waiting for settlement.
func (m *gojaModule) call(ctx context.Context, timeout time.Duration, fn goja.Callable, await bool, args ...goja.Value) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	stop := m.guard(ctx, 0)
	ret, err := fn(goja.Undefined(), args...)
	stop()
	if err != nil {
		m.mu.Unlock()
		return m.jsError(err)
	}
	if !await {
		m.mu.Unlock()
		return nil
	}

	settled, err := m.watchPromise(ret)
	m.mu.Unlock()
	if err != nil || settled == nil {
		return err
	}

	select {
	case err := <-settled:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: promise still pending: %v", ErrTimeout, ctx.Err())
	case <-m.ctx.Done():
		return ErrClosed
	}
}

// watchPromise inspects v; caller holds m.mu. A nil channel with nil error
// means v was not pending.
func (m *gojaModule) watchPromise(v goja.Value) (<-chan error, error) {
	if v == nil {
		return nil, nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return nil, nil
	}

	switch p.State() {
	case goja.PromiseStateFulfilled:
		return nil, nil
	case goja.PromiseStateRejected:
		return nil, rejection(p.Result())
	}

	settled := make(chan error, 1)
	then, ok := goja.AssertFunction(v.ToObject(m.vm).Get("then"))
	if !ok {
		return nil, errors.New("promise has no then")
	}
	onFulfilled := m.vm.ToValue(func(goja.FunctionCall) goja.Value {
		settled <- nil
		return goja.Undefined()
	})
	onRejected := m.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		settled <- rejection(call.Argument(0))
		return goja.Undefined()
	})
	if _, err := then(v, onFulfilled, onRejected); err != nil {
		return nil, m.jsError(err)
	}
	return settled, nil
}

func rejection(reason goja.Value) error {
	if reason == nil || goja.IsUndefined(reason) {
		return errors.New("promise rejected")
	}
	if obj, ok := reason.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return fmt.Errorf("promise rejected: %s", msg.String())
		}
	}
	return fmt.Errorf("promise rejected: %s", reason.String())
}

// guard interrupts the VM when ctx, the module or the timeout ends.
// Caller holds m.mu; the returned stop must be called before unlocking.
func (m *gojaModule) guard(ctx context.Context, timeout time.Duration) (stop func()) {
	cancel := func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			m.vm.Interrupt(ctx.Err())
		case <-m.ctx.Done():
			m.vm.Interrupt(ErrClosed)
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		cancel()
		m.vm.ClearInterrupt()
	}
}

// enqueue runs fn on the VM from a host goroutine. Returns false once closed.
func (m *gojaModule) enqueue(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	stop := m.guard(m.ctx, m.config.CallbackTimeout)
	defer stop()

	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("extension callback panicked", zap.Any("panic", p))
		}
	}()
	fn()
	return true
}

// jsError converts goja failures into host errors
func (m *gojaModule) jsError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			if errors.Is(cause, ErrClosed) {
				return ErrClosed
			}
			return fmt.Errorf("%w: %v", ErrTimeout, cause)
		}
		return fmt.Errorf("%w: %v", ErrTimeout, interrupted.Value())
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return errors.New(exception.Error())
	}
	return err
}

// Close stops timers, drops late callbacks and releases the VM
func (m *gojaModule) Close() error {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for tid, t := range m.timers {
		t.timer.Stop()
		delete(m.timers, tid)
	}
	return nil
}

// logCallbackError logs a failure raised inside a host-initiated callback
func (m *gojaModule) logCallbackError(what string, err error) {
	if err == nil {
		return
	}
	m.logger.Warn("extension callback failed",
		zap.String("callback", what),
		zap.Error(m.jsError(err)),
	)
}
