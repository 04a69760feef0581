package ipc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
)

var (
	ErrUnknownChannel = errors.New("no handler for channel")
	ErrDenied         = errors.New("channel access denied")
)

// Handler implements a host operation
type Handler func(ctx context.Context, args ...interface{}) (interface{}, error)

// ChannelHandler answers calls an extension makes on one of its channels
type ChannelHandler func(ctx context.Context, extensionID string, args ...interface{}) (interface{}, error)

// Authorizer decides whether extensionID may call channel
type Authorizer func(extensionID, channel string) bool

// Operation is a named host operation
type Operation struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Handler     Handler `json:"-"`
}

// Provider contributes a set of host operations
type Provider interface {
	Operations() []Operation
}

type subscription struct {
	callback func(args ...interface{})
}

type channelKey struct {
	extensionID string
	channel     string
}

// Bridge routes host operations and extension channels
type Bridge struct {
	mu         sync.RWMutex
	operations map[string]Operation
	handlers   map[string]ChannelHandler
	subs       map[channelKey][]*subscription
	authorize  Authorizer
	logger     *logging.Logger
}

// NewBridge creates an empty bridge
func NewBridge(logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bridge{
		operations: make(map[string]Operation),
		handlers:   make(map[string]ChannelHandler),
		subs:       make(map[channelKey][]*subscription),
		logger:     logger.Named("ipc"),
	}
}

// RegisterOperation adds or replaces a host operation
func (b *Bridge) RegisterOperation(op Operation) {
	if op.Name == "" || op.Handler == nil {
		return
	}
	b.mu.Lock()
	b.operations[op.Name] = op
	b.mu.Unlock()
}

// Register adds every operation of p
func (b *Bridge) Register(p Provider) {
	for _, op := range p.Operations() {
		b.RegisterOperation(op)
	}
}

// Operations lists registered host operations sorted by name
func (b *Bridge) Operations() []Operation {
	b.mu.RLock()
	ops := make([]Operation, 0, len(b.operations))
	for _, op := range b.operations {
		ops = append(ops, op)
	}
	b.mu.RUnlock()

	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops
}

// HasHostOperation reports whether name is a host operation
func (b *Bridge) HasHostOperation(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.operations[name]
	return ok
}

// InvokeHostOperation runs the named operation
func (b *Bridge) InvokeHostOperation(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	b.mu.RLock()
	op, ok := b.operations[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("host operation %q: %w", name, ErrUnknownChannel)
	}
	return op.Handler(ctx, args...)
}

// HandleChannel installs the handler for calls on channel from any extension
func (b *Bridge) HandleChannel(channel string, handler ChannelHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if handler == nil {
		delete(b.handlers, channel)
		return
	}
	b.handlers[channel] = handler
}

// SetAuthorizer installs a check run before every channel call
func (b *Bridge) SetAuthorizer(a Authorizer) {
	b.mu.Lock()
	b.authorize = a
	b.mu.Unlock()
}

// InvokeExtensionChannel calls the handler for channel on behalf of extensionID
func (b *Bridge) InvokeExtensionChannel(ctx context.Context, extensionID, channel string, args ...interface{}) (interface{}, error) {
	b.mu.RLock()
	handler, ok := b.handlers[channel]
	authorize := b.authorize
	b.mu.RUnlock()

	if authorize != nil && !authorize(extensionID, channel) {
		return nil, fmt.Errorf("%s on %q: %w", extensionID, channel, ErrDenied)
	}
	if !ok {
		return nil, fmt.Errorf("%s on %q: %w", extensionID, channel, ErrUnknownChannel)
	}
	return handler(ctx, extensionID, args...)
}

// SubscribeExtensionChannel registers callback for messages published to
// extensionID on channel
func (b *Bridge) SubscribeExtensionChannel(extensionID, channel string, callback func(args ...interface{})) func() {
	key := channelKey{extensionID: extensionID, channel: channel}
	sub := &subscription{callback: callback}

	b.mu.Lock()
	b.subs[key] = append(b.subs[key], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(key, sub) })
	}
}

// Publish delivers args to every subscriber of (extensionID, channel) and
// returns how many received it
func (b *Bridge) Publish(extensionID, channel string, args ...interface{}) int {
	key := channelKey{extensionID: extensionID, channel: channel}

	b.mu.RLock()
	subs := append([]*subscription(nil), b.subs[key]...)
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if b.deliver(extensionID, channel, sub, args) {
			delivered++
		}
	}
	return delivered
}

// Subscribers counts subscriptions for (extensionID, channel)
func (b *Bridge) Subscribers(extensionID, channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channelKey{extensionID: extensionID, channel: channel}])
}

func (b *Bridge) deliver(extensionID, channel string, sub *subscription, args []interface{}) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked",
				zap.String(logging.FieldExtensionID, extensionID),
				zap.String("channel", channel),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()
	sub.callback(args...)
	return true
}

func (b *Bridge) unsubscribe(key channelKey, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[key]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, key)
		return
	}
	b.subs[key] = subs
}
