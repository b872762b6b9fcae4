package bridge

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrTransportClosed is returned by sends after Close.
	ErrTransportClosed = errors.New("bridge transport closed")
	// ErrEventDropped is returned when the host is not keeping up with events.
	ErrEventDropped = errors.New("bridge event buffer full")
)

// Transport carries commands to the renderer and events back to the host.
// Sends are fire-and-forget: nothing is returned from the other side.
type Transport interface {
	SendCommand(ctx context.Context, cmd Command) error
	SendEvent(ctx context.Context, ev Event) error
	Commands() <-chan Command
	Events() <-chan Event
	Done() <-chan struct{}
	Close() error
}

// MemoryTransport connects a host and renderer in the same process.
// Commands block until buffered so consecutive pushes keep their order;
// events never block the renderer and are dropped when the buffer is full.
type MemoryTransport struct {
	commands chan Command
	events   chan Event
	done     chan struct{}
	once     sync.Once
}

// NewMemoryTransport creates a pipe with the given buffer size per direction.
func NewMemoryTransport(buffer int) *MemoryTransport {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryTransport{
		commands: make(chan Command, buffer),
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

func (t *MemoryTransport) SendCommand(ctx context.Context, cmd Command) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}
	select {
	case t.commands <- cmd:
		return nil
	case <-t.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *MemoryTransport) SendEvent(_ context.Context, ev Event) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}
	select {
	case t.events <- ev:
		return nil
	default:
		return ErrEventDropped
	}
}

func (t *MemoryTransport) Commands() <-chan Command { return t.commands }
func (t *MemoryTransport) Events() <-chan Event     { return t.events }
func (t *MemoryTransport) Done() <-chan struct{}    { return t.done }

// Close stops both directions. It is safe to call more than once.
func (t *MemoryTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}
