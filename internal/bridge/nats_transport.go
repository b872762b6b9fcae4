package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix roots every bridge subject.
const SubjectPrefix = "routemap"

// CommandSubject is where the host publishes commands for a session.
func CommandSubject(session string) string {
	return fmt.Sprintf("%s.%s.commands", SubjectPrefix, subjectToken(session))
}

// EventSubject is where the renderer publishes events for a session.
func EventSubject(session string) string {
	return fmt.Sprintf("%s.%s.events", SubjectPrefix, subjectToken(session))
}

// NATSTransport carries bridge messages as JSON over two NATS subjects, so
// a renderer can run in another process.
type NATSTransport struct {
	nc      *nats.Conn
	session string
	logger  *zap.Logger

	commands chan Command
	events   chan Event
	done     chan struct{}
	once     sync.Once
	subs     []*nats.Subscription
}

// NewNATSTransport subscribes to both subjects of session. The connection is
// shared and is not closed by Close.
func NewNATSTransport(nc *nats.Conn, session string, buffer int, logger *zap.Logger) (*NATSTransport, error) {
	if buffer <= 0 {
		buffer = 64
	}
	t := &NATSTransport{
		nc:       nc,
		session:  session,
		logger:   logger,
		commands: make(chan Command, buffer),
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
	}

	cmdSub, err := nc.Subscribe(CommandSubject(session), func(m *nats.Msg) {
		var cmd Command
		if err := json.Unmarshal(m.Data, &cmd); err != nil {
			t.logger.Warn("malformed bridge command", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		select {
		case t.commands <- cmd:
		case <-t.done:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to commands: %w", err)
	}

	evSub, err := nc.Subscribe(EventSubject(session), func(m *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			t.logger.Warn("malformed bridge event", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		select {
		case t.events <- ev:
		case <-t.done:
		}
	})
	if err != nil {
		_ = cmdSub.Unsubscribe()
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	t.subs = []*nats.Subscription{cmdSub, evSub}
	return t, nil
}

func (t *NATSTransport) publish(subject string, v interface{}) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.nc.Publish(subject, b)
}

func (t *NATSTransport) SendCommand(_ context.Context, cmd Command) error {
	return t.publish(CommandSubject(t.session), cmd)
}

func (t *NATSTransport) SendEvent(_ context.Context, ev Event) error {
	return t.publish(EventSubject(t.session), ev)
}

func (t *NATSTransport) Commands() <-chan Command { return t.commands }
func (t *NATSTransport) Events() <-chan Event     { return t.events }
func (t *NATSTransport) Done() <-chan struct{}    { return t.done }

// Close unsubscribes both subjects.
func (t *NATSTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		for _, s := range t.subs {
			if uerr := s.Unsubscribe(); uerr != nil && err == nil {
				err = uerr
			}
		}
	})
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
