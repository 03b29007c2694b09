// Package audit records who changed what. Recording never blocks or fails
// the operation that triggered it.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionCancel = "cancel"
	ActionAssign = "assign"
	ActionLogin  = "login"
)

type Event struct {
	UserID   *uuid.UUID
	Action   string
	Table    string
	RecordID string
	IP       string
	At       time.Time
}

// Recorder accepts events without waiting for them to be stored.
type Recorder interface {
	Record(ev Event)
}

type ipKey struct{}

// WithClientIP stores the caller address so events built further down the
// call chain can carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// NewEvent builds an event stamped with now and the client IP found in ctx.
func NewEvent(ctx context.Context, userID *uuid.UUID, action, table string, recordID uuid.UUID) Event {
	ip, _ := ctx.Value(ipKey{}).(string)
	return Event{
		UserID:   userID,
		Action:   action,
		Table:    table,
		RecordID: recordID.String(),
		IP:       ip,
		At:       time.Now().UTC(),
	}
}

// Store persists a single event.
type Store interface {
	InsertEvent(ctx context.Context, ev Event) error
}

// Sink queues events on a bounded channel drained by one goroutine. A full
// queue drops the event; store failures are logged and swallowed.
type Sink struct {
	store   Store
	events  chan Event
	logger  zerolog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewSink(store Store, buffer int, logger zerolog.Logger) *Sink {
	if buffer <= 0 {
		buffer = 1
	}
	s := &Sink{
		store:   store,
		events:  make(chan Event, buffer),
		logger:  logger.With().Str("component", "audit").Logger(),
		timeout: 3 * time.Second,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) Record(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.events <- ev:
	default:
		s.logger.Warn().
			Str("action", ev.Action).
			Str("table", ev.Table).
			Str("record_id", ev.RecordID).
			Msg("audit queue full, event dropped")
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for ev := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.store.InsertEvent(ctx, ev); err != nil {
			s.logger.Error().Err(err).
				Str("action", ev.Action).
				Str("table", ev.Table).
				Str("record_id", ev.RecordID).
				Msg("audit write failed")
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queue is drained or ctx
// expires.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(Event) {}
