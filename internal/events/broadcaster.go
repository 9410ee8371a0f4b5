// Package events carries board mutations to connected viewers. Mutations are
// published to a Redis channel; every API replica subscribes and fans the
// event out to its own sessions joined to the board. Delivery is at-most-once:
// a session that joins later, or whose buffer is full, misses the event and
// reconciles with a full board fetch.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard/api/internal/util"
)

const (
	ListCreated = "list:created"
	ListDeleted = "list:deleted"
	TaskCreated = "task:created"
	TaskUpdated = "task:updated"
	TaskDeleted = "task:deleted"
	TaskMoved   = "task:moved"
)

var (
	ErrNoSession      = errors.New("unknown session")
	ErrNotSessionUser = errors.New("session belongs to another user")
)

// Event is the wire format on the Redis channel.
type Event struct {
	Name    string          `json:"name"`
	BoardID string          `json:"boardId"`
	Data    json.RawMessage `json:"data"`
}

// Frame is one event delivered to a session, ready for SSE framing.
type Frame struct {
	Event string
	Data  []byte
}

// Session is one connected viewer. Frames arrive on C; the owner drains it
// until the connection closes.
type Session struct {
	ID     string
	UserID string
	C      chan Frame

	mu     sync.Mutex
	boards map[string]struct{}
}

func (s *Session) joined(boardID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.boards[boardID]
	return ok
}

// Broadcaster owns the session registry and the Redis pub/sub pipeline. It is
// constructed once in main and injected wherever events are emitted.
type Broadcaster struct {
	rc      *redis.Client
	channel string

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewBroadcaster(rc *redis.Client, channel string) *Broadcaster {
	return &Broadcaster{
		rc:       rc,
		channel:  channel,
		sessions: make(map[string]*Session),
	}
}

// Register creates a session for an authenticated user. The caller must
// Unregister it when the connection ends.
func (b *Broadcaster) Register(userID string) *Session {
	session := &Session{
		ID:     util.NewID("ses"),
		UserID: userID,
		C:      make(chan Frame, 16),
		boards: make(map[string]struct{}),
	}
	b.mu.Lock()
	b.sessions[session.ID] = session
	b.mu.Unlock()
	return session
}

// Unregister drops the session from every board channel.
func (b *Broadcaster) Unregister(sessionID string) {
	b.mu.Lock()
	delete(b.sessions, sessionID)
	b.mu.Unlock()
}

func (b *Broadcaster) session(sessionID, userID string) (*Session, error) {
	b.mu.Lock()
	session, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}
	if session.UserID != userID {
		return nil, ErrNotSessionUser
	}
	return session, nil
}

// Join subscribes the session to a board channel. Board membership is the
// caller's check; the registry only verifies session ownership.
func (b *Broadcaster) Join(sessionID, userID, boardID string) error {
	session, err := b.session(sessionID, userID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	session.boards[boardID] = struct{}{}
	session.mu.Unlock()
	return nil
}

// Leave unsubscribes the session from a board channel.
func (b *Broadcaster) Leave(sessionID, userID, boardID string) error {
	session, err := b.session(sessionID, userID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	delete(session.boards, boardID)
	session.mu.Unlock()
	return nil
}

// Publish emits a board event. Errors are logged, not returned to the
// mutation path: the HTTP response never waits on, or fails with, the
// broadcast.
func (b *Broadcaster) Publish(ctx context.Context, name, boardID string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("events: marshal %s payload: %v", name, err)
		return
	}
	payload, err := json.Marshal(Event{Name: name, BoardID: boardID, Data: raw})
	if err != nil {
		log.Printf("events: marshal %s event: %v", name, err)
		return
	}
	if err := b.rc.Publish(ctx, b.channel, payload).Err(); err != nil {
		log.Printf("events: publish %s: %v", name, err)
	}
}

// Run subscribes to the Redis channel and fans events out to local sessions
// until the context is cancelled, reconnecting if the subscription drops.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		sub := b.rc.Subscribe(ctx, b.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("events: parse event: %v", err)
					continue
				}
				b.fanout(event)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.Println("events: pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func (b *Broadcaster) fanout(event Event) {
	frame := Frame{Event: event.Name, Data: event.Data}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, session := range b.sessions {
		if !session.joined(event.BoardID) {
			continue
		}
		select {
		case session.C <- frame:
		default:
			// Slow consumer: drop the event for this session rather than
			// block the fanout.
		}
	}
}

// Ping verifies the Redis connection at startup.
func (b *Broadcaster) Ping(ctx context.Context) error {
	if err := b.rc.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
