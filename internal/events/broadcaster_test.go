package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return NewBroadcaster(rc, "taskboard:events:test")
}

func waitFrame(t *testing.T, session *Session) Frame {
	t.Helper()
	select {
	case frame := <-session.C:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func TestBroadcastReachesJoinedSession(t *testing.T) {
	b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	session := b.Register("usr_1")
	defer b.Unregister(session.ID)
	if err := b.Join(session.ID, "usr_1", "brd_1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	b.Publish(ctx, TaskCreated, "brd_1", map[string]string{"taskId": "tsk_1"})

	frame := waitFrame(t, session)
	if frame.Event != TaskCreated {
		t.Fatalf("event = %q, want %q", frame.Event, TaskCreated)
	}
	if string(frame.Data) != `{"taskId":"tsk_1"}` {
		t.Fatalf("data = %s", frame.Data)
	}
}

func TestBroadcastSkipsOtherBoards(t *testing.T) {
	b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	session := b.Register("usr_1")
	if err := b.Join(session.ID, "usr_1", "brd_1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	b.Publish(ctx, TaskDeleted, "brd_other", map[string]string{"taskId": "tsk_9"})
	b.Publish(ctx, TaskCreated, "brd_1", map[string]string{"taskId": "tsk_1"})

	frame := waitFrame(t, session)
	if frame.Event != TaskCreated {
		t.Fatalf("got %q, want only the brd_1 event", frame.Event)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	b := newTestBroadcaster(t)
	session := b.Register("usr_1")
	if err := b.Join(session.ID, "usr_1", "brd_1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := b.Leave(session.ID, "usr_1", "brd_1"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	b.fanout(Event{Name: ListDeleted, BoardID: "brd_1", Data: []byte(`{}`)})

	select {
	case frame := <-session.C:
		t.Fatalf("received %q after leave", frame.Event)
	default:
	}
}

func TestJoinRejectsWrongUser(t *testing.T) {
	b := newTestBroadcaster(t)
	session := b.Register("usr_1")

	if err := b.Join(session.ID, "usr_2", "brd_1"); err != ErrNotSessionUser {
		t.Fatalf("err = %v, want ErrNotSessionUser", err)
	}
	if err := b.Join("ses_missing", "usr_1", "brd_1"); err != ErrNoSession {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestSlowSessionDropsInsteadOfBlocking(t *testing.T) {
	b := newTestBroadcaster(t)
	session := b.Register("usr_1")
	if err := b.Join(session.ID, "usr_1", "brd_1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(session.C)+10; i++ {
			b.fanout(Event{Name: TaskUpdated, BoardID: "brd_1", Data: []byte(`{}`)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fanout blocked on a full session buffer")
	}
}
