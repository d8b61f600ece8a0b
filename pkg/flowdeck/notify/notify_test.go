package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Notification {
	t.Helper()
	select {
	case n, ok := <-sub.C():
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(time.Second):
		t.Fatal("no notification received")
		return Notification{}
	}
}

func TestBus_FiltersByUser(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 4})
	defer bus.Close()

	alice := bus.Subscribe("alice")
	all := bus.Subscribe("")
	ctx := context.Background()

	bus.Notify(ctx, Notification{UserID: "bob", Message: "for bob"})
	bus.Notify(ctx, Notification{UserID: "alice", Message: "for alice"})

	assert.Equal(t, "for alice", receive(t, alice).Message)
	assert.Equal(t, "for bob", receive(t, all).Message)
	got := receive(t, all)
	assert.Equal(t, "for alice", got.Message)
	assert.False(t, got.At.IsZero())

	select {
	case n := <-alice.C():
		t.Fatalf("unexpected notification %+v", n)
	default:
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	var dropped int
	bus := NewBus(BusConfig{BufferSize: 1, OnDrop: func(Notification, int64) { dropped++ }})
	defer bus.Close()

	sub := bus.Subscribe("u")
	bus.Notify(context.Background(), Notification{UserID: "u", Message: "1"})
	bus.Notify(context.Background(), Notification{UserID: "u", Message: "2"})

	assert.Equal(t, 1, dropped)
	assert.Equal(t, "1", receive(t, sub).Message)
}

func TestBus_UnsubscribeAndClose(t *testing.T) {
	bus := NewBus(BusConfig{})
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")
	assert.Equal(t, 2, bus.Subscribers())

	a.Unsubscribe()
	a.Unsubscribe()
	_, ok := <-a.C()
	assert.False(t, ok)
	assert.Equal(t, 1, bus.Subscribers())

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	_, ok = <-b.C()
	assert.False(t, ok)
	b.Unsubscribe()

	assert.Nil(t, bus.Subscribe("c"))
	bus.Notify(context.Background(), Notification{UserID: "b"})
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(context.Background(), Notification{Message: "one"})
	r.Notify(context.Background(), Notification{Message: "two", Level: LevelError})

	assert.Equal(t, []string{"one", "two"}, r.Messages())
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, LevelError, last.Level)
	assert.Len(t, r.All(), 2)

	r.Reset()
	assert.Empty(t, r.All())
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	n := Multi(&a, nil, &b)
	n.Notify(context.Background(), Notification{Message: "x"})

	assert.Equal(t, []string{"x"}, a.Messages())
	assert.Equal(t, []string{"x"}, b.Messages())
	Discard.Notify(context.Background(), Notification{})
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogNotifier{Logger: logger}.Notify(context.Background(), Notification{
		Level: LevelError, Title: "Error", Message: "Please input a URL", UserID: "u1",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Please input a URL", entry["message"])
	assert.Equal(t, "u1", entry["user_id"])
}
