package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHandle struct {
	mu     sync.Mutex
	frames []Event
	full   bool
	closed bool
}

func (f *fakeHandle) Send(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || f.closed {
		return false
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false
	}
	f.frames = append(f.frames, ev)
	return true
}

func (f *fakeHandle) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeHandle) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.frames...)
}

func (f *fakeHandle) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type captureRelay struct {
	ch chan Envelope
}

func (r *captureRelay) Publish(env Envelope) error {
	r.ch <- env
	return nil
}

func TestRegisterSupersedesPreviousHandle(t *testing.T) {
	hub := NewHub(zap.NewNop())
	first, second := &fakeHandle{}, &fakeHandle{}

	hub.Register("p1", first)
	hub.Register("p1", second)

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())

	hub.DeliverTo("p1", Event{Event: EventNotification, Data: "hi"})
	assert.Empty(t, first.received())
	assert.Len(t, second.received(), 1)

	// the superseded transport going away must not evict the new one
	assert.False(t, hub.Release("p1", first))
	assert.True(t, hub.IsOnline("p1"))

	assert.True(t, hub.Release("p1", second))
	assert.False(t, hub.IsOnline("p1"))
}

func TestDeliverToOfflinePayerIsDropped(t *testing.T) {
	hub := NewHub(zap.NewNop())

	assert.False(t, hub.DeliverTo("ghost", Event{Event: EventNotification}))
}

func TestDeliverToSlowClientDrops(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slow := &fakeHandle{full: true}
	hub.Register("p1", slow)

	assert.False(t, hub.DeliverTo("p1", Event{Event: EventNotification}))
}

func TestBroadcastExcludesSender(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a, b, c := &fakeHandle{}, &fakeHandle{}, &fakeHandle{}
	hub.Register("a", a)
	hub.Register("b", b)
	hub.Register("c", c)

	topic := MatchTopic("m1")
	hub.JoinTopic(topic, "a")
	hub.JoinTopic(topic, "b")
	hub.JoinTopic(topic, "offline")

	n := hub.Broadcast(topic, NewTypingEvent(topic, "a", true), "a")

	assert.Equal(t, 1, n)
	assert.Empty(t, a.received())
	require.Len(t, b.received(), 1)
	assert.Equal(t, EventTyping, b.received()[0].Event)
	assert.Empty(t, c.received())
}

func TestLeaveTopic(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.JoinTopic("match:m1", "a")
	hub.JoinTopic("match:m1", "b")
	assert.Equal(t, []string{"a", "b"}, hub.Members("match:m1"))

	hub.LeaveTopic("match:m1", "a")
	assert.False(t, hub.IsMember("match:m1", "a"))

	hub.LeaveTopic("match:m1", "b")
	assert.Empty(t, hub.Members("match:m1"))
}

func TestOnline(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Register("a", &fakeHandle{})
	hub.Register("c", &fakeHandle{})

	assert.Equal(t, []string{"a", "c"}, hub.Online([]string{"a", "b", "c"}))

	hub.Unregister("a")
	assert.False(t, hub.IsOnline("a"))
}

func TestDeliverToRelaysWhenNotLocal(t *testing.T) {
	hub := NewHub(zap.NewNop())
	relay := &captureRelay{ch: make(chan Envelope, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.SetRelay(ctx, relay)

	local := &fakeHandle{}
	hub.Register("here", local)

	hub.DeliverTo("here", Event{Event: EventNotification})
	hub.DeliverTo("elsewhere", Event{Event: EventNotification, Data: "x"})

	select {
	case env := <-relay.ch:
		assert.Equal(t, opDeliver, env.Op)
		assert.Equal(t, "elsewhere", env.Target)
	case <-time.After(time.Second):
		t.Fatal("expected relayed delivery")
	}
	assert.Len(t, local.received(), 1)
}

// slowRelay takes longer over membership changes than over events.
type slowRelay struct {
	mu  sync.Mutex
	ops []string
}

func (r *slowRelay) Publish(env Envelope) error {
	if env.Op == opJoin {
		time.Sleep(50 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, env.Op)
	return nil
}

func (r *slowRelay) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func TestRelayKeepsPublishOrder(t *testing.T) {
	hub := NewHub(zap.NewNop())
	relay := &slowRelay{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.SetRelay(ctx, relay)

	hub.JoinTopic("match:1", "p1")
	hub.Broadcast("match:1", Event{Event: EventNewMessage}, "")
	hub.LeaveTopic("match:1", "p1")

	assert.Eventually(t, func() bool { return len(relay.published()) == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{opJoin, opBroadcast, opLeave}, relay.published())
}

func TestRelayOutboxDropsWhenFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	relay := &captureRelay{ch: make(chan Envelope)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.SetRelay(ctx, relay)

	// the drain goroutine is stuck on the unbuffered relay, so the outbox fills
	done := make(chan struct{})
	go func() {
		for i := 0; i < outboxSize+10; i++ {
			hub.DeliverTo("elsewhere", Event{Event: EventNotification})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full outbox")
	}
	assert.Equal(t, opDeliver, (<-relay.ch).Op)
}

func TestApplyRemote(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a, b := &fakeHandle{}, &fakeHandle{}
	hub.Register("a", a)
	hub.Register("b", b)

	hub.ApplyRemote(Envelope{Op: opJoin, Target: "match:m1", Payer: "a"})
	hub.ApplyRemote(Envelope{Op: opJoin, Target: "match:m1", Payer: "b"})
	hub.ApplyRemote(Envelope{Op: opBroadcast, Target: "match:m1", Exclude: "b", Event: &Event{Event: EventNewMessage}})
	hub.ApplyRemote(Envelope{Op: opDeliver, Target: "b", Event: &Event{Event: EventNotification}})

	require.Len(t, a.received(), 1)
	assert.Equal(t, EventNewMessage, a.received()[0].Event)
	require.Len(t, b.received(), 1)
	assert.Equal(t, EventNotification, b.received()[0].Event)

	hub.ApplyRemote(Envelope{Op: opLeave, Target: "match:m1", Payer: "a"})
	assert.False(t, hub.IsMember("match:m1", "a"))
}

func TestRedisRelayDecodeSkipsOwnOrigin(t *testing.T) {
	r := NewRedisRelay(nil, "ch", zap.NewNop())

	own, _ := json.Marshal(Envelope{Op: opDeliver, Origin: r.origin, Target: "a"})
	_, skip, err := r.decode(own)
	require.NoError(t, err)
	assert.True(t, skip)

	other, _ := json.Marshal(Envelope{Op: opDeliver, Origin: "someone-else", Target: "a"})
	env, skip, err := r.decode(other)
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, "a", env.Target)

	_, _, err = r.decode([]byte("{"))
	assert.Error(t, err)
}

func TestConcurrentRegisterAndBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h := &fakeHandle{}
			hub.Register("p", h)
			hub.JoinTopic("match:m", "p")
			hub.Release("p", h)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast("match:m", Event{Event: EventTyping}, "")
		}()
	}
	wg.Wait()
}
