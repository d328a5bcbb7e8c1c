package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handle is a live transport for one payer. Send must not block; it
// reports false when the frame was dropped.
type Handle interface {
	Send(payload []byte) bool
	Close()
}

// Hub is the process-local registry of live handles and topic members.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]Handle
	topics map[string]map[string]struct{}

	relay  Relay
	outbox chan Envelope
	log    *zap.Logger
}

// outboxSize bounds the envelopes waiting for the relay.
const outboxSize = 256

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]Handle),
		topics: make(map[string]map[string]struct{}),
		log:    log,
	}
}

// SetRelay enables cross-instance delivery. Envelopes are published one
// at a time in the order the hub produced them until ctx ends. Call
// before serving traffic.
func (h *Hub) SetRelay(ctx context.Context, r Relay) {
	h.relay = r
	h.outbox = make(chan Envelope, outboxSize)
	go h.drain(ctx)
}

func (h *Hub) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.outbox:
			if err := h.relay.Publish(env); err != nil {
				h.log.Error("relay publish failed", zap.String("op", env.Op), zap.String("target", env.Target), zap.Error(err))
			}
		}
	}
}

// Register binds hd to payerID, closing any handle it supersedes.
func (h *Hub) Register(payerID string, hd Handle) {
	h.mu.Lock()
	old := h.conns[payerID]
	h.conns[payerID] = hd
	h.mu.Unlock()

	if old != nil && old != hd {
		old.Close()
	}
	h.log.Debug("payer connected", zap.String("payer_id", payerID))
}

// Unregister drops whatever handle payerID holds.
func (h *Hub) Unregister(payerID string) {
	h.mu.Lock()
	old := h.conns[payerID]
	delete(h.conns, payerID)
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// Release drops hd only if it is still the payer's current handle, so a
// disconnecting transport cannot evict the connection that superseded it.
func (h *Hub) Release(payerID string, hd Handle) bool {
	h.mu.Lock()
	current, ok := h.conns[payerID]
	if ok && current == hd {
		delete(h.conns, payerID)
	}
	h.mu.Unlock()

	if ok && current == hd {
		hd.Close()
		h.log.Debug("payer disconnected", zap.String("payer_id", payerID))
		return true
	}
	return false
}

func (h *Hub) JoinTopic(topic, payerID string) {
	h.joinLocal(topic, payerID)
	h.publish(Envelope{Op: opJoin, Target: topic, Payer: payerID})
}

func (h *Hub) LeaveTopic(topic, payerID string) {
	h.leaveLocal(topic, payerID)
	h.publish(Envelope{Op: opLeave, Target: topic, Payer: payerID})
}

// DeliverTo pushes ev to payerID if connected here, otherwise hands it to
// the relay. Delivery is best effort.
func (h *Hub) DeliverTo(payerID string, ev Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.String("event", ev.Event), zap.Error(err))
		return false
	}
	if h.deliverLocal(payerID, payload) {
		return true
	}
	h.publish(Envelope{Op: opDeliver, Target: payerID, Event: &ev})
	return false
}

// Broadcast pushes ev to every connected member of topic except exclude
// and returns how many local members received it.
func (h *Hub) Broadcast(topic string, ev Event, exclude string) int {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.String("event", ev.Event), zap.Error(err))
		return 0
	}
	n := h.broadcastLocal(topic, payload, exclude)
	h.publish(Envelope{Op: opBroadcast, Target: topic, Exclude: exclude, Event: &ev})
	return n
}

func (h *Hub) IsOnline(payerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[payerID]
	return ok
}

// Online filters payerIDs down to the ones connected here.
func (h *Hub) Online(payerIDs []string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(payerIDs))
	for _, id := range payerIDs {
		if _, ok := h.conns[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (h *Hub) IsMember(topic, payerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.topics[topic][payerID]
	return ok
}

func (h *Hub) Members(topic string) []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.topics[topic]))
	for id := range h.topics[topic] {
		out = append(out, id)
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}

// ApplyRemote replays an envelope received from another instance.
func (h *Hub) ApplyRemote(env Envelope) {
	switch env.Op {
	case opDeliver:
		if env.Event == nil {
			return
		}
		if payload, err := json.Marshal(env.Event); err == nil {
			h.deliverLocal(env.Target, payload)
		}
	case opBroadcast:
		if env.Event == nil {
			return
		}
		if payload, err := json.Marshal(env.Event); err == nil {
			h.broadcastLocal(env.Target, payload, env.Exclude)
		}
	case opJoin:
		h.joinLocal(env.Target, env.Payer)
	case opLeave:
		h.leaveLocal(env.Target, env.Payer)
	default:
		h.log.Warn("unknown relay op", zap.String("op", env.Op))
	}
}

func (h *Hub) deliverLocal(payerID string, payload []byte) bool {
	h.mu.RLock()
	hd, ok := h.conns[payerID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return hd.Send(payload)
}

func (h *Hub) broadcastLocal(topic string, payload []byte, exclude string) int {
	h.mu.RLock()
	targets := make([]Handle, 0, len(h.topics[topic]))
	for id := range h.topics[topic] {
		if id == exclude {
			continue
		}
		if hd, ok := h.conns[id]; ok {
			targets = append(targets, hd)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, hd := range targets {
		if hd.Send(payload) {
			sent++
		}
	}
	return sent
}

func (h *Hub) joinLocal(topic, payerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[string]struct{})
		h.topics[topic] = members
	}
	members[payerID] = struct{}{}
}

func (h *Hub) leaveLocal(topic, payerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(members, payerID)
	if len(members) == 0 {
		delete(h.topics, topic)
	}
}

// publish queues env for the relay without blocking the caller. A full
// outbox drops env.
func (h *Hub) publish(env Envelope) {
	if h.relay == nil {
		return
	}
	select {
	case h.outbox <- env:
	default:
		h.log.Warn("relay outbox full, envelope dropped", zap.String("op", env.Op), zap.String("target", env.Target))
	}
}
