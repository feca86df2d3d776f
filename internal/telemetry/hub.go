package telemetry

import (
	"sync"

	"github.com/kstaniek/hoip-link/internal/logging"
	"github.com/kstaniek/hoip-link/internal/metrics"
	"github.com/rs/xid"
)

// BackpressurePolicy decides what happens to an observer that can't keep
// up with the broadcast rate.
type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// Observer is one connected telemetry subscriber.
type Observer struct {
	ID        xid.ID
	Out       chan Snapshot
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the observer is closed (idempotent).
func (o *Observer) Close() {
	o.closeOnce.Do(func() { close(o.Closed) })
}

// Hub fans a stream of Snapshots out to every connected Observer,
// honoring a configurable backpressure policy for slow subscribers.
type Hub struct {
	mu         sync.RWMutex
	observers  map[*Observer]struct{}
	OutBufSize int
	Policy     BackpressurePolicy
}

// New creates an empty Hub with default settings.
func New() *Hub { return &Hub{observers: make(map[*Observer]struct{})} }

// NewObserver allocates an Observer sized by the hub's configured buffer,
// registers it, and returns it ready for Broadcast to target.
func (h *Hub) NewObserver() *Observer {
	bufSize := h.OutBufSize
	if bufSize <= 0 {
		bufSize = 64
	}
	o := &Observer{ID: xid.New(), Out: make(chan Snapshot, bufSize), Closed: make(chan struct{})}
	h.Add(o)
	return o
}

// Add registers an observer with the hub.
func (h *Hub) Add(o *Observer) {
	h.mu.Lock()
	prev := len(h.observers)
	h.observers[o] = struct{}{}
	cur := len(h.observers)
	h.mu.Unlock()
	metrics.SetTelemetryObservers(cur)
	if prev == 0 && cur == 1 {
		logging.L().Info("telemetry_first_observer_connected")
	}
}

// Remove unregisters an observer; safe to call multiple times.
func (h *Hub) Remove(o *Observer) {
	h.mu.Lock()
	_, existed := h.observers[o]
	if existed {
		delete(h.observers, o)
	}
	cur := len(h.observers)
	h.mu.Unlock()
	select {
	case <-o.Closed:
	default:
		o.Close()
	}
	metrics.SetTelemetryObservers(cur)
	if existed && cur == 0 {
		logging.L().Info("telemetry_last_observer_disconnected")
	}
}

// Broadcast sends snap to every connected observer honoring the
// backpressure policy: PolicyDrop silently skips a full observer's
// channel, PolicyKick closes it so its writer goroutine exits.
func (h *Hub) Broadcast(snap Snapshot) {
	observers := h.Snapshot()
	for _, o := range observers {
		select {
		case o.Out <- snap:
		default:
			if h.Policy == PolicyKick {
				metrics.IncTelemetryKicked()
				o.Close()
			} else {
				metrics.IncTelemetryDropped()
			}
		}
	}
}

// Snapshot returns a slice copy of the currently connected observers.
func (h *Hub) Snapshot() []*Observer {
	h.mu.RLock()
	observers := make([]*Observer, 0, len(h.observers))
	for o := range h.observers {
		observers = append(observers, o)
	}
	h.mu.RUnlock()
	return observers
}

// Count returns the number of connected observers.
func (h *Hub) Count() int { h.mu.RLock(); n := len(h.observers); h.mu.RUnlock(); return n }
