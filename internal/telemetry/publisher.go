package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
)

// Publisher funnels Snapshot publishes through a single goroutine so the
// hot polling loop driving a Network Module never blocks on a slow
// observer's Hub.Broadcast fan-out. This reuses the teacher's
// single-goroutine fan-in shape (see internal/transport's AsyncTx) for
// the one place in this module that legitimately wants an async,
// best-effort path — the core Network Module itself never does.
type Publisher struct {
	mu     sync.Mutex
	ch     chan Snapshot
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	hub    *Hub
	closed atomic.Bool
}

// NewPublisher starts a Publisher with a buffered channel of size buf
// that broadcasts every queued Snapshot to hub.
func NewPublisher(parent context.Context, hub *Hub, buf int) *Publisher {
	ctx, cancel := context.WithCancel(parent)
	p := &Publisher{
		ch:     make(chan Snapshot, buf),
		ctx:    ctx,
		cancel: cancel,
		hub:    hub,
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

func (p *Publisher) loop() {
	defer p.wg.Done()
	for {
		select {
		case snap, ok := <-p.ch:
			if !ok {
				return
			}
			p.hub.Broadcast(snap)
		case <-p.ctx.Done():
			return
		}
	}
}

// Publish enqueues snap for broadcast, dropping it silently if the
// internal buffer is full rather than ever blocking the caller.
func (p *Publisher) Publish(snap Snapshot) {
	if p.closed.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return
	}
	select {
	case p.ch <- snap:
	default:
	}
}

// Close stops the worker goroutine and waits for it to exit.
func (p *Publisher) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.cancel()
	p.mu.Lock()
	close(p.ch)
	p.mu.Unlock()
	p.wg.Wait()
}
