package tree

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is the period between refresh ticks
const DefaultPollInterval = 1500 * time.Millisecond

// ErrPollerClosed is returned by Show after Close
var ErrPollerClosed = errors.New("poller closed")

// Poller drives Tree.RefreshTick on a fixed period while the view is shown.
// A tick starts regardless of whether earlier ticks finished; the tree's
// concurrency limit bounds the requests they issue.
type Poller struct {
	tree     *Tree
	interval time.Duration
	clock    TimeProvider

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
	loop     sync.WaitGroup
	ticks    sync.WaitGroup
	closed   bool
}

// NewPoller creates a stopped poller. A nil clock uses real time.
func NewPoller(tree *Tree, interval time.Duration, clock TimeProvider) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clock == nil {
		clock = &RealTimeProvider{}
	}
	return &Poller{
		tree:     tree,
		interval: interval,
		clock:    clock,
	}
}

// Interval returns the refresh period
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Show starts the refresh timer. Calling it while running is a no-op.
// The timer also stops when ctx ends; a later Show starts it again.
func (p *Poller) Show(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPollerClosed
	}
	if p.runningLocked() {
		return nil
	}
	// ctx of the previous Show ended on its own
	p.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.loopDone = make(chan struct{})
	p.loop.Add(1)
	go p.run(loopCtx, p.loopDone)
	slog.Debug("Polling started", "interval", p.interval)
	return nil
}

// Hide stops the refresh timer and cancels requests still in flight
func (p *Poller) Hide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Close stops the poller for good
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.loop.Wait()
	p.ticks.Wait()
	slog.Debug("Polling stopped")
}

// Running reports whether the refresh timer is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

func (p *Poller) runningLocked() bool {
	if p.cancel == nil {
		return false
	}
	select {
	case <-p.loopDone:
		return false
	default:
		return true
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer p.loop.Done()
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.interval):
			p.ticks.Add(1)
			go func() {
				defer p.ticks.Done()
				p.tree.RefreshTick(ctx)
			}()
		}
	}
}
