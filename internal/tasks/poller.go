package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// FetchFunc performs one poll.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// State is what a poller publishes after each tick. It is replaced wholesale, never patched.
type State[T any] struct {
	Value     T         // last successful value; kept when a later tick fails
	Err       error     // error of the latest tick, nil on success
	UpdatedAt time.Time // when the latest tick finished
	Seq       uint64    // number of ticks published so far
}

// Ok reports whether the latest tick succeeded.
func (s State[T]) Ok() bool { return s.Seq > 0 && s.Err == nil }

// retryDelayer is implemented by errors that carry a server backoff hint.
type retryDelayer interface {
	RetryDelay() time.Duration
}

// PollerOpts configures a [Poller].
type PollerOpts struct {
	Interval time.Duration
	Logger   *log.Logger
}

// Poller runs fetch immediately on Start and then on a fixed interval until stopped.
//
// A failed tick is published as state and does not stop the loop. At most one loop runs per poller.
type Poller[T any] struct {
	name     string
	fetch    FetchFunc[T]
	interval time.Duration
	logger   *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	stateMu sync.RWMutex
	state   State[T]

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan State[T]
}

// NewPoller creates a stopped [Poller].
func NewPoller[T any](name string, fetch FetchFunc[T], opts PollerOpts) *Poller[T] {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &Poller[T]{
		name:     name,
		fetch:    fetch,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "poller", "poller", name),
		subs:     make(map[int]chan State[T]),
	}
}

// Name returns the poller's name.
func (p *Poller[T]) Name() string { return p.name }

// Start begins polling. A loop that is already running is stopped first.
//
// The loop also ends when ctx is done.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	lctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	p.logger.Debug("started", "interval", p.interval)
	go p.loop(lctx, done)
}

// Stop cancels the loop and waits for it to exit. No tick runs or publishes after Stop returns.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller[T]) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
	p.logger.Debug("stopped")
}

// Running reports whether the loop is active.
func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller[T]) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	resumeAt := p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Before(resumeAt) {
				continue
			}
			resumeAt = p.tick(ctx)
		}
	}
}

// tick fetches once and publishes the result, returning the time before which no tick should run.
func (p *Poller[T]) tick(ctx context.Context) time.Time {
	value, err := p.fetch(ctx)
	if ctx.Err() != nil {
		return time.Time{}
	}

	now := time.Now()
	var resumeAt time.Time
	if err != nil {
		var rd retryDelayer
		if errors.As(err, &rd) && rd.RetryDelay() > 0 {
			resumeAt = now.Add(rd.RetryDelay())
			p.logger.Warn("backing off", "until", resumeAt, "error", err)
		} else {
			p.logger.Warn("poll failed", "error", err)
		}
	}

	p.publish(value, err, now)
	return resumeAt
}

func (p *Poller[T]) publish(value T, err error, at time.Time) {
	p.stateMu.Lock()
	next := State[T]{Value: p.state.Value, Err: err, UpdatedAt: at, Seq: p.state.Seq + 1}
	if err == nil {
		next.Value = value
	}
	p.state = next
	p.stateMu.Unlock()

	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		deliverLatest(ch, next)
	}
}

// Latest returns the most recently published state; Seq is 0 before the first tick.
func (p *Poller[T]) Latest() State[T] {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// Subscribe returns a channel of published states and a cancel function.
//
// The channel holds one state, starting with the current one if anything has been published;
// a slow reader only sees the newest state.
func (p *Poller[T]) Subscribe() (<-chan State[T], func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan State[T], 1)
	p.subs[id] = ch

	if cur := p.Latest(); cur.Seq > 0 {
		ch <- cur
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			defer p.subMu.Unlock()
			delete(p.subs, id)
		})
	}
}

func deliverLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
