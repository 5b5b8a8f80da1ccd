// Package studytime converts continuous foreground time into discrete
// persisted increments. A segment accumulates in memory and is committed
// once it passes the threshold; teardown flushes whatever remains so no
// foreground time is lost.
package studytime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/archpad/internal/notify"
)

const (
	defaultPoll      = 5 * time.Second
	defaultThreshold = 60 * time.Second
)

// Store persists committed study-time increments.
type Store interface {
	AddStudyIncrement(ts time.Time, elapsed time.Duration) error
}

// Accumulator batches elapsed foreground time into coarse durable writes.
type Accumulator struct {
	// Poll is the cadence at which elapsed time is checked.
	Poll time.Duration
	// Threshold is the minimum segment length committed by the polling
	// loop. The teardown flush ignores it.
	Threshold time.Duration

	store Store
	sink  notify.Sink
	now   func() time.Time

	mu      sync.Mutex
	segment time.Time
	running bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New builds an accumulator with the default cadence.
func New(store Store, sink notify.Sink) *Accumulator {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Accumulator{
		Poll:      defaultPoll,
		Threshold: defaultThreshold,
		store:     store,
		sink:      sink,
		now:       time.Now,
	}
}

// Start begins the polling loop. Calling Start on a running accumulator is
// a no-op.
func (a *Accumulator) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.segment = a.now()
	a.done = make(chan struct{})
	a.mu.Unlock()

	a.wg.Add(1)
	go a.loop()
}

func (a *Accumulator) loop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.commitIfDue()
		case <-a.done:
			return
		}
	}
}

// commitIfDue persists the current segment once it has passed the
// threshold and starts a new one.
func (a *Accumulator) commitIfDue() {
	a.mu.Lock()
	start := a.segment
	elapsed := a.now().Sub(start)
	if elapsed < a.Threshold {
		a.mu.Unlock()
		return
	}
	a.segment = a.now()
	a.mu.Unlock()

	a.persist(start, elapsed)
}

// Stop halts the polling loop and flushes the remaining partial segment
// unconditionally, even below the threshold. Persistence failures are
// reported but never block teardown.
func (a *Accumulator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.done)
	a.mu.Unlock()

	a.wg.Wait()
	a.flush()
}

// flush persists whatever the current segment holds.
func (a *Accumulator) flush() {
	a.mu.Lock()
	start := a.segment
	elapsed := a.now().Sub(start)
	a.segment = a.now()
	a.mu.Unlock()

	if elapsed <= 0 {
		return
	}
	a.persist(start, elapsed)
}

func (a *Accumulator) persist(start time.Time, elapsed time.Duration) {
	if err := a.store.AddStudyIncrement(start, elapsed); err != nil {
		slog.Error("failed to persist study time", "elapsed", elapsed, "error", err)
		a.sink.Notify(notify.Warning, "Could not save study time for this session")
	}
}
