package worker

import (
	"context"
	"time"

	"github.com/veille-ai/veille/pkg/utils/logging"
)

// IdleSweeper ends sessions that stayed idle for longer than the given duration
type IdleSweeper interface {
	SweepIdle(idle time.Duration) int
}

// SessionSweeper periodically evicts idle chat sessions so that abandoned HTTP clients do not
// keep their memory and edit records forever.
//
// Architecture assumptions:
// - Sessions live in the process (no shared session store)
type SessionSweeper struct {
	sweeper  IdleSweeper
	interval time.Duration
	idle     time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSessionSweeper creates a worker running every interval and ending sessions idle for longer than idle
func NewSessionSweeper(sweeper IdleSweeper, interval, idle time.Duration) *SessionSweeper {
	return &SessionSweeper{
		sweeper:  sweeper,
		interval: interval,
		idle:     idle,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background loop. It does not block.
func (w *SessionSweeper) Start(ctx context.Context) error {
	logging.Default().Info("Session sweeper starting",
		"interval", w.interval.String(),
		"idle", w.idle.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *SessionSweeper) Stop() {
	logging.Default().Info("Session sweeper stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Session sweeper stopped")
}

func (w *SessionSweeper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("Session sweeper context cancelled")
			return
		}
	}
}

func (w *SessionSweeper) sweep() {
	if n := w.sweeper.SweepIdle(w.idle); n > 0 {
		logging.Default().Info("Idle sessions ended", "count", n)
	}
}
