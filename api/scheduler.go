/*
scheduler.go - Expired session sweeper

PURPOSE:
  Sessions expire on their own (Authenticate rejects them), but the rows
  stay until something deletes them. The sweeper runs in the background and
  removes every expired session on a fixed interval.

DESIGN:
  - One goroutine driven by a ticker
  - Runs once immediately on Start, then every SweepInterval
  - Stop waits for an in-flight sweep to finish

CONFIGURATION:
  - SweepInterval: How often to sweep (scheduler.sweep_interval, default 15m)
  - Enabled: Whether the sweeper is active (scheduler.enabled, default true)

USAGE:
  sweeper := NewSessionSweeper(authenticator)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - auth/auth.go: SweepExpired
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper deletes expired sessions. Implemented by *auth.Authenticator.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SessionSweeper periodically deletes expired sessions.
type SessionSweeper struct {
	Sweeper       Sweeper
	SweepInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSessionSweeper creates a sweeper with the default interval.
func NewSessionSweeper(s Sweeper) *SessionSweeper {
	return &SessionSweeper{
		Sweeper:       s,
		SweepInterval: 15 * time.Minute,
		Enabled:       true,
	}
}

// Start begins sweeping. Calling Start twice is a no-op.
func (ss *SessionSweeper) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}
	if ss.ticker != nil {
		return
	}

	ss.ticker = time.NewTicker(ss.SweepInterval)
	ss.stop = make(chan struct{})
	ss.wg.Add(1)

	go ss.run(ss.ticker, ss.stop)

	log.Printf("[Sweeper] Started with sweep interval: %v", ss.SweepInterval)
}

// Stop stops the sweeper and waits for the goroutine to exit.
func (ss *SessionSweeper) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker == nil {
		return
	}
	ss.ticker.Stop()
	close(ss.stop)
	ss.wg.Wait()
	ss.ticker = nil
	log.Println("[Sweeper] Stopped")
}

func (ss *SessionSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ss.wg.Done()

	// Run immediately on start
	ss.RunNow()

	for {
		select {
		case <-ticker.C:
			ss.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep and returns how many sessions were removed.
func (ss *SessionSweeper) RunNow() int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := ss.Sweeper.SweepExpired(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error deleting expired sessions: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("[Sweeper] Deleted %d expired session(s)", n)
	}
	return n
}
