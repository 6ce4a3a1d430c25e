package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voxgo-dev/voxgo/pkg/observability"
)

// Sweeper evicts idle sessions on a recurring schedule, independent of
// request traffic.
type Sweeper struct {
	cron    *cron.Cron
	store   Store
	maxIdle time.Duration
}

// NewSweeper creates a sweeper that runs Store.Sweep every interval.
func NewSweeper(store Store, interval, maxIdle time.Duration) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(),
		store:   store,
		maxIdle: maxIdle,
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule session sweep: %w", err)
	}
	return s, nil
}

// Start begins the recurring sweep.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the recurring sweep, waiting for an in-flight run.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.Sweep(ctx, s.maxIdle)
	if err != nil {
		log.Printf("[Session] sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Session] evicted %d idle sessions", n)
	}

	// Backends that can count live sessions feed the gauge; Redis
	// expires keys server-side and cannot count cheaply.
	if counter, ok := s.store.(interface{ Len() int }); ok {
		observability.SetActiveSessions(counter.Len())
	}
}
