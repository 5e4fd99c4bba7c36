package supervisor

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sweeper is the part of the game service the supervisor drives.
type Sweeper interface {
	CheckTimeouts(ctx context.Context) int
	ArchiveSweep(ctx context.Context) int
}

// Supervisor runs the timeout and archival sweeps on their own tickers.
type Supervisor struct {
	sweeper         Sweeper
	timeoutInterval time.Duration
	archiveInterval time.Duration
}

// New creates a supervisor. Non-positive intervals fall back to 3s and 60s.
func New(sweeper Sweeper, timeoutInterval, archiveInterval time.Duration) *Supervisor {
	if timeoutInterval <= 0 {
		timeoutInterval = 3 * time.Second
	}
	if archiveInterval <= 0 {
		archiveInterval = time.Minute
	}
	return &Supervisor{
		sweeper:         sweeper,
		timeoutInterval: timeoutInterval,
		archiveInterval: archiveInterval,
	}
}

// Run blocks until ctx is cancelled and both routines have returned.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.timeoutRoutine(ctx)
		return nil
	})
	g.Go(func() error {
		s.archiveRoutine(ctx)
		return nil
	})
	return g.Wait()
}

// timeoutRoutine forfeits games whose per-turn clock has run out.
func (s *Supervisor) timeoutRoutine(ctx context.Context) {
	ticker := time.NewTicker(s.timeoutInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweeper.CheckTimeouts(ctx); n > 0 {
				log.Printf("[SWEEP] forfeited %d games on time", n)
			}
		}
	}
}

// archiveRoutine retires finished and abandoned sessions.
func (s *Supervisor) archiveRoutine(ctx context.Context) {
	ticker := time.NewTicker(s.archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Flush what is already eligible before exiting.
			s.sweeper.ArchiveSweep(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			s.sweeper.ArchiveSweep(ctx)
		}
	}
}
