// Package scheduler provides the cooperative frame scheduler.
package scheduler

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Ticker is advanced once per frame.
type Ticker interface {
	Tick(dt time.Duration)
}

// TickerFunc adapts a function to Ticker.
type TickerFunc func(dt time.Duration)

// Tick implements Ticker.
func (f TickerFunc) Tick(dt time.Duration) { f(dt) }

// Scheduler steps its tickers in registration order, one frame at a time,
// from a single goroutine.
type Scheduler struct {
	mu      sync.Mutex
	tickers []Ticker
	frame   time.Duration
	frames  uint64
	elapsed time.Duration
}

// New creates a scheduler running at the given frame rate.
func New(frameRate int) *Scheduler {
	if frameRate <= 0 {
		frameRate = 60
	}
	return &Scheduler{
		frame: time.Second / time.Duration(frameRate),
	}
}

// Add appends tickers. Earlier tickers run first within a frame.
func (s *Scheduler) Add(t ...Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers = append(s.tickers, t...)
}

// Frame returns the frame duration.
func (s *Scheduler) Frame() time.Duration {
	return s.frame
}

// Step runs one frame of dt.
func (s *Scheduler) Step(dt time.Duration) {
	s.mu.Lock()
	tickers := make([]Ticker, len(s.tickers))
	copy(tickers, s.tickers)
	s.frames++
	s.elapsed += dt
	s.mu.Unlock()

	for _, t := range tickers {
		t.Tick(dt)
	}
}

// StepN runs n frames of the scheduler's frame duration.
func (s *Scheduler) StepN(n int) {
	for i := 0; i < n; i++ {
		s.Step(s.frame)
	}
}

// Elapsed returns the total virtual time stepped so far.
func (s *Scheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Frames returns the number of frames stepped so far.
func (s *Scheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Run steps the scheduler in real time until ctx is cancelled. Frames are
// stepped with the measured wall time since the previous frame.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()

	zlog.Info().Msgf("scheduler: running: frame=%v", s.frame)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			zlog.Info().Msgf("scheduler: stopped: frames=%d elapsed=%v", s.Frames(), s.Elapsed())
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			s.Step(dt)
		}
	}
}
