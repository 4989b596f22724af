// Package playback cycles a display cursor through a radar timeline
package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelzeko/radar-loop/internal/entities"
)

// ErrEmptyTimeline is returned when playback is asked to run without frames
var ErrEmptyTimeline = errors.New("timeline has no frames")

// ErrFrameOutOfRange is returned by Seek for an index outside the timeline
var ErrFrameOutOfRange = errors.New("frame index out of range")

// Sink receives every frame the scheduler displays
type Sink interface {
	ShowFrame(index int, frame entities.FrameDescriptor)
}

// Sinks fans a displayed frame out to several sinks
type Sinks []Sink

// ShowFrame forwards the frame to every sink in order
func (s Sinks) ShowFrame(index int, frame entities.FrameDescriptor) {
	for _, sink := range s {
		sink.ShowFrame(index, frame)
	}
}

// Scheduler is the Running/Stopped state machine driving the loop.
// It owns at most one active ticker at any time.
type Scheduler struct {
	// emitMu orders sink calls; it is always taken before mu
	emitMu sync.Mutex

	mu       sync.Mutex
	clock    Clock
	sink     Sink
	timeline entities.Timeline
	cursor   int
	period   int
	running  bool
	ticker   Ticker
	gen      uint64
}

// NewScheduler creates a scheduler in the Running state with no timeline.
// The first Retarget starts the timer.
func NewScheduler(clock Clock, sink Sink, periodMillis int) *Scheduler {
	return &Scheduler{
		clock:   clock,
		sink:    sink,
		period:  entities.ClampPeriod(periodMillis),
		running: true,
	}
}

// Retarget replaces the timeline, resets the cursor and restarts the timer when running.
// An empty timeline leaves the scheduler Stopped without a timer.
func (s *Scheduler) Retarget(tl entities.Timeline) error {
	s.mu.Lock()
	s.cancelLocked()
	s.timeline = tl
	s.cursor = 0
	if len(tl) == 0 {
		s.running = false
		s.mu.Unlock()
		return ErrEmptyTimeline
	}
	if s.running {
		s.startLocked()
	}
	gen, frame := s.gen, tl[0]
	s.mu.Unlock()

	s.show(gen, 0, frame)
	return nil
}

// Pause stops the timer and moves to Stopped
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.running = false
}

// Resume moves to Running and restarts the timer from the current cursor
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timeline) == 0 {
		s.cancelLocked()
		s.running = false
		return ErrEmptyTimeline
	}
	s.running = true
	s.startLocked()
	return nil
}

// Suspend cancels the timer without leaving Running. The next Retarget restarts it.
func (s *Scheduler) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// SetPeriod clamps and applies a new tick period, keeping the cursor.
// It returns the effective period.
func (s *Scheduler) SetPeriod(ms int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = entities.ClampPeriod(ms)
	if s.running && len(s.timeline) > 0 {
		s.startLocked()
	}
	return s.period
}

// Seek moves the cursor to index and displays that frame
func (s *Scheduler) Seek(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.timeline) {
		n := len(s.timeline)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, index, n)
	}
	s.cursor = index
	gen, frame := s.gen, s.timeline[index]
	s.mu.Unlock()

	s.show(gen, index, frame)
	return nil
}

// State returns a copy of the playback state
func (s *Scheduler) State() entities.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entities.PlaybackState{
		Cursor:       s.cursor,
		PeriodMillis: s.period,
		Running:      s.running,
	}
}

// Current returns the frame under the cursor
func (s *Scheduler) Current() (int, entities.FrameDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timeline) == 0 {
		return 0, entities.FrameDescriptor{}, false
	}
	return s.cursor, s.timeline[s.cursor], true
}

// Timeline returns the timeline being played
func (s *Scheduler) Timeline() entities.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline
}

// startLocked replaces the current ticker with a new one at the current period
func (s *Scheduler) startLocked() {
	s.cancelLocked()
	gen := s.gen
	s.ticker = s.clock.Every(time.Duration(s.period)*time.Millisecond, func() {
		s.tick(gen)
	})
}

// cancelLocked stops the active ticker and invalidates its pending ticks
func (s *Scheduler) cancelLocked() {
	s.gen++
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.running || len(s.timeline) == 0 {
		s.mu.Unlock()
		return
	}
	s.cursor = (s.cursor + 1) % len(s.timeline)
	index, frame := s.cursor, s.timeline[s.cursor]
	s.mu.Unlock()

	s.show(gen, index, frame)
}

// show hands the frame to the sink unless a Retarget, Pause or restart
// happened since it was picked. Emissions never overtake each other.
func (s *Scheduler) show(gen uint64, index int, frame entities.FrameDescriptor) {
	if s.sink == nil {
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	s.sink.ShowFrame(index, frame)
}
