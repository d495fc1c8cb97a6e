// Package rotation implements the live whisper rotation: a periodic random
// pick from the current feed that never shows the same confession twice in
// a row when there is a choice.
package rotation

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sujalbistaa/whispr/internal/models"
)

const (
	DefaultInterval  = 6500 * time.Millisecond
	DefaultHideDelay = 800 * time.Millisecond
)

// State is the sampler's presentation state.
type State int

const (
	// Idle means there is nothing to show.
	Idle State = iota
	// Hidden means the previous whisper is on its way out and the next one
	// has not been drawn yet.
	Hidden
	// Visible means Current is being shown.
	Visible
	// Stopped is terminal; it is entered on Stop or when Run returns.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Hidden:
		return "hidden"
	case Visible:
		return "visible"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Event is emitted on every state change. Whisper is set only when State
// is Visible.
type Event struct {
	State   State
	Whisper *models.Confession
}

// Source returns the latest feed. It is called at draw time, never cached.
type Source func() []models.Confession

// Config holds the sampler's collaborators and timing.
type Config struct {
	Source    Source
	Interval  time.Duration
	HideDelay time.Duration
	Clock     clock.Clock
	Rand      *rand.Rand
	// OnEvent is called synchronously for every state change.
	OnEvent func(Event)
}

// Sampler is a two-phase rotation scheduler. Hide and Reveal are the steps
// of one rotation; Run drives them on the configured cadence.
type Sampler struct {
	source    Source
	interval  time.Duration
	hideDelay time.Duration
	clock     clock.Clock
	onEvent   func(Event)

	mu      sync.Mutex
	rng     *rand.Rand
	state   State
	current *models.Confession
}

func New(cfg Config) *Sampler {
	s := &Sampler{
		source:    cfg.Source,
		interval:  cfg.Interval,
		hideDelay: cfg.HideDelay,
		clock:     cfg.Clock,
		rng:       cfg.Rand,
		onEvent:   cfg.OnEvent,
		state:     Idle,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.hideDelay <= 0 {
		s.hideDelay = DefaultHideDelay
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.onEvent == nil {
		s.onEvent = func(Event) {}
	}
	return s
}

// State returns the current state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the selected confession, if any.
func (s *Sampler) Current() (models.Confession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.Confession{}, false
	}
	return *s.current, true
}

// Hide starts a rotation. It reports false, and moves to Idle, when the
// feed is empty. After Stop it does nothing.
func (s *Sampler) Hide() bool {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return false
	}
	if len(s.source()) == 0 {
		changed := s.state != Idle
		s.state = Idle
		s.current = nil
		s.mu.Unlock()
		if changed {
			s.onEvent(Event{State: Idle})
		}
		return false
	}
	s.state = Hidden
	s.mu.Unlock()

	s.onEvent(Event{State: Hidden})
	return true
}

// Reveal draws the next whisper from the latest feed and makes it visible.
// It reports false when the feed is empty or the sampler is stopped.
func (s *Sampler) Reveal() bool {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return false
	}
	list := s.source()
	if len(list) == 0 {
		s.state = Idle
		s.current = nil
		s.mu.Unlock()
		s.onEvent(Event{State: Idle})
		return false
	}

	prev := ""
	if s.current != nil {
		prev = s.current.ID
	}
	next := Draw(s.rng, list, prev)
	s.current = &next
	s.state = Visible
	s.mu.Unlock()

	whisper := next
	s.onEvent(Event{State: Visible, Whisper: &whisper})
	return true
}

// Stop moves the sampler to its terminal state. Pending Hide and Reveal
// calls become no-ops.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	s.mu.Unlock()
	s.onEvent(Event{State: Stopped})
}

// Run drives rotations until ctx is cancelled. A selection is made
// immediately if the feed is non-empty, then once per interval. A value on
// changes while the sampler has nothing selected triggers an immediate
// selection. changes may be nil.
func (s *Sampler) Run(ctx context.Context, changes <-chan struct{}) {
	defer s.Stop()

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	if !s.hasCurrent() {
		if !s.rotate(ctx) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.rotate(ctx) {
				return
			}
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if !s.hasCurrent() {
				if !s.rotate(ctx) {
					return
				}
			}
		}
	}
}

// rotate runs one hide, wait, reveal cycle. It reports false if ctx was
// cancelled while waiting.
func (s *Sampler) rotate(ctx context.Context) bool {
	if !s.Hide() {
		return ctx.Err() == nil
	}

	timer := s.clock.Timer(s.hideDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	if ctx.Err() != nil {
		return false
	}
	s.Reveal()
	return true
}

func (s *Sampler) hasCurrent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Draw picks a uniformly random confession from list whose id differs from
// prev. With a single candidate, or when every candidate has id prev, the
// repeat is accepted. list must not be empty.
func Draw(rng *rand.Rand, list []models.Confession, prev string) models.Confession {
	if len(list) == 1 || prev == "" {
		return list[rng.IntN(len(list))]
	}

	hasOther := false
	for _, c := range list {
		if c.ID != prev {
			hasOther = true
			break
		}
	}
	if !hasOther {
		return list[rng.IntN(len(list))]
	}

	for {
		c := list[rng.IntN(len(list))]
		if c.ID != prev {
			return c
		}
	}
}
