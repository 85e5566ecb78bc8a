// Package trajectory tracks progress through an ordered waypoint list.
package trajectory

import (
	"errors"
	"sync"

	"github.com/ospreylabs/go-scout/pkg/spatial"
)

// ErrExhausted is returned when the sequencer has no further waypoints. The
// cursor is left where it is so callers can inspect or reset and retry.
var ErrExhausted = errors.New("trajectory: waypoints exhausted")

// Waypoint is one named pose in the trajectory.
type Waypoint struct {
	Name string
	Pose spatial.Pose
}

// Sequencer walks an ordered waypoint list with a monotonically advancing
// cursor. The list is loaded lazily on first use so construction can happen
// before the configuration's environment is selected.
type Sequencer struct {
	source func() []Waypoint

	mu        sync.Mutex
	loaded    bool
	waypoints []Waypoint
	cursor    int
}

// New builds a sequencer over a fixed waypoint list.
func New(waypoints []Waypoint) *Sequencer {
	return &Sequencer{source: func() []Waypoint { return waypoints }}
}

// NewLazy builds a sequencer whose waypoint list is produced by source on
// first use.
func NewLazy(source func() []Waypoint) *Sequencer {
	return &Sequencer{source: source}
}

func (s *Sequencer) ensureLoaded() {
	if !s.loaded {
		s.waypoints = s.source()
		s.loaded = true
	}
}

// Next returns the waypoint at the cursor without advancing. It reports
// ErrExhausted past the end of the list, leaving state untouched.
func (s *Sequencer) Next() (Waypoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	if s.cursor >= len(s.waypoints) {
		return Waypoint{}, ErrExhausted
	}
	return s.waypoints[s.cursor], nil
}

// Advance moves the cursor past the current waypoint. Advancing past the end
// reports ErrExhausted and leaves the cursor stable.
func (s *Sequencer) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	if s.cursor >= len(s.waypoints) {
		return ErrExhausted
	}
	s.cursor++
	return nil
}

// Cursor returns the index of the next waypoint to visit.
func (s *Sequencer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Remaining returns how many waypoints are left to visit.
func (s *Sequencer) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return len(s.waypoints) - s.cursor
}

// Reset rewinds the cursor and reloads the list on next use. Call it on the
// new-episode signal.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	s.cursor = 0
	s.loaded = false
	s.waypoints = nil
	s.mu.Unlock()
}
