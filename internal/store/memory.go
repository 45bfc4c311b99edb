package store

import (
	"sync"

	"github.com/i474232898/balloon-tracker/internal/tracker"
)

// MemoryStore is a concurrency-safe holder of the single current state.
// Published slices are never written to; updates copy the collection and
// swap it in, so readers holding an older State are unaffected.
type MemoryStore struct {
	mu    sync.RWMutex
	state tracker.State
}

// NewMemoryStore creates a MemoryStore holding an empty state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: tracker.State{
			Arcs:     []tracker.ArcSegment{},
			Balloons: []tracker.CurrentBalloon{},
		},
	}
}

// Replace discards the current state in favor of state.
func (s *MemoryStore) Replace(state tracker.State) {
	if state.Arcs == nil {
		state.Arcs = []tracker.ArcSegment{}
	}
	if state.Balloons == nil {
		state.Balloons = []tracker.CurrentBalloon{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Current returns the published state.
func (s *MemoryStore) Current() tracker.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// UpdateArc replaces the arc with key by fn's result, provided cycleID is
// still the current cycle.
func (s *MemoryStore) UpdateArc(cycleID string, key tracker.ArcKey, fn func(tracker.ArcSegment) tracker.ArcSegment) (tracker.ArcSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CycleID != cycleID {
		return tracker.ArcSegment{}, tracker.ErrStale
	}
	i, ok := s.state.FindArc(key)
	if !ok {
		return tracker.ArcSegment{}, tracker.ErrNotFound
	}

	arcs := make([]tracker.ArcSegment, len(s.state.Arcs))
	copy(arcs, s.state.Arcs)
	arcs[i] = fn(arcs[i])
	s.state.Arcs = arcs
	return arcs[i], nil
}

// UpdateBalloon replaces the balloon with index by fn's result, provided
// cycleID is still the current cycle.
func (s *MemoryStore) UpdateBalloon(cycleID string, index int, fn func(tracker.CurrentBalloon) tracker.CurrentBalloon) (tracker.CurrentBalloon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CycleID != cycleID {
		return tracker.CurrentBalloon{}, tracker.ErrStale
	}
	i, ok := s.state.FindBalloon(index)
	if !ok {
		return tracker.CurrentBalloon{}, tracker.ErrNotFound
	}

	balloons := make([]tracker.CurrentBalloon, len(s.state.Balloons))
	copy(balloons, s.state.Balloons)
	balloons[i] = fn(balloons[i])
	s.state.Balloons = balloons
	return balloons[i], nil
}
