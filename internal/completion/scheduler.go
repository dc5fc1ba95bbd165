// Package completion decides, per file and per scan cycle, whether a PRN
// file is worth opening.
//
// Each file has a counter in [0, Grace]. A file is opened while its counter
// is positive or when it was modified after the start of the last cycle that
// evaluated it. Producing lines resets the counter to Grace; every cycle that
// opens an unmodified file decrements it.
package completion

import (
	"slices"
	"sync"
	"time"
)

const (
	// NeedsLook is the counter given to new and modified files.
	NeedsLook = 1
	// DefaultGrace is the counter set after a file produced lines.
	DefaultGrace = 2
)

// Decision is the outcome of Check.
type Decision int

const (
	Skip Decision = iota
	Open
)

func (d Decision) String() string {
	if d == Open {
		return "open"
	}
	return "skip"
}

// State is one file's scheduling state.
type State struct {
	Counter int `json:"counter"`
	// Baseline is the start of the last cycle whose evaluation of this file completed.
	Baseline time.Time `json:"baseline"`
}

// Scheduler tracks State per file key. Safe for concurrent use; callers
// guarantee that one key is never checked concurrently with itself.
type Scheduler struct {
	mu     sync.Mutex
	states map[string]*State
	grace  int
}

// New returns a Scheduler with the given grace value (DefaultGrace when <= 0).
func New(grace int) *Scheduler {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Scheduler{states: make(map[string]*State), grace: grace}
}

// Grace returns the counter value set after a productive cycle.
func (s *Scheduler) Grace() int { return s.grace }

// Check applies the pre-read transition and reports whether to open the file.
func (s *Scheduler) Check(key string, modTime time.Time) (Decision, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[key]
	switch {
	case !ok:
		s.states[key] = &State{Counter: NeedsLook}
		return Open, NeedsLook
	case modTime.After(st.Baseline):
		st.Counter = NeedsLook
	case st.Counter <= 0:
		return Skip, st.Counter
	default:
		st.Counter--
	}
	return Open, st.Counter
}

// Produced records that the file yielded forwardable lines this cycle.
func (s *Scheduler) Produced(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(key).Counter = s.grace
}

// Complete records that the evaluation started at cycleStart has finished.
// A file modified after cycleStart is forced open on its next Check.
func (s *Scheduler) Complete(key string, cycleStart time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.entry(key); cycleStart.After(st.Baseline) {
		st.Baseline = cycleStart
	}
}

// ResetAll sets every known file's counter to the grace value.
func (s *Scheduler) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		st.Counter = s.grace
	}
}

// Get returns a copy of key's state.
func (s *Scheduler) Get(key string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Snapshot returns a copy of all states.
func (s *Scheduler) Snapshot() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.states))
	for k, st := range s.states {
		out[k] = *st
	}
	return out
}

// Prune drops states whose key is not in keep and returns the removed keys, sorted.
func (s *Scheduler) Prune(keep map[string]struct{}) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for k := range s.states {
		if _, ok := keep[k]; !ok {
			delete(s.states, k)
			removed = append(removed, k)
		}
	}
	slices.Sort(removed)
	return removed
}

func (s *Scheduler) entry(key string) *State {
	st, ok := s.states[key]
	if !ok {
		st = &State{Counter: NeedsLook}
		s.states[key] = st
	}
	return st
}
