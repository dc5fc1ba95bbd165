package completion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// cycle runs one Check/Complete round for an unmodified file.
func cycle(s *Scheduler, key string, start time.Time, produced bool) Decision {
	d, _ := s.Check(key, t0)
	if d == Open && produced {
		s.Produced(key)
	}
	s.Complete(key, start)
	return d
}

func TestIdleFileIsOpenedTwiceThenSkipped(t *testing.T) {
	s := New(DefaultGrace)
	start := t0.Add(time.Minute)

	require.Equal(t, Open, cycle(s, "a.prn", start, false))
	st, _ := s.Get("a.prn")
	require.Equal(t, 1, st.Counter)

	require.Equal(t, Open, cycle(s, "a.prn", start.Add(15*time.Second), false))
	st, _ = s.Get("a.prn")
	require.Equal(t, 0, st.Counter)

	require.Equal(t, Skip, cycle(s, "a.prn", start.Add(30*time.Second), false))
	require.Equal(t, Skip, cycle(s, "a.prn", start.Add(45*time.Second), false))
}

func TestProductiveFileGetsGraceCycles(t *testing.T) {
	s := New(DefaultGrace)
	start := t0.Add(time.Minute)

	require.Equal(t, Open, cycle(s, "a.prn", start, true))
	st, _ := s.Get("a.prn")
	require.Equal(t, DefaultGrace, st.Counter)

	require.Equal(t, Open, cycle(s, "a.prn", start.Add(1*time.Second), false))
	require.Equal(t, Open, cycle(s, "a.prn", start.Add(2*time.Second), false))
	require.Equal(t, Skip, cycle(s, "a.prn", start.Add(3*time.Second), false))
}

func TestModificationForcesLookWithoutDecrement(t *testing.T) {
	s := New(DefaultGrace)
	start := t0.Add(time.Minute)
	cycle(s, "a.prn", start, false)
	cycle(s, "a.prn", start.Add(time.Second), false)
	require.Equal(t, Skip, cycle(s, "a.prn", start.Add(2*time.Second), false))

	d, counter := s.Check("a.prn", start.Add(90*time.Second))
	require.Equal(t, Open, d)
	require.Equal(t, NeedsLook, counter)
}

func TestModifiedDuringCycleIsNotJudgedScanned(t *testing.T) {
	s := New(DefaultGrace)
	start := t0
	s.Check("a.prn", t0.Add(-time.Hour))
	s.Complete("a.prn", start)
	s.Check("a.prn", t0.Add(-time.Hour))
	s.Complete("a.prn", start.Add(time.Second))

	// Written mid-cycle, after the cycle start but before Complete.
	d, _ := s.Check("a.prn", start.Add(1500*time.Millisecond))
	require.Equal(t, Open, d)
}

func TestResetAll(t *testing.T) {
	s := New(3)
	cycle(s, "a.prn", t0.Add(time.Minute), false)
	cycle(s, "b.prn", t0.Add(time.Minute), false)
	s.ResetAll()
	for _, st := range s.Snapshot() {
		require.Equal(t, 3, st.Counter)
	}
}

func TestCompleteNeverMovesBaselineBackwards(t *testing.T) {
	s := New(0)
	require.Equal(t, DefaultGrace, s.Grace())
	s.Complete("a", t0.Add(time.Minute))
	s.Complete("a", t0)
	st, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, t0.Add(time.Minute), st.Baseline)
}

func TestPrune(t *testing.T) {
	s := New(DefaultGrace)
	s.Check("a", t0)
	s.Check("b", t0)
	s.Check("c", t0)
	require.Equal(t, []string{"b", "c"}, s.Prune(map[string]struct{}{"a": {}}))
	require.Empty(t, s.Prune(map[string]struct{}{"a": {}}))
	_, ok := s.Get("b")
	require.False(t, ok)
}
