package fields

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverRegistersDisabled(t *testing.T) {
	r := NewRegistry()
	added := r.Discover([]string{"TempC", "", "  ", "Humidity", "TempC"})
	require.Equal(t, []string{"TempC", "Humidity"}, added)
	require.False(t, r.Enabled("TempC"))
	require.True(t, r.Known("Humidity"))
	require.Equal(t, uint64(1), r.Version())

	require.Empty(t, r.Discover([]string{"TempC"}))
	require.Equal(t, uint64(1), r.Version())
}

func TestDiscoverNeverDisablesEnabledField(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.SetEnabled("TempC", true))
	r.Discover([]string{"TempC"})
	require.True(t, r.Enabled("TempC"))
}

func TestSetEnabled(t *testing.T) {
	r := NewRegistry()
	r.Discover([]string{"a", "b"})

	require.True(t, r.SetEnabled("b", true))
	require.False(t, r.SetEnabled("b", true))
	require.True(t, r.SetEnabled("c", false))
	require.False(t, r.SetEnabled(" ", true))

	require.Equal(t, []Field{{"a", false}, {"b", true}, {"c", false}}, r.Snapshot())
	require.Equal(t, []string{"b"}, r.EnabledNames())

	require.True(t, r.SetEnabled("b", false))
	require.True(t, r.Known("b"))
	require.Empty(t, r.EnabledNames())
}

func TestUnknownIsDisabled(t *testing.T) {
	require.False(t, NewRegistry().Enabled("nope"))
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Discover([]string{"x", "y"})
			_ = r.Enabled("x")
			r.SetEnabled("x", true)
			_ = r.Snapshot()
		}()
	}
	wg.Wait()
	require.Len(t, r.Snapshot(), 2)
	require.True(t, r.Enabled("x"))
}
