package logfields

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHelpers(t *testing.T) {
	require.Equal(t, KeyFile, File("a.prn").Key)
	require.Equal(t, "a.prn", File("a.prn").Value.String())
	require.Equal(t, int64(3), Lines(3).Value.Int64())
	require.Equal(t, "boom", Error(errors.New("boom")).Value.String())
	require.Empty(t, Error(nil).Value.String())
	require.InDelta(t, 1.5, Duration(1500*time.Microsecond).Value.Float64(), 0.0001)
}
