package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsAccumulatesCountersAcrossCalls(t *testing.T) {
	s := NewStats(100, 3)
	s.AddBytes(10)
	s.AddBytes(5)
	s.AddError()
	s.FileDone()
	s.FileDone()

	snap := s.Snapshot()
	assert.Equal(t, int64(15), snap.Bytes)
	assert.Equal(t, int64(100), snap.Total)
	assert.Equal(t, int64(1), snap.Errors)
	assert.Equal(t, int64(3), snap.Files)
	assert.Equal(t, int64(2), snap.FilesDone)
}

func TestSnapshotComputesSpeedFromElapsed(t *testing.T) {
	s := NewStats(0, 0)
	s.AddBytes(1000)
	time.Sleep(5 * time.Millisecond)
	snap := s.Snapshot()
	assert.Greater(t, snap.SpeedBytes, 0.0)
	assert.Greater(t, snap.Elapsed, time.Duration(0))
}

func TestReaderCountsBytesReadThroughIt(t *testing.T) {
	stats := NewStats(11, 1)
	r := NewReader(strings.NewReader("hello world"), stats, time.Hour, nil)

	buf := make([]byte, 11)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, int64(11), stats.Snapshot().Bytes)
}

func TestReaderFiresOnTickOnFirstReadThenThrottles(t *testing.T) {
	stats := NewStats(5, 1)
	var ticks int
	r := NewReader(strings.NewReader("abcde"), stats, time.Hour, func(Snapshot) {
		ticks++
	})

	buf := make([]byte, 1)
	for i := 0; i < 5; i++ {
		_, err := r.Read(buf)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, ticks, "a fresh burst-1 limiter only allows the very first tick before the next interval")
}
