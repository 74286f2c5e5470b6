package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpSubmit, 10*time.Millisecond, false)
	c.RecordTiming(OpSubmit, 30*time.Millisecond, true)

	snap := c.Snapshot()
	require.NotNil(t, snap.Submit)
	assert.Equal(t, int64(2), snap.Submit.Count)
	assert.Equal(t, int64(1), snap.Submit.Failures)
	assert.Equal(t, int64(10), snap.Submit.MinTimeMs)
	assert.Equal(t, int64(30), snap.Submit.MaxTimeMs)
	assert.InDelta(t, 20.0, snap.Submit.AvgTimeMs, 0.001)

	assert.Nil(t, snap.Status, "no status calls recorded")
	assert.Nil(t, snap.Fetch)
}

func TestCollectorTrack(t *testing.T) {
	c := NewCollector()
	done := c.Track(OpFetch)
	done(errors.New("boom"))

	snap := c.Snapshot()
	require.NotNil(t, snap.Fetch)
	assert.Equal(t, int64(1), snap.Fetch.Count)
	assert.Equal(t, int64(1), snap.Fetch.Failures)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpStatus, time.Second, false)
	c.Track(OpStatus)(nil)
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpStatus, time.Millisecond, false)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.Snapshot().Status.Count)
}
