package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementPublished("image")
			m.AddFetched(2)
		}()
	}
	wg.Wait()

	m.IncrementFiltered()
	m.AddDuplicatesSkipped(3)

	stats := m.GetStats()
	require.Equal(t, int64(20), stats["items_fetched"])
	require.Equal(t, int64(1), stats["items_filtered"])
	require.Equal(t, int64(3), stats["duplicates_skipped"])
	require.Equal(t, map[string]int64{"image": 10}, stats["published"])
}

func TestMetrics_Health(t *testing.T) {
	m := New()
	require.True(t, m.Healthy())

	m.SetError("telegram down")
	require.False(t, m.Healthy())
	require.Equal(t, "telegram down", m.GetStats()["last_error"])

	m.SetLastRun()
	require.True(t, m.Healthy())
}

func TestMetrics_CycleTime(t *testing.T) {
	m := New()
	m.RecordCycleTime(100 * time.Millisecond)
	m.RecordCycleTime(300 * time.Millisecond)

	require.Equal(t, 200*time.Millisecond, m.AverageCycleTime)
	require.Equal(t, int64(2), m.GetStats()["cycles"])
}
