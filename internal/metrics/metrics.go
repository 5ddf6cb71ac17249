package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ItemsFetched      int64
	ItemsFiltered     int64
	DuplicatesSkipped int64
	Published         map[string]int64 // by kind
	PublishFailures   int64
	FetchErrors       int64
	StorageErrors     int64
	TrailerLookups    int64
	TrailerCacheHits  int64

	// Timings
	LastCycleTime    time.Duration
	AverageCycleTime time.Duration
	TotalCycleTime   time.Duration
	CycleCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func New() *Metrics {
	return &Metrics{
		Published: make(map[string]int64),
		IsHealthy: true,
	}
}

func (m *Metrics) AddFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFetched += int64(n)
}

func (m *Metrics) IncrementFiltered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFiltered++
}

func (m *Metrics) AddDuplicatesSkipped(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesSkipped += int64(n)
}

func (m *Metrics) IncrementPublished(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published[kind]++
}

func (m *Metrics) IncrementPublishFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishFailures++
}

func (m *Metrics) IncrementFetchErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchErrors++
}

func (m *Metrics) IncrementStorageErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StorageErrors++
}

func (m *Metrics) IncrementTrailerLookups() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TrailerLookups++
}

func (m *Metrics) IncrementTrailerCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TrailerCacheHits++
}

func (m *Metrics) RecordCycleTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCycleTime = duration
	m.TotalCycleTime += duration
	m.CycleCount++

	if m.CycleCount > 0 {
		m.AverageCycleTime = m.TotalCycleTime / time.Duration(m.CycleCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	published := make(map[string]int64, len(m.Published))
	for k, v := range m.Published {
		published[k] = v
	}

	return map[string]interface{}{
		"items_fetched":         m.ItemsFetched,
		"items_filtered":        m.ItemsFiltered,
		"duplicates_skipped":    m.DuplicatesSkipped,
		"published":             published,
		"publish_failures":      m.PublishFailures,
		"fetch_errors":          m.FetchErrors,
		"storage_errors":        m.StorageErrors,
		"trailer_lookups":       m.TrailerLookups,
		"trailer_cache_hits":    m.TrailerCacheHits,
		"last_cycle_time_ms":    m.LastCycleTime.Milliseconds(),
		"average_cycle_time_ms": m.AverageCycleTime.Milliseconds(),
		"cycles":                m.CycleCount,
		"last_run_time":         m.LastRunTime.Format(time.RFC3339),
		"last_error_time":       m.LastErrorTime.Format(time.RFC3339),
		"last_error":            m.LastError,
		"is_healthy":            m.IsHealthy,
	}
}
