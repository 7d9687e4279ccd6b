package build

import (
	"sync"
	"time"
)

// Metrics counts compiles across builds.
type Metrics struct {
	TotalFiles      int64
	CompiledFiles   int64
	FailedFiles     int64
	CacheHits       int64
	WrittenFiles    int64
	Warnings        int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	mutex           sync.RWMutex
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one file result.
func (m *Metrics) Record(r FileResult) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalFiles++
	m.TotalDuration += r.Duration
	switch {
	case r.Diags.HasErrors() || r.Err != nil:
		m.FailedFiles++
	case r.Cached:
		m.CacheHits++
	default:
		m.CompiledFiles++
	}
	if r.Written {
		m.WrittenFiles++
	}
	m.Warnings += int64(len(r.Diags.Warnings()))
	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalFiles)
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Metrics{
		TotalFiles:      m.TotalFiles,
		CompiledFiles:   m.CompiledFiles,
		FailedFiles:     m.FailedFiles,
		CacheHits:       m.CacheHits,
		WrittenFiles:    m.WrittenFiles,
		Warnings:        m.Warnings,
		AverageDuration: m.AverageDuration,
		TotalDuration:   m.TotalDuration,
	}
}

// CacheHitRate returns cache hits as a percentage of files.
func (m *Metrics) CacheHitRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalFiles == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(m.TotalFiles) * 100
}
