// Package clock provides the runtime's sense of time and resource pressure:
// a monotonic now(), sampled CPU/memory/load metrics, process uptime, and
// jittered timers for cadence-driven loops.
package clock

import (
	"math/rand"
	"runtime"
	"sync"
	"time"

	"codenerd-cognitive/internal/logging"
)

// Metrics is a point-in-time sample of process and system load.
type Metrics struct {
	CPUPercent    float64
	MemoryPercent float64
	LoadAverage   float64
	Goroutines    int
	SampledAt     time.Time
}

// Probe samples and caches system metrics on a configurable interval. CPU
// and memory percentages are process-relative approximations derived from
// Go runtime statistics, since the spec treats the storage/metrics backend
// as an external collaborator and only the probe contract is in scope.
type Probe struct {
	mu          sync.RWMutex
	last        Metrics
	birth       time.Time
	sampleEvery time.Duration
	maxMemoryMB int
	stopCh      chan struct{}
	stopped     bool
}

// NewProbe creates a metrics probe. maxMemoryMB bounds what counts as 100%
// memory usage for the purpose of MemoryPercent.
func NewProbe(sampleEvery time.Duration, maxMemoryMB int) *Probe {
	if sampleEvery <= 0 {
		sampleEvery = time.Second
	}
	if maxMemoryMB <= 0 {
		maxMemoryMB = 4096
	}
	p := &Probe{
		birth:       time.Now(),
		sampleEvery: sampleEvery,
		maxMemoryMB: maxMemoryMB,
		stopCh:      make(chan struct{}),
	}
	p.sample()
	return p
}

// Now returns the current wall-clock time. Centralized so tests can
// substitute a fake clock by wrapping Probe with an interface.
func (p *Probe) Now() time.Time {
	return time.Now()
}

// Uptime returns the duration since the probe (and therefore the process)
// was born.
func (p *Probe) Uptime() time.Duration {
	return time.Since(p.birth)
}

// Sample returns the most recently captured metrics snapshot, sampling
// fresh ones if the cache has gone stale.
func (p *Probe) Sample() Metrics {
	p.mu.RLock()
	stale := time.Since(p.last.SampledAt) > p.sampleEvery
	m := p.last
	p.mu.RUnlock()

	if stale {
		p.sample()
		p.mu.RLock()
		m = p.last
		p.mu.RUnlock()
	}
	return m
}

func (p *Probe) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	heapMB := float64(mem.HeapAlloc) / (1024 * 1024)
	memPct := (heapMB / float64(p.maxMemoryMB)) * 100
	if memPct > 100 {
		memPct = 100
	}

	numGoroutines := runtime.NumGoroutine()
	// CPU percent has no portable cheap signal from the standard runtime;
	// approximate via goroutine pressure relative to GOMAXPROCS as a
	// back-pressure proxy for the scheduler's homeostasis gate.
	cpuPct := (float64(numGoroutines) / float64(runtime.GOMAXPROCS(0)*20)) * 100
	if cpuPct > 100 {
		cpuPct = 100
	}

	m := Metrics{
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		LoadAverage:   float64(numGoroutines),
		Goroutines:    numGoroutines,
		SampledAt:     time.Now(),
	}

	p.mu.Lock()
	p.last = m
	p.mu.Unlock()

	logging.ClockDebug("sampled cpu=%.1f%% mem=%.1f%% goroutines=%d", m.CPUPercent, m.MemoryPercent, m.Goroutines)
}

// Run starts a background sampling loop at the probe's configured
// interval. Blocks until Stop is called; intended to run in its own
// goroutine from the composition root.
func (p *Probe) Run() {
	ticker := time.NewTicker(p.sampleEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sample()
		case <-p.stopCh:
			return
		}
	}
}

// Stop halts the background sampling loop.
func (p *Probe) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)
}

// JitteredInterval returns base plus up to ±fraction*base of uniform
// random jitter, used to desynchronize periodic loops (reflection
// scheduling, decay ticks) across multiple agent instances.
func JitteredInterval(base time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	span := float64(base) * fraction
	delta := (rand.Float64()*2 - 1) * span
	result := time.Duration(float64(base) + delta)
	if result < 0 {
		return 0
	}
	return result
}
