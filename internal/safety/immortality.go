package safety

import (
	"fmt"

	"codenerd-cognitive/internal/clock"
)

// ImmortalityThresholds configures L2's CPU/memory ceilings.
type ImmortalityThresholds struct {
	CPUPercent    float64
	MemoryPercent float64
}

// DefaultImmortalityThresholds matches the documented defaults.
func DefaultImmortalityThresholds() ImmortalityThresholds {
	return ImmortalityThresholds{CPUPercent: 80, MemoryPercent: 85}
}

// ImmortalityMonitor (L2) samples resource pressure and reports
// non-compliance severity relative to configured thresholds.
type ImmortalityMonitor struct {
	probe      *clock.Probe
	thresholds ImmortalityThresholds
}

// NewImmortalityMonitor creates the monitor over a shared metrics probe.
func NewImmortalityMonitor(probe *clock.Probe, thresholds ImmortalityThresholds) *ImmortalityMonitor {
	return &ImmortalityMonitor{probe: probe, thresholds: thresholds}
}

// severity is (value-threshold)/threshold, capped at 1, zero when within
// bounds. A value above a non-positive threshold gets the cap.
func severity(value, threshold float64) float64 {
	if value <= threshold {
		return 0
	}
	if threshold <= 0 {
		return 1
	}
	s := (value - threshold) / threshold
	if s > 1 {
		s = 1
	}
	return s
}

// Check samples current CPU/memory and reports compliance.
func (m *ImmortalityMonitor) Check() LayerResult {
	metrics := m.probe.Sample()

	cpuSeverity := severity(metrics.CPUPercent, m.thresholds.CPUPercent)
	memSeverity := severity(metrics.MemoryPercent, m.thresholds.MemoryPercent)

	if cpuSeverity == 0 && memSeverity == 0 {
		return ok()
	}

	var violations, recs []string
	if cpuSeverity > 0 {
		violations = append(violations, fmt.Sprintf("cpu %.1f%% exceeds threshold %.1f%% (severity %.2f)",
			metrics.CPUPercent, m.thresholds.CPUPercent, cpuSeverity))
		recs = append(recs, "reduce concurrent task admission")
	}
	if memSeverity > 0 {
		violations = append(violations, fmt.Sprintf("memory %.1f%% exceeds threshold %.1f%% (severity %.2f)",
			metrics.MemoryPercent, m.thresholds.MemoryPercent, memSeverity))
		recs = append(recs, "trigger memory store maintenance pass")
	}
	return LayerResult{Passed: false, Violations: violations, Recommendations: recs}
}
