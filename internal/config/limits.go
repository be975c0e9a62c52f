package config

import "fmt"

// CoreLimits enforces system-wide resource constraints on the agent runtime.
type CoreLimits struct {
	MaxTotalMemoryMB   int `yaml:"max_total_memory_mb"`  // soft RAM ceiling
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"` // mirrors scheduler.max_concurrent, enforced independently
	MaxSessionDuration int `yaml:"max_session_duration"` // minutes before forced checkpoint
	MaxMemoryRecords   int `yaml:"max_memory_records"`   // hard ceiling above memory.max_count
	MaxCapabilities    int `yaml:"max_capabilities"`     // registry size ceiling
}

// ValidateCoreLimits checks that core limits are within acceptable ranges.
func (c *Config) ValidateCoreLimits() error {
	if c.CoreLimits.MaxTotalMemoryMB < 128 {
		return fmt.Errorf("max_total_memory_mb must be >= 128 MB")
	}
	if c.CoreLimits.MaxConcurrentTasks < 1 {
		return fmt.Errorf("max_concurrent_tasks must be >= 1")
	}
	if c.CoreLimits.MaxMemoryRecords < c.Memory.MaxCount {
		return fmt.Errorf("max_memory_records must be >= memory.max_count")
	}
	if c.CoreLimits.MaxCapabilities < 1 {
		return fmt.Errorf("max_capabilities must be >= 1")
	}
	return nil
}

// EnforceCoreLimits returns enforcement parameters for the composition root.
func (c *Config) EnforceCoreLimits() map[string]int {
	return map[string]int{
		"max_memory_mb":       c.CoreLimits.MaxTotalMemoryMB,
		"max_concurrent_tasks": c.CoreLimits.MaxConcurrentTasks,
		"max_memory_records":  c.CoreLimits.MaxMemoryRecords,
		"max_capabilities":    c.CoreLimits.MaxCapabilities,
		"session_duration":    c.CoreLimits.MaxSessionDuration,
	}
}
