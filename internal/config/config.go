package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codenerd-cognitive/internal/logging"

	"gopkg.in/yaml.v3"
)

// Config holds the complete runtime configuration for the cognitive agent.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Hormone    HormoneConfig    `yaml:"hormone"`
	Memory     MemoryConfig     `yaml:"memory"`
	Reflection ReflectionConfig `yaml:"reflection"`
	Assembler  AssemblerConfig  `yaml:"assembler"`
	Safety     SafetyConfig     `yaml:"safety"`
	AB         ABConfig         `yaml:"ab"`

	CoreLimits CoreLimits    `yaml:"core_limits"`
	Logging    LoggingConfig `yaml:"logging"`

	// SourcePath is the file Load read this configuration from, left
	// empty for defaults-only construction. Not persisted to YAML.
	SourcePath string `yaml:"-"`
}

// SchedulerConfig governs task admission and execution cadence.
type SchedulerConfig struct {
	AsyncLoopIntervalMs int     `yaml:"async_loop_interval_ms"`
	DefaultTimeoutMs    int     `yaml:"default_timeout_ms"`
	MaxConcurrent       int     `yaml:"max_concurrent"`
	HomeostasisEnable   bool    `yaml:"homeostasis_enable"`
	CPUThresholdPct     float64 `yaml:"cpu_threshold_pct"`
	MemoryThresholdPct  float64 `yaml:"memory_threshold_pct"`
	FatigueThreshold    float64 `yaml:"fatigue_threshold"`
}

// HormoneConfig governs hormone field decay cadence.
type HormoneConfig struct {
	DecayTickMs int `yaml:"decay_tick_ms"`
}

// RetrievalWeights weights semantic/temporal/importance scoring in recall.
type RetrievalWeights struct {
	Semantic   float64 `yaml:"semantic"`
	Temporal   float64 `yaml:"temporal"`
	Importance float64 `yaml:"importance"`
}

// MemoryConfig governs the memory store and forgetting policy.
type MemoryConfig struct {
	DatabasePath    string           `yaml:"database_path"`
	MaxCount        int              `yaml:"max_count"`
	PruneThreshold  float64          `yaml:"prune_threshold"`
	RetrievalWeight RetrievalWeights `yaml:"retrieval_defaults"`
}

// ReflectionConfig governs the reflection engine's cadence and approval gate.
type ReflectionConfig struct {
	ScheduleIntervalMs int    `yaml:"schedule_interval_ms"`
	ApprovalMode       string `yaml:"approval_mode"` // auto | conservative | human
}

// BudgetFractions is the 5-slot token budget split: system/self/memory/working/reserve.
type BudgetFractions struct {
	System  float64 `yaml:"system"`
	Self    float64 `yaml:"self"`
	Memory  float64 `yaml:"memory"`
	Working float64 `yaml:"working"`
	Reserve float64 `yaml:"reserve"`
}

// AssemblerConfig governs self-description assembly token budgeting.
type AssemblerConfig struct {
	MaxContextWindow        int             `yaml:"max_context_window"`
	BudgetFractions         BudgetFractions `yaml:"budget_fractions"`
	CapabilityMinConfidence float64         `yaml:"capability_min_confidence"`
	MaxReflectionInsights   int             `yaml:"max_reflection_insights"`
}

// SafetyConfig governs the safety envelope's strictness.
type SafetyConfig struct {
	StrictMode     bool    `yaml:"strict_mode"`
	AutoMitigate   bool    `yaml:"auto_mitigate"`
	BlockThreshold float64 `yaml:"block_threshold"`
}

// ABConfig governs the assembler's A/B variant comparison gate.
type ABConfig struct {
	MinSamplesForComparison int     `yaml:"min_samples_for_comparison"`
	ConfidenceThreshold     float64 `yaml:"confidence_threshold"`
}

// DefaultConfig returns the default configuration, matching spec defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cognitive-agent",
		Version: "0.1.0",

		Scheduler: SchedulerConfig{
			AsyncLoopIntervalMs: 100,
			DefaultTimeoutMs:    30000,
			MaxConcurrent:       5,
			HomeostasisEnable:   true,
			CPUThresholdPct:     80,
			MemoryThresholdPct:  85,
			FatigueThreshold:    0.7,
		},

		Hormone: HormoneConfig{
			DecayTickMs: 1000,
		},

		Memory: MemoryConfig{
			DatabasePath:   "data/agent.db",
			MaxCount:       10000,
			PruneThreshold: 0.1,
			RetrievalWeight: RetrievalWeights{
				Semantic:   0.4,
				Temporal:   0.3,
				Importance: 0.3,
			},
		},

		Reflection: ReflectionConfig{
			ScheduleIntervalMs: 1800000,
			ApprovalMode:       "conservative",
		},

		Assembler: AssemblerConfig{
			MaxContextWindow: 8192,
			BudgetFractions: BudgetFractions{
				System:  0.10,
				Self:    0.20,
				Memory:  0.25,
				Working: 0.35,
				Reserve: 0.10,
			},
			CapabilityMinConfidence: 0.5,
			MaxReflectionInsights:   3,
		},

		Safety: SafetyConfig{
			StrictMode:     true,
			AutoMitigate:   true,
			BlockThreshold: 0.7,
		},

		AB: ABConfig{
			MinSamplesForComparison: 10,
			ConfidenceThreshold:     0.95,
		},

		CoreLimits: CoreLimits{
			MaxTotalMemoryMB:    4096,
			MaxConcurrentTasks:  5,
			MaxSessionDuration:  120,
			MaxMemoryRecords:    50000,
			MaxCapabilities:     2000,
		},

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			File:      "agent.log",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults if
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.SourcePath = path
	logging.BootDebug("loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SourcePath = path

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: name=%s version=%s", cfg.Name, cfg.Version)

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides on top of the
// loaded/default configuration.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("AGENT_DB_PATH"); path != "" {
		c.Memory.DatabasePath = path
	}
	if v := os.Getenv("AGENT_MAX_CONCURRENT"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			c.Scheduler.MaxConcurrent = n
		}
	}
	if v := os.Getenv("AGENT_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
	if v := os.Getenv("AGENT_APPROVAL_MODE"); v != "" {
		c.Reflection.ApprovalMode = v
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("non-positive value: %s", s)
	}
	return n, nil
}

// Set applies a hot update to a single dotted config key, e.g.
// "scheduler.max_concurrent" -> 8. Used by the composition root's
// reflection mutator to apply an approved proposal's action; the config
// watcher reloads the whole file through Load instead.
func (c *Config) Set(path string, value interface{}) error {
	switch path {
	case "scheduler.max_concurrent":
		n, ok := toInt(value)
		if !ok {
			return fmt.Errorf("scheduler.max_concurrent: expected int, got %T", value)
		}
		c.Scheduler.MaxConcurrent = n
	case "scheduler.fatigue_threshold":
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("scheduler.fatigue_threshold: expected float, got %T", value)
		}
		c.Scheduler.FatigueThreshold = f
	case "reflection.approval_mode":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("reflection.approval_mode: expected string, got %T", value)
		}
		c.Reflection.ApprovalMode = s
	case "safety.strict_mode":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("safety.strict_mode: expected bool, got %T", value)
		}
		c.Safety.StrictMode = b
	case "safety.block_threshold":
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("safety.block_threshold: expected float, got %T", value)
		}
		c.Safety.BlockThreshold = f
	case "memory.prune_threshold":
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("memory.prune_threshold: expected float, got %T", value)
		}
		c.Memory.PruneThreshold = f
	default:
		return fmt.Errorf("unknown or non-hot-swappable config key: %s", path)
	}
	return nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// GetSchedulerTimeout returns the scheduler's default task timeout.
func (c *Config) GetSchedulerTimeout() time.Duration {
	return time.Duration(c.Scheduler.DefaultTimeoutMs) * time.Millisecond
}

// GetHormoneDecayTick returns the hormone field's decay tick interval.
func (c *Config) GetHormoneDecayTick() time.Duration {
	return time.Duration(c.Hormone.DecayTickMs) * time.Millisecond
}

// GetReflectionInterval returns the reflection engine's scheduled cadence.
func (c *Config) GetReflectionInterval() time.Duration {
	return time.Duration(c.Reflection.ScheduleIntervalMs) * time.Millisecond
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Scheduler.MaxConcurrent < 1 {
		return fmt.Errorf("scheduler.max_concurrent must be >= 1")
	}
	if c.Memory.MaxCount < 1 {
		return fmt.Errorf("memory.max_count must be >= 1")
	}
	sum := c.Assembler.BudgetFractions.System + c.Assembler.BudgetFractions.Self +
		c.Assembler.BudgetFractions.Memory + c.Assembler.BudgetFractions.Working +
		c.Assembler.BudgetFractions.Reserve
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("assembler.budget_fractions must sum to ~1.0, got %.3f", sum)
	}
	switch c.Reflection.ApprovalMode {
	case "auto", "conservative", "human":
	default:
		return fmt.Errorf("invalid reflection.approval_mode: %s", c.Reflection.ApprovalMode)
	}
	return nil
}
