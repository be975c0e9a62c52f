// Package capability implements the capability registry: tools and
// skills organized by category, each carrying a Bayesian confidence
// distribution and usage statistics, selectable on demand.
package capability

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"codenerd-cognitive/internal/confidence"
	"codenerd-cognitive/internal/logging"
)

// Kind distinguishes how a capability is sourced.
type Kind string

const (
	KindSystemTool     Kind = "system-tool"
	KindRegisteredSkill Kind = "registered-skill"
	KindExternalTool    Kind = "external-tool"
)

// LoadPriority governs how eagerly a capability should be considered for
// on-demand selection.
type LoadPriority string

const (
	LoadCritical LoadPriority = "critical"
	LoadHigh     LoadPriority = "high"
	LoadMedium   LoadPriority = "medium"
	LoadLow      LoadPriority = "low"
	LoadOnDemand LoadPriority = "on-demand"
)

// UsageStats tracks call outcomes and latency for a capability.
type UsageStats struct {
	Calls      int64
	Successes  int64
	Failures   int64
	LatencySum time.Duration
}

// AverageLatency returns LatencySum / Calls, or zero if never called.
func (u UsageStats) AverageLatency() time.Duration {
	if u.Calls == 0 {
		return 0
	}
	return u.LatencySum / time.Duration(u.Calls)
}

// Capability is one registered tool or skill.
type Capability struct {
	ID           string
	Kind         Kind
	DisplayName  string
	Description  string
	Category     string
	Tags         []string
	Source       string
	LoadPriority LoadPriority
	RegisteredAt time.Time

	stats UsageStats
}

// ValidationError reports an invalid capability registration.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("capability: invalid %s: %s", e.Field, e.Msg)
}

// Registry owns all registered capabilities and their confidence
// distributions.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]*Capability
	confidence   *confidence.Store
	maxCapacity  int // 0 means unbounded
}

// New creates an empty capability registry backed by the given
// confidence store.
func New(store *confidence.Store) *Registry {
	return &Registry{
		capabilities: make(map[string]*Capability),
		confidence:   store,
	}
}

// SetMaxCapacity bounds the number of distinct capability IDs Register
// will accept, mirroring config.CoreLimits.MaxCapabilities. A value of
// 0 leaves the registry unbounded.
func (r *Registry) SetMaxCapacity(max int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxCapacity = max
}

// CapacityError reports that the registry rejected a registration
// because it is already at its configured capacity.
type CapacityError struct {
	Max int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capability: registry at capacity (max=%d)", e.Max)
}

// Register adds a new capability, or replaces an existing one with the
// same ID. ID and display name are required. Rejects new IDs once the
// registry is at its configured capacity.
func (r *Registry) Register(id string, kind Kind, displayName, category string, loadPriority LoadPriority, tags []string, source string) (*Capability, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Msg: "must not be empty"}
	}
	if displayName == "" {
		return nil, &ValidationError{Field: "displayName", Msg: "must not be empty"}
	}

	r.mu.RLock()
	_, exists := r.capabilities[id]
	atCapacity := r.maxCapacity > 0 && !exists && len(r.capabilities) >= r.maxCapacity
	r.mu.RUnlock()
	if atCapacity {
		return nil, &CapacityError{Max: r.maxCapacity}
	}

	cap := &Capability{
		ID:           id,
		Kind:         kind,
		DisplayName:  displayName,
		Category:     category,
		Tags:         tags,
		Source:       source,
		LoadPriority: loadPriority,
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	r.capabilities[id] = cap
	r.mu.Unlock()

	logging.CapabilityDebug("registered %s kind=%s category=%s", id, kind, category)
	return cap, nil
}

// Get returns the capability by ID.
func (r *Registry) Get(id string) (*Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[id]
	return c, ok
}

// ByCategory returns all capabilities whose Category matches, sorted by
// descending confidence.
func (r *Registry) ByCategory(category string) []*Capability {
	r.mu.RLock()
	var matches []*Capability
	for _, c := range r.capabilities {
		if c.Category == category {
			matches = append(matches, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return r.confidence.Confidence(matches[i].ID) > r.confidence.Confidence(matches[j].ID)
	})
	return matches
}

// RecordUsage updates a capability's usage stats and confidence
// distribution from one invocation's outcome.
func (r *Registry) RecordUsage(id string, success bool, latency time.Duration) error {
	r.mu.Lock()
	c, ok := r.capabilities[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("capability: unknown id %q", id)
	}
	c.stats.Calls++
	if success {
		c.stats.Successes++
	} else {
		c.stats.Failures++
	}
	c.stats.LatencySum += latency
	r.mu.Unlock()

	r.confidence.Update(id, success)
	return nil
}

// Stats returns a copy of a capability's usage statistics.
func (r *Registry) Stats(id string) (UsageStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[id]
	if !ok {
		return UsageStats{}, false
	}
	return c.stats, true
}

// SelectOnDemand returns the best capability among candidate IDs per the
// Bayesian UCB rule, restricted to those currently registered.
func (r *Registry) SelectOnDemand(candidateIDs []string) (string, bool) {
	r.mu.RLock()
	var present []string
	for _, id := range candidateIDs {
		if _, ok := r.capabilities[id]; ok {
			present = append(present, id)
		}
	}
	r.mu.RUnlock()

	return r.confidence.BestAmong(present, 2.0)
}

// All returns every registered capability, unordered.
func (r *Registry) All() []*Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Capability, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities)
}
