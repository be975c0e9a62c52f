// Package assembler implements the self-description assembler: it
// renders the system prompt on every request from the agent's live
// identity (body, hormones, confidence), packs memory candidates within
// a five-slot token budget, and selects between A/B prompt variants.
package assembler

import (
	"strings"

	"codenerd-cognitive/internal/body"
	"codenerd-cognitive/internal/hormone"
	"codenerd-cognitive/internal/logging"
)

// MemoryCandidate is one memory item competing for inclusion, already
// scored by the memory store's retrieval weighting.
type MemoryCandidate struct {
	Text      string
	Relevance float64
	Recency   float64 // higher is more recent; used to order "recent" eviction
}

// Request bundles everything one Assemble call needs.
type Request struct {
	UserMessage      string
	RecentMemories   []MemoryCandidate
	RetrievedMemories []MemoryCandidate
	RecentSummary    string
	TopicHint        string

	Body       body.Snapshot
	Hormones   hormone.Levels
	Confidence ConfidenceSummary
	Insights   []ReflectionInsight

	Tokenizer Tokenizer
}

// Result is the output of one Assemble call.
type Result struct {
	PromptText         string
	TotalTokens        int
	Truncated          bool
	OptimizationsApplied []string
}

// Assembler owns the token budget manager and the A/B variant manager,
// and renders one complete prompt per Assemble call.
type Assembler struct {
	budget             *TokenBudgetManager
	ab                 *ABManager
	capabilityMinConf  float64
	maxInsights        int
	baselineSystem     string
	baselineSelf       string
}

// New creates an assembler. capabilityMinConfidence is the strong/weak
// capability split threshold; maxInsights bounds the reflection section.
func New(contextWindow int, fractions Fractions, ab *ABManager, capabilityMinConfidence float64, maxInsights int) *Assembler {
	return &Assembler{
		budget:            NewTokenBudgetManager(contextWindow, fractions),
		ab:                ab,
		capabilityMinConf: capabilityMinConfidence,
		maxInsights:       maxInsights,
		baselineSystem:    "You are a self-reflective cognitive agent. Operate carefully and honestly.",
		baselineSelf:      "",
	}
}

// SetFractions hot-swaps the budget fractions, taking effect on the next
// Assemble call.
func (a *Assembler) SetFractions(f Fractions) { a.budget.SetFractions(f) }

// SetContextWindow hot-swaps the model context window, taking effect on
// the next Assemble call.
func (a *Assembler) SetContextWindow(tokens int) { a.budget.SetContextWindow(tokens) }

// systemPromptVariant resolves the active system-prompt variant, falling
// back to the baseline template when none is active.
func (a *Assembler) systemPromptVariant() string {
	if a.ab == nil {
		return a.baselineSystem
	}
	name, ok := a.ab.Active(NamespaceSystemPrompt)
	if !ok {
		return a.baselineSystem
	}
	return name
}

// Assemble runs the full five-step assembly algorithm, fitting the
// result within the resolved token budget.
func (a *Assembler) Assemble(req Request) Result {
	timer := logging.StartTimer(logging.CategoryAssembler, "Assemble")
	defer timer.Stop()

	alloc := a.budget.Resolve()
	var opts []string

	state := SelectIdentityState(req.Confidence, a.capabilityMinConf)
	identitySection := RenderIdentity(state, req.Body, req.Hormones, req.Confidence)
	capabilitySection := RenderCapabilities(req.Confidence.Capabilities, a.capabilityMinConf)
	anyWeak := HasWeakCapability(req.Confidence.Capabilities, a.capabilityMinConf)
	guidanceSection := RenderGuidance(req.Confidence.OverallUncertainty, anyWeak)
	reflectionSection := RenderReflection(req.Insights, a.maxInsights)

	selfSection := strings.Join(nonEmpty(identitySection, capabilitySection, guidanceSection, reflectionSection), "\n\n")
	selfSection = truncateToTokens(req.Tokenizer, selfSection, alloc.Self)

	systemSection := a.systemPromptVariant()
	systemSection = truncateToTokens(req.Tokenizer, systemSection, alloc.System)

	retrieved := append([]MemoryCandidate(nil), req.RetrievedMemories...)
	recent := append([]MemoryCandidate(nil), req.RecentMemories...)

	memoryBudget := alloc.Memory
	memorySection, memTokens := renderMemories(req.Tokenizer, recent, retrieved, req.RecentSummary)

	if estimate(req.Tokenizer, memorySection) > memoryBudget {
		retrieved = dropLowRelevance(retrieved, 0.4)
		memorySection, memTokens = renderMemories(req.Tokenizer, recent, retrieved, req.RecentSummary)
		opts = append(opts, "drop_retrieved_below_0.4")
	}
	if estimate(req.Tokenizer, memorySection) > memoryBudget {
		recent = dropOldest(recent)
		memorySection, memTokens = renderMemories(req.Tokenizer, recent, retrieved, req.RecentSummary)
		opts = append(opts, "drop_oldest_recent")
		for estimate(req.Tokenizer, memorySection) > memoryBudget && len(recent) > 0 {
			recent = dropOldest(recent)
			memorySection, memTokens = renderMemories(req.Tokenizer, recent, retrieved, req.RecentSummary)
		}
	}
	if estimate(req.Tokenizer, memorySection) > memoryBudget {
		reflectionSection = compressHeadlines(req.Insights, a.maxInsights)
		selfSection = strings.Join(nonEmpty(identitySection, capabilitySection, guidanceSection, reflectionSection), "\n\n")
		selfSection = truncateToTokens(req.Tokenizer, selfSection, alloc.Self)
		opts = append(opts, "compress_reflection_headlines")
	}
	_ = memTokens

	workingSection := req.UserMessage
	truncated := false
	if estimate(req.Tokenizer, workingSection) > alloc.Working {
		workingSection = truncateToTokens(req.Tokenizer, workingSection, alloc.Working)
		opts = append(opts, "truncate_working_area")
		truncated = true
	}

	promptText := strings.Join(nonEmpty(systemSection, selfSection, memorySection, workingSection), "\n\n")
	total := estimate(req.Tokenizer, promptText)

	return Result{
		PromptText:           promptText,
		TotalTokens:          total,
		Truncated:            truncated,
		OptimizationsApplied: opts,
	}
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func renderMemories(tok Tokenizer, recent, retrieved []MemoryCandidate, summary string) (string, int) {
	var b strings.Builder
	if summary != "" {
		b.WriteString("# Summary\n\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if len(recent) > 0 {
		b.WriteString("# Recent Memory\n\n")
		for _, m := range recent {
			b.WriteString("- " + m.Text + "\n")
		}
		b.WriteString("\n")
	}
	if len(retrieved) > 0 {
		b.WriteString("# Retrieved Memory\n\n")
		for _, m := range retrieved {
			b.WriteString("- " + m.Text + "\n")
		}
	}
	text := strings.TrimSpace(b.String())
	return text, estimate(tok, text)
}

// dropLowRelevance removes retrieved candidates below the relevance
// threshold, grounding spec step "drop retrieved memories below
// relevance 0.4".
func dropLowRelevance(candidates []MemoryCandidate, threshold float64) []MemoryCandidate {
	out := make([]MemoryCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Relevance >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// dropOldest removes the single oldest (lowest Recency) recent memory.
func dropOldest(recent []MemoryCandidate) []MemoryCandidate {
	if len(recent) == 0 {
		return recent
	}
	oldestIdx := 0
	for i, c := range recent {
		if c.Recency < recent[oldestIdx].Recency {
			oldestIdx = i
		}
	}
	return append(recent[:oldestIdx], recent[oldestIdx+1:]...)
}

// compressHeadlines renders reflection insights as bare headlines,
// dropping confidence figures and any surrounding narration.
func compressHeadlines(insights []ReflectionInsight, n int) string {
	if len(insights) == 0 {
		return ""
	}
	if n > 0 && len(insights) > n {
		insights = insights[len(insights)-n:]
	}
	var b strings.Builder
	b.WriteString("# Recent Reflection\n\n")
	for i := len(insights) - 1; i >= 0; i-- {
		b.WriteString("- " + insights[i].Summary + "\n")
	}
	return b.String()
}

// RecordOutcome routes a completed request's (success, latency, tokens)
// to both the active variant and the caller-supplied Bayesian store
// update, fulfilling the dual-recording requirement.
func (a *Assembler) RecordOutcome(ns Namespace, success bool, latencyMs float64, tokens int, onVariant func(name string)) {
	if a.ab == nil {
		return
	}
	name, ok := a.ab.Active(ns)
	if !ok {
		return
	}
	a.ab.Record(ns, name, success, latencyMs, tokens)
	if onVariant != nil {
		onVariant(name)
	}
}
