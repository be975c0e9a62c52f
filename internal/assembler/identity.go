package assembler

import (
	"fmt"
	"sort"
	"strings"

	"codenerd-cognitive/internal/body"
	"codenerd-cognitive/internal/hormone"
)

// IdentityState selects which template renders the identity section.
// Stressed takes priority over every other state.
type IdentityState string

const (
	StateConfident IdentityState = "confident"
	StateLearning  IdentityState = "learning"
	StateUncertain IdentityState = "uncertain"
	StateStressed  IdentityState = "stressed"
)

// CapabilityConfidence is one capability's current confidence reading,
// used for the strong/weak split and the high-risk check.
type CapabilityConfidence struct {
	Name       string
	Confidence float64
}

// ConfidenceSummary aggregates the Bayesian store into the figures the
// identity template and state selection need.
type ConfidenceSummary struct {
	AverageConfidence  float64
	OverallUncertainty float64
	Capabilities       []CapabilityConfidence
}

// SelectIdentityState implements the priority rule: stressed overrides
// everything; otherwise confident, then learning, then uncertain
// (presence of any capability below minConfidence), defaulting to
// learning if none apply.
func SelectIdentityState(cs ConfidenceSummary, minConfidence float64) IdentityState {
	if cs.OverallUncertainty > 0.20 {
		return StateStressed
	}
	if cs.OverallUncertainty <= 0.15 && cs.AverageConfidence >= 0.5 {
		return StateConfident
	}
	if cs.AverageConfidence < 0.5 {
		return StateLearning
	}
	for _, c := range cs.Capabilities {
		if c.Confidence < minConfidence {
			return StateUncertain
		}
	}
	return StateLearning
}

// RenderIdentity produces the identity section text from a body snapshot,
// hormone levels, and the selected template state.
func RenderIdentity(state IdentityState, snap body.Snapshot, levels hormone.Levels, cs ConfidenceSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Identity\n\n")
	fmt.Fprintf(&b, "Process %d (parent %d) on %s, running since %s.\n",
		snap.Identity.PID, snap.Identity.PPID, snap.Identity.Hostname, snap.Identity.CapturedAt.Format("2006-01-02T15:04:05Z"))

	switch state {
	case StateStressed:
		fmt.Fprintf(&b, "\nCurrent state: stressed. Overall uncertainty is elevated (%.2f); "+
			"stress %.2f, stability %.2f. Favor conservative, verifiable actions.\n",
			cs.OverallUncertainty, levels.Stress, levels.Stability)
	case StateConfident:
		fmt.Fprintf(&b, "\nCurrent state: confident. Average capability confidence %.2f, uncertainty %.2f. "+
			"Curiosity %.2f, reward %.2f.\n",
			cs.AverageConfidence, cs.OverallUncertainty, levels.Curiosity, levels.Reward)
	case StateUncertain:
		fmt.Fprintf(&b, "\nCurrent state: uncertain. At least one capability reads below the confidence floor; "+
			"verify before relying on it. Alert %.2f.\n", levels.Alert)
	default: // StateLearning
		fmt.Fprintf(&b, "\nCurrent state: learning. Average capability confidence is %.2f and still accumulating "+
			"evidence. Curiosity %.2f.\n", cs.AverageConfidence, levels.Curiosity)
	}
	return b.String()
}

// RenderCapabilities splits capabilities into strong (>= minConfidence)
// and weak, rendered with numeric percentages, strongest first within
// each group. With no capabilities it returns an empty string, so the
// section is omitted.
func RenderCapabilities(caps []CapabilityConfidence, minConfidence float64) string {
	if len(caps) == 0 {
		return ""
	}
	strong :=make([]CapabilityConfidence, 0, len(caps))
	weak := make([]CapabilityConfidence, 0, len(caps))
	for _, c := range caps {
		if c.Confidence >= minConfidence {
			strong = append(strong, c)
		} else {
			weak = append(weak, c)
		}
	}
	sort.Slice(strong, func(i, j int) bool { return strong[i].Confidence > strong[j].Confidence })
	sort.Slice(weak, func(i, j int) bool { return weak[i].Confidence > weak[j].Confidence })

	var b strings.Builder
	b.WriteString("# Capabilities\n\n")
	if len(strong) > 0 {
		b.WriteString("Strong:\n")
		for _, c := range strong {
			fmt.Fprintf(&b, "- %s (%.0f%%)\n", c.Name, c.Confidence*100)
		}
	}
	if len(weak) > 0 {
		b.WriteString("Developing:\n")
		for _, c := range weak {
			fmt.Fprintf(&b, "- %s (%.0f%%)\n", c.Name, c.Confidence*100)
		}
	}
	return b.String()
}

// HasWeakCapability reports whether any capability falls below
// minConfidence, used to gate the low-confidence guidance addendum.
func HasWeakCapability(caps []CapabilityConfidence, minConfidence float64) bool {
	for _, c := range caps {
		if c.Confidence < minConfidence {
			return true
		}
	}
	return false
}

const defaultGuidance = "Act within declared capabilities. Prefer verifiable, reversible steps. " +
	"Report uncertainty rather than guessing."

const highUncertaintyAddendum = "Uncertainty is currently elevated across the board: " +
	"favor observation and low-risk actions, and surface confidence levels explicitly."

const lowConfidenceAddendum = "At least one capability is still developing: verify its output " +
	"before depending on it, and prefer a stronger capability when one is available."

// RenderGuidance assembles behavioral guidance: the default addendum plus
// conditional addenda for elevated uncertainty and weak capabilities.
func RenderGuidance(overallUncertainty float64, anyWeak bool) string {
	var b strings.Builder
	b.WriteString("# Guidance\n\n")
	b.WriteString(defaultGuidance)
	if overallUncertainty > 0.15 {
		b.WriteString("\n\n")
		b.WriteString(highUncertaintyAddendum)
	}
	if anyWeak {
		b.WriteString("\n\n")
		b.WriteString(lowConfidenceAddendum)
	}
	b.WriteString("\n")
	return b.String()
}

// ReflectionInsight is the minimal shape the assembler needs from the
// reflection engine to render its integration section.
type ReflectionInsight struct {
	Summary    string
	Confidence float64
}

// RenderReflection renders the latest up-to-n reflective insights,
// most-recent first.
func RenderReflection(insights []ReflectionInsight, n int) string {
	if len(insights) == 0 {
		return ""
	}
	if n > 0 && len(insights) > n {
		insights = insights[len(insights)-n:]
	}
	var b strings.Builder
	b.WriteString("# Recent Reflection\n\n")
	for i := len(insights) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "- %s (confidence %.2f)\n", insights[i].Summary, insights[i].Confidence)
	}
	return b.String()
}
