package assembler

import (
	"strings"
	"testing"
	"time"

	"codenerd-cognitive/internal/body"
	"codenerd-cognitive/internal/hormone"
)

func TestSelectIdentityStateStressedOverridesAll(t *testing.T) {
	cs := ConfidenceSummary{OverallUncertainty: 0.5, AverageConfidence: 0.9}
	if got := SelectIdentityState(cs, 0.5); got != StateStressed {
		t.Errorf("expected stressed to override all other states, got %v", got)
	}
}

func TestSelectIdentityStateConfident(t *testing.T) {
	cs := ConfidenceSummary{OverallUncertainty: 0.1, AverageConfidence: 0.8}
	if got := SelectIdentityState(cs, 0.5); got != StateConfident {
		t.Errorf("expected confident state, got %v", got)
	}
}

func TestSelectIdentityStateLearningOnLowAverage(t *testing.T) {
	cs := ConfidenceSummary{OverallUncertainty: 0.18, AverageConfidence: 0.3}
	if got := SelectIdentityState(cs, 0.5); got != StateLearning {
		t.Errorf("expected learning state on low average confidence, got %v", got)
	}
}

func TestSelectIdentityStateUncertainOnWeakCapability(t *testing.T) {
	cs := ConfidenceSummary{
		OverallUncertainty: 0.18,
		AverageConfidence:  0.6,
		Capabilities:       []CapabilityConfidence{{Name: "weak", Confidence: 0.2}},
	}
	if got := SelectIdentityState(cs, 0.5); got != StateUncertain {
		t.Errorf("expected uncertain state when a capability is below the floor, got %v", got)
	}
}

func TestSelectIdentityStateDefaultsToLearning(t *testing.T) {
	cs := ConfidenceSummary{
		OverallUncertainty: 0.18,
		AverageConfidence:  0.6,
		Capabilities:       []CapabilityConfidence{{Name: "ok", Confidence: 0.9}},
	}
	if got := SelectIdentityState(cs, 0.5); got != StateLearning {
		t.Errorf("expected learning as the fallback state, got %v", got)
	}
}

func testSnapshot() body.Snapshot {
	return body.Snapshot{
		Identity: body.Identity{PID: 123, PPID: 1, Hostname: "host", CapturedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestRenderIdentityIncludesProcessDetails(t *testing.T) {
	out := RenderIdentity(StateConfident, testSnapshot(), hormone.Levels{}, ConfidenceSummary{})
	if !strings.Contains(out, "Process 123") {
		t.Errorf("expected identity section to include PID, got %q", out)
	}
}

func TestRenderIdentityStressedMentionsStress(t *testing.T) {
	out := RenderIdentity(StateStressed, testSnapshot(), hormone.Levels{Stress: 0.8}, ConfidenceSummary{OverallUncertainty: 0.3})
	if !strings.Contains(out, "stressed") {
		t.Errorf("expected stressed template to mention stress, got %q", out)
	}
}

func TestRenderCapabilitiesSplitsStrongAndWeak(t *testing.T) {
	caps := []CapabilityConfidence{
		{Name: "strong-a", Confidence: 0.9},
		{Name: "weak-a", Confidence: 0.2},
		{Name: "strong-b", Confidence: 0.95},
	}
	out := RenderCapabilities(caps, 0.5)
	if !strings.Contains(out, "Strong:") || !strings.Contains(out, "Developing:") {
		t.Fatalf("expected both sections present, got %q", out)
	}
	strongIdx := strings.Index(out, "Strong:")
	bIdx := strings.Index(out, "strong-b")
	aIdx := strings.Index(out, "strong-a")
	if !(strongIdx < bIdx && bIdx < aIdx) {
		t.Errorf("expected strong capabilities ordered by descending confidence, got %q", out)
	}
}

func TestHasWeakCapability(t *testing.T) {
	caps := []CapabilityConfidence{{Name: "x", Confidence: 0.1}}
	if !HasWeakCapability(caps, 0.5) {
		t.Error("expected weak capability detected below threshold")
	}
	if HasWeakCapability(nil, 0.5) {
		t.Error("expected no weak capability for an empty list")
	}
}

func TestRenderGuidanceAddsAddendaConditionally(t *testing.T) {
	base := RenderGuidance(0.05, false)
	if strings.Contains(base, highUncertaintyAddendum) || strings.Contains(base, lowConfidenceAddendum) {
		t.Errorf("expected no addenda at low uncertainty with no weak capability, got %q", base)
	}

	both := RenderGuidance(0.3, true)
	if !strings.Contains(both, highUncertaintyAddendum) || !strings.Contains(both, lowConfidenceAddendum) {
		t.Errorf("expected both addenda present, got %q", both)
	}
}

func TestRenderReflectionEmptyReturnsEmptyString(t *testing.T) {
	if got := RenderReflection(nil, 3); got != "" {
		t.Errorf("expected empty string for no insights, got %q", got)
	}
}

func TestRenderReflectionLimitsToNMostRecent(t *testing.T) {
	insights := []ReflectionInsight{
		{Summary: "first", Confidence: 0.1},
		{Summary: "second", Confidence: 0.2},
		{Summary: "third", Confidence: 0.3},
	}
	out := RenderReflection(insights, 2)
	if strings.Contains(out, "first") {
		t.Errorf("expected oldest insight dropped, got %q", out)
	}
	if !strings.Contains(out, "second") || !strings.Contains(out, "third") {
		t.Errorf("expected the 2 most recent insights present, got %q", out)
	}

	thirdIdx := strings.Index(out, "third")
	secondIdx := strings.Index(out, "second")
	if thirdIdx > secondIdx {
		t.Errorf("expected most-recent insight rendered first, got %q", out)
	}
}
