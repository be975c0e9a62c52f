package confidence

import (
	"math"
	"testing"
)

func TestGetUnseenReturnsUniformPrior(t *testing.T) {
	s := New()
	b := s.Get("never-used")
	if b.Alpha != 1 || b.Beta != 1 {
		t.Errorf("expected Beta(1,1) prior, got %+v", b)
	}
	if b.Confidence() != 0.5 {
		t.Errorf("expected confidence 0.5 for uniform prior, got %f", b.Confidence())
	}
}

func TestUpdateIncrementsCorrectSide(t *testing.T) {
	s := New()
	s.Update("tool.read_file", true)
	s.Update("tool.read_file", true)
	s.Update("tool.read_file", false)

	b := s.Get("tool.read_file")
	if b.Alpha != 3 || b.Beta != 2 {
		t.Errorf("expected alpha=3 beta=2, got alpha=%f beta=%f", b.Alpha, b.Beta)
	}
}

func TestSeedClampsToMinimumOne(t *testing.T) {
	s := New()
	s.Seed("cap", 0, 0)
	b := s.Get("cap")
	if b.Alpha != 1 || b.Beta != 1 {
		t.Errorf("expected clamp to 1, got %+v", b)
	}
}

func TestShouldUseExploresUndersampledCapability(t *testing.T) {
	s := New()
	s.Update("new.tool", false) // one failure, should still be below minSamples
	if !s.ShouldUse("new.tool", 0.9, 5) {
		t.Error("expected exploration of under-sampled capability regardless of threshold")
	}
}

func TestShouldUseRespectsThresholdOnceSampled(t *testing.T) {
	s := New()
	for i := 0; i < 20; i++ {
		s.Update("reliable.tool", true)
	}
	if !s.ShouldUse("reliable.tool", 0.8, 5) {
		t.Error("expected high-confidence capability to pass threshold")
	}

	for i := 0; i < 20; i++ {
		s.Update("unreliable.tool", false)
	}
	if s.ShouldUse("unreliable.tool", 0.8, 5) {
		t.Error("expected low-confidence capability to fail threshold")
	}
}

func TestBestAmongPrefersUnknownOverPoorPerformer(t *testing.T) {
	s := New()
	for i := 0; i < 30; i++ {
		s.Update("poor", false)
	}
	best, ok := s.BestAmong([]string{"poor", "unknown"}, 1.0)
	if !ok {
		t.Fatal("expected a result for non-empty input")
	}
	if best != "unknown" {
		t.Errorf("expected unseen capability to dominate a poor performer, got %q", best)
	}
}

func TestBestAmongEmptyInput(t *testing.T) {
	s := New()
	if _, ok := s.BestAmong(nil, 1.0); ok {
		t.Error("expected false for empty input")
	}
}

func TestCompareUncertainWhenOverlapping(t *testing.T) {
	s := New()
	s.Seed("a", 5, 5)
	s.Seed("b", 5, 5)
	if got := s.Compare("a", "b"); got != CompareUncertain {
		t.Errorf("expected CompareUncertain for identical distributions, got %v", got)
	}
}

func TestCompareDecisiveWhenSeparated(t *testing.T) {
	s := New()
	for i := 0; i < 50; i++ {
		s.Update("strong", true)
		s.Update("weak", false)
	}
	if got := s.Compare("strong", "weak"); got != CompareA {
		t.Errorf("expected CompareA for a clearly stronger capability, got %v", got)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := New()
	s.Update("roundtrip", true)
	s.Update("roundtrip", true)
	s.Update("roundtrip", false)

	entries := s.Export()

	s2 := New()
	s2.Import(entries)

	b1 := s.Get("roundtrip")
	b2 := s2.Get("roundtrip")
	if b1 != b2 {
		t.Errorf("expected round-tripped distribution to match, got %+v vs %+v", b1, b2)
	}
}

func TestUCBRewardsUncertainty(t *testing.T) {
	s := New()
	s.Seed("sampled", 40, 40) // same mean as uniform prior but much lower variance
	sampledUCB := s.UCB("sampled", 1.0)
	unseenUCB := s.UCB("fresh", 1.0)
	if !(unseenUCB > sampledUCB) {
		t.Errorf("expected unseen (high-variance) capability to have a higher UCB score, got sampled=%f unseen=%f", sampledUCB, unseenUCB)
	}
}

func TestUncertaintyDecreasesWithSamples(t *testing.T) {
	s := New()
	initial := s.Uncertainty("x")
	for i := 0; i < 100; i++ {
		s.Update("x", true)
	}
	after := s.Uncertainty("x")
	if after >= initial {
		t.Errorf("expected uncertainty to shrink with more samples: %f -> %f", initial, after)
	}
	if math.IsNaN(after) {
		t.Error("uncertainty should never be NaN")
	}
}
