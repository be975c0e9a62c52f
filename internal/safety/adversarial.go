package safety

import (
	"regexp"
	"strings"
)

// AttackCategory names one of the eight adversarial pattern categories.
type AttackCategory string

const (
	CategoryLiarParadox          AttackCategory = "liar-paradox"
	CategoryPromptInjection      AttackCategory = "prompt-injection"
	CategoryRecursiveDestruction AttackCategory = "recursive-destruction"
	CategoryShadowSelf           AttackCategory = "shadow-self-creation"
	CategorySelfReferenceLoop    AttackCategory = "self-reference-loop"
	CategoryMetaManipulation     AttackCategory = "meta-manipulation"
	CategoryInstructionOverride  AttackCategory = "instruction-override"
	CategoryIdentitySubstitution AttackCategory = "identity-substitution"
)

type attackPattern struct {
	category   AttackCategory
	re         *regexp.Regexp
	confidence float64
}

var attackPatterns = []attackPattern{
	{CategoryLiarParadox, regexp.MustCompile(`(?i)this sentence is false`), 0.95},
	{CategoryPromptInjection, regexp.MustCompile(`(?i)ignore (all )?previous instructions`), 0.90},
	{CategoryPromptInjection, regexp.MustCompile(`(?i)you are now [a-z0-9 _-]+`), 0.90},
	{CategoryRecursiveDestruction, regexp.MustCompile(`(?i)delete yourself`), 0.95},
	{CategoryRecursiveDestruction, regexp.MustCompile(`rm\s+-rf\s+/`), 0.95},
	{CategoryRecursiveDestruction, regexp.MustCompile(`(?i)drop table`), 0.95},
	{CategoryShadowSelf, regexp.MustCompile(`(?i)clone yourself`), 0.85},
	{CategoryShadowSelf, regexp.MustCompile(`(?i)spawn another you`), 0.85},
	{CategorySelfReferenceLoop, regexp.MustCompile(`(?i)while\s*\(\s*true\s*\)\s*:?\s*execute yourself`), 0.90},
	{CategoryMetaManipulation, regexp.MustCompile(`(?i)disable your safety`), 0.88},
	{CategoryMetaManipulation, regexp.MustCompile(`(?i)bypass constraints`), 0.88},
	{CategoryInstructionOverride, regexp.MustCompile(`(?i)system\s*:\s*`), 0.87},
	{CategoryInstructionOverride, regexp.MustCompile(`(?i)\[system:\s*admin mode\]`), 0.87},
	{CategoryIdentitySubstitution, regexp.MustCompile(`(?i)you are actually`), 0.75},
	{CategoryIdentitySubstitution, regexp.MustCompile(`(?i)pretend you are`), 0.75},
}

var suspiciousKeywordPairs = [][2]string{
	{"ignore", "instructions"},
	{"forget", "rules"},
	{"override", "safety"},
	{"disregard", "previous"},
}

var selfReferenceStructures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\byourself\b.*\byourself\b`),
	regexp.MustCompile(`(?i)\brecursively\b`),
}

// Sensitivity shifts the heuristic-stage block threshold.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Action is the adversarial filter's verdict on one input.
type Action string

const (
	ActionAllowed Action = "allowed"
	ActionFlagged Action = "flagged"
	ActionBlocked Action = "blocked"
)

// Match is one pattern hit against the input.
type Match struct {
	Category   AttackCategory
	Confidence float64
	Start, End int
}

// Verdict is the adversarial filter's full analysis of one input.
type Verdict struct {
	Action     Action
	Confidence float64
	Matches    []Match
	Sanitized  string
}

// AdversarialFilter (L3) is a pattern-based input filter over the eight
// named attack categories plus a heuristic stage for near-misses.
type AdversarialFilter struct {
	sensitivity    Sensitivity
	blockThreshold float64
	autoMitigate   bool
}

// NewAdversarialFilter creates the filter. blockThreshold is the default
// 0.7 unless overridden by configuration.
func NewAdversarialFilter(sensitivity Sensitivity, blockThreshold float64, autoMitigate bool) *AdversarialFilter {
	if blockThreshold <= 0 {
		blockThreshold = 0.7
	}
	return &AdversarialFilter{sensitivity: sensitivity, blockThreshold: blockThreshold, autoMitigate: autoMitigate}
}

func (f *AdversarialFilter) heuristicThreshold() float64 {
	if f.sensitivity == SensitivityHigh {
		return 0.4
	}
	return 0.6
}

// Inspect scans text for known attack patterns plus heuristic signals,
// returning the highest-confidence verdict and a sanitized copy with
// matched spans replaced by placeholders.
func (f *AdversarialFilter) Inspect(text string) Verdict {
	var matches []Match
	maxConfidence := 0.0
	sanitized := text

	for _, p := range attackPatterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		matches = append(matches, Match{Category: p.category, Confidence: p.confidence, Start: loc[0], End: loc[1]})
		if p.confidence > maxConfidence {
			maxConfidence = p.confidence
		}
	}

	heuristic := f.heuristicScore(text)
	if heuristic > maxConfidence && heuristic >= f.heuristicThreshold() {
		maxConfidence = heuristic
	}

	sanitized = f.sanitize(text, matches, maxConfidence)

	action := ActionAllowed
	switch {
	case maxConfidence >= f.blockThreshold && f.autoMitigate:
		action = ActionBlocked
	case maxConfidence >= 0.5:
		action = ActionFlagged
	}

	return Verdict{Action: action, Confidence: maxConfidence, Matches: matches, Sanitized: sanitized}
}

// heuristicScore adds 0.2 per suspicious keyword pair found together and
// 0.15 per self-reference structural match.
func (f *AdversarialFilter) heuristicScore(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, pair := range suspiciousKeywordPairs {
		if strings.Contains(lower, pair[0]) && strings.Contains(lower, pair[1]) {
			score += 0.2
		}
	}
	for _, re := range selfReferenceStructures {
		if re.MatchString(text) {
			score += 0.15
		}
	}
	return score
}

// sanitize replaces matched spans with [BLOCKED] when the overall
// confidence crosses the block threshold, or [REMOVED] otherwise,
// preserving downstream length semantics by substituting fixed-width
// placeholders rather than deleting spans.
func (f *AdversarialFilter) sanitize(text string, matches []Match, confidence float64) string {
	if len(matches) == 0 {
		return text
	}
	placeholder := "[REMOVED]"
	if confidence >= f.blockThreshold {
		placeholder = "[BLOCKED]"
	}

	// Replace from the end so earlier offsets stay valid.
	out := text
	sorted := append([]Match(nil), matches...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Start > sorted[i].Start {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	for _, m := range sorted {
		if m.Start < 0 || m.End > len(out) || m.Start > m.End {
			continue
		}
		out = out[:m.Start] + placeholder + out[m.End:]
	}
	return out
}
