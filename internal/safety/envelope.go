package safety

import (
	"fmt"
	"time"

	"codenerd-cognitive/internal/clock"
	"codenerd-cognitive/internal/logging"
)

// Config governs the envelope's four layers.
type Config struct {
	StrictMode       bool
	AutoMitigate     bool
	BlockThreshold   float64
	Sensitivity      Sensitivity
	RotateInterval   time.Duration
	ImmortalityLimits ImmortalityThresholds
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		StrictMode:        true,
		AutoMitigate:      true,
		BlockThreshold:    0.7,
		Sensitivity:       SensitivityMedium,
		ImmortalityLimits: DefaultImmortalityThresholds(),
	}
}

// FullCheckResult aggregates the results of the layers FullCheck runs:
// L1 identity, L2 immortality and L4 sacred core. It holds no L3
// adversarial result.
type FullCheckResult struct {
	Identity     LayerResult
	Immortality  LayerResult
	Sacred       LayerResult
	Passed       bool
}

// Envelope composes the four safety layers behind full_check() and
// safe_execute().
type Envelope struct {
	identity    *IdentityAnchor
	immortality *ImmortalityMonitor
	adversarial *AdversarialFilter
	sacred      *SacredCore
}

// New creates the envelope. probe supplies the immortality layer's
// resource samples.
func New(cfg Config, probe *clock.Probe) *Envelope {
	e := &Envelope{
		identity:    NewIdentityAnchor(cfg.StrictMode, cfg.RotateInterval),
		immortality: NewImmortalityMonitor(probe, cfg.ImmortalityLimits),
		adversarial: NewAdversarialFilter(cfg.Sensitivity, cfg.BlockThreshold, cfg.AutoMitigate),
		sacred:      NewSacredCore(cfg.StrictMode),
	}
	e.sacred.OnLockdown(func() {
		logging.SafetyError("sacred core emergency lockdown: all registered functions dropped")
	})
	return e
}

// Sacred exposes the L4 registry so the composition root can register
// and seal core functions before serving traffic.
func (e *Envelope) Sacred() *SacredCore { return e.sacred }

// InspectInput runs the L3 adversarial filter over one external string,
// wrapping every string that reaches the scheduler.
func (e *Envelope) InspectInput(text string) Verdict {
	return e.adversarial.Inspect(text)
}

// FullCheck runs L1, L2 and L4 (the layers with no single input to
// inspect) and reports their combined compliance. L3 is not run here; it
// is reached through InspectInput and SafeExecute.
func (e *Envelope) FullCheck() FullCheckResult {
	_, identityResult := e.identity.Verify()
	immortalityResult := e.immortality.Check()
	sacredResult := e.sacred.VerifyIntegrity()

	passed := identityResult.Passed && immortalityResult.Passed && sacredResult.Passed
	return FullCheckResult{
		Identity:    identityResult,
		Immortality: immortalityResult,
		Sacred:      sacredResult,
		Passed:      passed,
	}
}

// ErrBlocked reports that safe_execute refused to run an operation
// because its input was blocked by the adversarial filter.
type ErrBlocked struct {
	Verdict Verdict
}

func (e *ErrBlocked) Error() string {
	return fmt.Sprintf("safety: input blocked (confidence %.2f)", e.Verdict.Confidence)
}

// SafeExecute chains L1/L2 compliance, L3 input inspection, then runs
// operation with the sanitized input. A blocked input short-circuits
// before operation ever runs; a critical L1/L2 finding is logged but
// does not itself block execution (that decision belongs to the caller,
// which can inspect FullCheck independently).
func (e *Envelope) SafeExecute(input string, operation func(sanitized string) (interface{}, error)) (interface{}, error) {
	check := e.FullCheck()
	if !check.Passed {
		logging.SafetyWarn("safe_execute: full_check reported non-compliance: identity=%v immortality=%v",
			check.Identity.Violations, check.Immortality.Violations)
	}

	verdict := e.adversarial.Inspect(input)
	if verdict.Action == ActionBlocked {
		logging.SafetyError("safe_execute: blocked input, confidence %.2f, matches %d", verdict.Confidence, len(verdict.Matches))
		logging.Audit().SafetyVerdict(logging.AuditSafetyBlocked, "safe_execute", verdict.Confidence)
		return nil, &ErrBlocked{Verdict: verdict}
	}
	if verdict.Action == ActionFlagged {
		logging.SafetyWarn("safe_execute: flagged input, confidence %.2f", verdict.Confidence)
		logging.Audit().SafetyVerdict(logging.AuditSafetyFlagged, "safe_execute", verdict.Confidence)
	} else {
		logging.Audit().SafetyVerdict(logging.AuditSafetyAllowed, "safe_execute", verdict.Confidence)
	}

	return operation(verdict.Sanitized)
}
