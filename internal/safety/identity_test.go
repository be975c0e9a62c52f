package safety

import "testing"

func TestNewIdentityAnchorVerifyCleanOnBirth(t *testing.T) {
	a := NewIdentityAnchor(true, 0)
	sev, result := a.Verify()
	if sev != SeverityNone || !result.Passed {
		t.Errorf("expected clean verification right after birth, got severity=%v result=%+v", sev, result)
	}
}

func TestGenesisHashStableAcrossVerifies(t *testing.T) {
	a := NewIdentityAnchor(true, 0)
	h1 := a.GenesisHash()
	a.Verify()
	h2 := a.GenesisHash()
	if h1 != h2 {
		t.Error("expected genesis hash to remain immutable across verifications")
	}
}

func TestVerifyDetectsHostnameMismatchAsMinorWhenNotStrict(t *testing.T) {
	a := NewIdentityAnchor(false, 0)
	a.genesis.Hostname = "different-host"

	sev, result := a.Verify()
	if sev != SeverityMinor {
		t.Errorf("expected minor severity for hostname drift in non-strict mode, got %v", sev)
	}
	if !result.Passed {
		t.Error("expected minor mismatches to still pass in non-strict mode")
	}
}

func TestVerifyDetectsHostnameMismatchAsCriticalWhenStrict(t *testing.T) {
	a := NewIdentityAnchor(true, 0)
	a.genesis.Hostname = "different-host"

	sev, result := a.Verify()
	if sev != SeverityCritical {
		t.Errorf("expected critical severity for hostname drift in strict mode, got %v", sev)
	}
	if result.Passed {
		t.Error("expected critical mismatch to fail")
	}
}

func TestVerifyPIDMismatchAlwaysCritical(t *testing.T) {
	a := NewIdentityAnchor(false, 0)
	a.genesis.PID = a.genesis.PID + 1

	sev, result := a.Verify()
	if sev != SeverityCritical || result.Passed {
		t.Errorf("expected PID mismatch to always be critical, got severity=%v result=%+v", sev, result)
	}
}

func TestRotatedHashDefaultsToGenesisWithoutRotation(t *testing.T) {
	a := NewIdentityAnchor(true, 0)
	if a.RotatedHash() != a.GenesisHash() {
		t.Error("expected rotated hash to equal genesis hash when rotation is disabled")
	}
}
