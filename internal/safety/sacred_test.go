package safety

import (
	"errors"
	"testing"
)

func echoFunc(ctx interface{}) (interface{}, error) {
	return ctx, nil
}

func failingFunc(ctx interface{}) (interface{}, error) {
	return nil, errors.New("boom")
}

func TestRegisterBeforeSealSucceeds(t *testing.T) {
	c := NewSacredCore(true)
	if err := c.Register("echo", echoFunc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegisterAfterSealStrictReturnsErrSealed(t *testing.T) {
	c := NewSacredCore(true)
	c.Seal()
	err := c.Register("echo", echoFunc)
	if _, ok := err.(*ErrSealed); !ok {
		t.Errorf("expected *ErrSealed, got %v (%T)", err, err)
	}
}

func TestRegisterAfterSealNonStrictRecordsTamper(t *testing.T) {
	c := NewSacredCore(false)
	c.Seal()
	c.Register("echo", echoFunc)
	if c.TamperCount() != 1 {
		t.Errorf("expected tamper count 1 after a rejected post-seal registration, got %d", c.TamperCount())
	}
}

func TestVerifyIntegrityPassesUnmodifiedFunctions(t *testing.T) {
	c := NewSacredCore(true)
	c.Register("echo", echoFunc)
	c.Seal()

	result := c.VerifyIntegrity()
	if !result.Passed {
		t.Errorf("expected integrity check to pass for untouched registrations, got %+v", result)
	}
}

func TestVerifyIntegrityDetectsTamperedDigest(t *testing.T) {
	c := NewSacredCore(true)
	c.Register("echo", echoFunc)
	c.Seal()

	c.mu.Lock()
	c.fns["echo"] = sealedEntry{fn: echoFunc, hash: "corrupted"}
	c.mu.Unlock()

	result := c.VerifyIntegrity()
	if result.Passed {
		t.Error("expected a manually corrupted digest to fail integrity verification")
	}
}

func TestInvokeCallsRegisteredFunction(t *testing.T) {
	c := NewSacredCore(true)
	c.Register("echo", echoFunc)
	c.Seal()

	result, err := c.Invoke("echo", "payload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "payload" {
		t.Errorf("expected echoed payload, got %v", result)
	}

	log := c.ExecutionLog()
	if len(log) != 1 || !log[0].Success {
		t.Errorf("expected one successful execution log entry, got %+v", log)
	}
}

func TestInvokeUnknownFunctionErrors(t *testing.T) {
	c := NewSacredCore(true)
	if _, err := c.Invoke("ghost", nil); err == nil {
		t.Error("expected error for an unregistered function name")
	}
}

func TestInvokeRecordsFailure(t *testing.T) {
	c := NewSacredCore(true)
	c.Register("fails", failingFunc)
	c.Seal()

	_, err := c.Invoke("fails", nil)
	if err == nil {
		t.Fatal("expected the function's own error to propagate")
	}
	log := c.ExecutionLog()
	if len(log) != 1 || log[0].Success {
		t.Errorf("expected a failed execution log entry, got %+v", log)
	}
}

func TestInvokeDetectsTamperedFunction(t *testing.T) {
	c := NewSacredCore(true)
	c.Register("echo", echoFunc)
	c.Seal()

	c.mu.Lock()
	c.fns["echo"] = sealedEntry{fn: echoFunc, hash: "corrupted"}
	c.mu.Unlock()

	if _, err := c.Invoke("echo", "x"); err == nil {
		t.Error("expected invoking a tampered function to fail its integrity check")
	}
	if c.TamperCount() != 1 {
		t.Errorf("expected tamper recorded for the digest mismatch, got %d", c.TamperCount())
	}
}

func TestThreeTamperEventsTriggerLockdown(t *testing.T) {
	c := NewSacredCore(false)
	var lockdownFired bool
	lockdownDone := make(chan struct{})
	c.OnLockdown(func() { lockdownFired = true; close(lockdownDone) })
	c.Seal()

	c.Register("a", echoFunc)
	c.Register("b", echoFunc)
	c.Register("c", echoFunc)

	if !c.LockedDown() {
		t.Fatal("expected lockdown to fire after the third tamper attempt")
	}
	<-lockdownDone
	if !lockdownFired {
		t.Error("expected the OnLockdown callback to fire")
	}
}

func TestInvokeDuringLockdownReturnsErrLockdown(t *testing.T) {
	c := NewSacredCore(false)
	c.Register("echo", echoFunc)
	c.Seal()
	c.Register("x", echoFunc)
	c.Register("y", echoFunc)
	c.Register("z", echoFunc)

	_, err := c.Invoke("echo", "x")
	if _, ok := err.(*ErrLockdown); !ok {
		t.Errorf("expected *ErrLockdown after emergency lockdown cleared the registry, got %v (%T)", err, err)
	}
}

func TestSealedReportsState(t *testing.T) {
	c := NewSacredCore(true)
	if c.Sealed() {
		t.Error("expected unsealed state before Seal is called")
	}
	c.Seal()
	if !c.Sealed() {
		t.Error("expected sealed state after Seal is called")
	}
}
