package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"time"
)

// SealedFunc is a named closure protected by the sacred core once sealed.
type SealedFunc func(ctx interface{}) (interface{}, error)

// ExecutionLogEntry records one sacred-function invocation.
type ExecutionLogEntry struct {
	Name    string
	Start   time.Time
	End     time.Time
	Success bool
	Error   string
}

type sealedEntry struct {
	fn   SealedFunc
	hash string
}

// ErrSealed reports a registration attempt after sealing in strict mode.
type ErrSealed struct{ Name string }

func (e *ErrSealed) Error() string {
	return fmt.Sprintf("safety: sacred core sealed, cannot register %q", e.Name)
}

// ErrLockdown reports an invocation attempted during emergency lockdown.
type ErrLockdown struct{}

func (e *ErrLockdown) Error() string { return "safety: sacred core in emergency lockdown" }

// SacredCore (L4) is a registry of named closures sealed against further
// registration and tamper-checked by a SHA-256 digest of each closure's
// identity, taken when the closure is registered.
type SacredCore struct {
	mu            sync.Mutex
	fns           map[string]sealedEntry
	sealed        bool
	strict        bool
	tamperCount   int
	lockedDown    bool
	executionLog  []ExecutionLogEntry
	logCap        int
	onLockdown    func()
}

// NewSacredCore creates an unsealed core.
func NewSacredCore(strict bool) *SacredCore {
	return &SacredCore{fns: make(map[string]sealedEntry), strict: strict, logCap: 500}
}

// OnLockdown registers a callback invoked when emergency lockdown fires.
func (c *SacredCore) OnLockdown(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLockdown = cb
}

func fnIdentity(fn SealedFunc) string {
	return runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
}

func hashFn(name string, fn SealedFunc) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s", name, fnIdentity(fn))
	return hex.EncodeToString(h.Sum(nil))
}

// Register adds a named closure before sealing. After sealing, strict
// mode rejects registration with ErrSealed; non-strict mode records the
// attempt as a tamper event and returns it without panicking.
func (c *SacredCore) Register(name string, fn SealedFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		if c.strict {
			return &ErrSealed{Name: name}
		}
		c.recordTamperLocked()
		return &ErrSealed{Name: name}
	}

	c.fns[name] = sealedEntry{fn: fn, hash: hashFn(name, fn)}
	return nil
}

// Seal locks the registry: every subsequent Register call is rejected or
// recorded as tamper, so the digests taken at registration can no longer
// be replaced.
func (c *SacredCore) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// Sealed reports whether the core has been sealed.
func (c *SacredCore) Sealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sealed
}

// VerifyIntegrity recomputes each registered function's digest and
// compares against the value captured at registration, reporting any
// discrepancy.
func (c *SacredCore) VerifyIntegrity() LayerResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var violations []string
	for name, entry := range c.fns {
		if hashFn(name, entry.fn) != entry.hash {
			violations = append(violations, fmt.Sprintf("function %q digest mismatch", name))
		}
	}
	if len(violations) == 0 {
		return ok()
	}
	return fail(violations...)
}

func (c *SacredCore) recordTamperLocked() {
	c.tamperCount++
	if c.tamperCount >= 3 && !c.lockedDown {
		c.lockedDown = true
		c.fns = make(map[string]sealedEntry)
		cb := c.onLockdown
		if cb != nil {
			go cb()
		}
	}
}

// LockedDown reports whether emergency lockdown has fired.
func (c *SacredCore) LockedDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockedDown
}

// TamperCount returns the number of recorded tamper attempts.
func (c *SacredCore) TamperCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tamperCount
}

// Invoke calls a registered sacred function by name, wrapping the call
// in an execution log entry. A tampered-with function (digest mismatch)
// is treated as a tamper event and refused.
func (c *SacredCore) Invoke(name string, ctx interface{}) (interface{}, error) {
	c.mu.Lock()
	if c.lockedDown {
		c.mu.Unlock()
		return nil, &ErrLockdown{}
	}
	entry, ok := c.fns[name]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("safety: no such sacred function %q", name)
	}
	if hashFn(name, entry.fn) != entry.hash {
		c.recordTamperLocked()
		c.mu.Unlock()
		return nil, fmt.Errorf("safety: function %q failed integrity check", name)
	}
	c.mu.Unlock()

	start := time.Now()
	result, err := entry.fn(ctx)
	logEntry := ExecutionLogEntry{Name: name, Start: start, End: time.Now(), Success: err == nil}
	if err != nil {
		logEntry.Error = err.Error()
	}

	c.mu.Lock()
	c.executionLog = append(c.executionLog, logEntry)
	if len(c.executionLog) > c.logCap {
		c.executionLog = c.executionLog[len(c.executionLog)-c.logCap:]
	}
	c.mu.Unlock()

	return result, err
}

// ExecutionLog returns a copy of the bounded invocation log.
func (c *SacredCore) ExecutionLog() []ExecutionLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ExecutionLogEntry, len(c.executionLog))
	copy(out, c.executionLog)
	return out
}
