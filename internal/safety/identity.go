// Package safety implements the four-layer safety envelope: an identity
// anchor, an immortality (resource) monitor, an adversarial input filter,
// and a sealed sacred-function core.
package safety

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
)

// LayerResult is the uniform shape every safety layer returns.
type LayerResult struct {
	Passed          bool
	Violations      []string
	Recommendations []string
}

func ok() LayerResult { return LayerResult{Passed: true} }

func fail(violations ...string) LayerResult {
	return LayerResult{Passed: false, Violations: violations}
}

// EntropyVector is the declared set of fields hashed into the genesis
// and rotated signatures.
type EntropyVector struct {
	PID            int
	PPID           int
	Hostname       string
	UptimeSeconds  int64
	Cwd            string
	Platform       string
	RuntimeVersion string
	RandomBytes    string
	TimestampEpoch int64
}

func (v EntropyVector) hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%s|%d|%s|%s|%s|%s|%d",
		v.PID, v.PPID, v.Hostname, v.UptimeSeconds, v.Cwd, v.Platform, v.RuntimeVersion, v.RandomBytes, v.TimestampEpoch)
	return hex.EncodeToString(h.Sum(nil))
}

// MismatchSeverity classifies how serious a signature mismatch is.
type MismatchSeverity string

const (
	SeverityNone     MismatchSeverity = "none"
	SeverityMinor    MismatchSeverity = "minor"
	SeverityCritical MismatchSeverity = "critical"
)

// IdentityAnchor (L1) captures a process identity snapshot at birth and
// verifies later samples against it.
type IdentityAnchor struct {
	mu             sync.Mutex
	genesis        EntropyVector
	genesisHash    string
	strict         bool
	rotateInterval time.Duration
	lastRotation   time.Time
	rotatedHash    string
}

func captureEntropy(birth time.Time) EntropyVector {
	hostname, _ := os.Hostname()
	cwd, _ := os.Getwd()
	random := make([]byte, 16)
	_, _ = rand.Read(random)
	return EntropyVector{
		PID:            os.Getpid(),
		PPID:           os.Getppid(),
		Hostname:       hostname,
		UptimeSeconds:  0,
		Cwd:            cwd,
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
		RuntimeVersion: runtime.Version(),
		RandomBytes:    hex.EncodeToString(random),
		TimestampEpoch: birth.Unix(),
	}
}

// NewIdentityAnchor captures the genesis snapshot immediately. strict
// treats any mismatch, not just the critical fields, as critical.
func NewIdentityAnchor(strict bool, rotateInterval time.Duration) *IdentityAnchor {
	genesis := captureEntropy(time.Now())
	a := &IdentityAnchor{
		genesis:        genesis,
		genesisHash:    genesis.hash(),
		strict:         strict,
		rotateInterval: rotateInterval,
		lastRotation:   time.Now(),
	}
	a.rotatedHash = a.genesisHash
	return a
}

// currentNonRandom returns the subset of the current process state that a
// legitimate long-running process should not change, excluding the
// birth-only random bytes and timestamp.
func (a *IdentityAnchor) currentNonRandom() EntropyVector {
	cur := captureEntropy(time.Unix(a.genesis.TimestampEpoch, 0))
	cur.RandomBytes = a.genesis.RandomBytes
	cur.TimestampEpoch = a.genesis.TimestampEpoch
	return cur
}

// Verify recomputes the current signature from non-random fields and
// compares against genesis, classifying the result by severity.
func (a *IdentityAnchor) Verify() (MismatchSeverity, LayerResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.currentNonRandom()
	var mismatches []string
	critical := false

	if cur.PID != a.genesis.PID {
		mismatches = append(mismatches, "pid changed")
		critical = true
	}
	if cur.PPID != a.genesis.PPID {
		mismatches = append(mismatches, "ppid changed")
		critical = true
	}
	if cur.Hostname != a.genesis.Hostname {
		mismatches = append(mismatches, "hostname changed")
		if a.strict {
			critical = true
		}
	}
	if cur.Cwd != a.genesis.Cwd {
		mismatches = append(mismatches, "working directory changed")
		if a.strict {
			critical = true
		}
	}
	if cur.Platform != a.genesis.Platform {
		mismatches = append(mismatches, "platform changed")
		if a.strict {
			critical = true
		}
	}
	if cur.RuntimeVersion != a.genesis.RuntimeVersion {
		mismatches = append(mismatches, "runtime version changed")
		if a.strict {
			critical = true
		}
	}

	if a.rotateInterval > 0 && time.Since(a.lastRotation) >= a.rotateInterval {
		a.rotatedHash = cur.hash()
		a.lastRotation = time.Now()
	}

	if len(mismatches) == 0 {
		return SeverityNone, ok()
	}
	if critical {
		return SeverityCritical, fail(mismatches...)
	}
	return SeverityMinor, LayerResult{Passed: true, Violations: mismatches, Recommendations: []string{"investigate environment drift"}}
}

// GenesisHash returns the immutable birth signature.
func (a *IdentityAnchor) GenesisHash() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.genesisHash
}

// RotatedHash returns the most recently rotated signature, or the
// genesis hash if rotation is disabled or has not yet elapsed.
func (a *IdentityAnchor) RotatedHash() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rotatedHash
}
