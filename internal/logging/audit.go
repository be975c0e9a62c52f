// Package logging provides audit logging: a structured, append-only trail
// of the cognitive runtime's load-bearing decisions (hormone swings, memory
// consolidation/forgetting, task outcomes, safety verdicts, reflection
// proposals) kept separate from the free-text category logs so it can be
// grepped or replayed without wading through debug noise.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies the kind of decision an audit event records.
type AuditEventType string

const (
	AuditHormoneChange AuditEventType = "hormone_change"

	AuditMemoryConsolidated AuditEventType = "memory_consolidated"
	AuditMemoryForgotten    AuditEventType = "memory_forgotten"

	AuditTaskCompleted AuditEventType = "task_completed"
	AuditTaskFailed    AuditEventType = "task_failed"
	AuditTaskTimeout   AuditEventType = "task_timeout"
	AuditTaskCancelled AuditEventType = "task_cancelled"

	AuditSafetyAllowed AuditEventType = "safety_allowed"
	AuditSafetyFlagged AuditEventType = "safety_flagged"
	AuditSafetyBlocked AuditEventType = "safety_blocked"

	AuditReflectionProposed AuditEventType = "reflection_proposed"
	AuditReflectionApproved AuditEventType = "reflection_approved"
	AuditReflectionRejected AuditEventType = "reflection_rejected"
	AuditReflectionExecuted AuditEventType = "reflection_executed"

	AuditConfigReloaded AuditEventType = "config_reloaded"
)

// AuditEvent is one structured audit log entry.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes AuditEvents to the audit log file.
type AuditLogger struct{}

// InitAudit opens the audit log file for the current date, a no-op when
// debug mode is disabled.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// Log writes an audit event as a single JSON line.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	auditFile.WriteString(string(data) + "\n")
}

// HormoneChange records a hormone field adjustment.
func (a *AuditLogger) HormoneChange(hormoneType string, old, new float64, reason string) {
	a.Log(AuditEvent{
		EventType: AuditHormoneChange,
		Target:    hormoneType,
		Success:   true,
		Fields:    map[string]interface{}{"old": old, "new": new, "reason": reason},
		Message:   fmt.Sprintf("hormone %s: %.3f -> %.3f (%s)", hormoneType, old, new, reason),
	})
}

// MemoryConsolidated records an episodic-to-semantic promotion.
func (a *AuditLogger) MemoryConsolidated(episodicID, semanticID string) {
	a.Log(AuditEvent{
		EventType: AuditMemoryConsolidated,
		Target:    semanticID,
		Success:   true,
		Fields:    map[string]interface{}{"episodic_id": episodicID},
		Message:   fmt.Sprintf("memory consolidated: %s -> %s", episodicID, semanticID),
	})
}

// MemoryForgotten records a tombstoned memory record.
func (a *AuditLogger) MemoryForgotten(id string) {
	a.Log(AuditEvent{
		EventType: AuditMemoryForgotten,
		Target:    id,
		Success:   true,
		Message:   fmt.Sprintf("memory forgotten: %s", id),
	})
}

// TaskOutcome records a scheduler task's terminal event.
func (a *AuditLogger) TaskOutcome(taskID string, eventType AuditEventType, latencyMs float64) {
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    taskID,
		Success:   eventType == AuditTaskCompleted,
		Fields:    map[string]interface{}{"latency_ms": latencyMs},
		Message:   fmt.Sprintf("task %s: %s (%.0fms)", taskID, eventType, latencyMs),
	})
}

// SafetyVerdict records an adversarial filter or envelope decision.
// eventType should be one of AuditSafetyAllowed, AuditSafetyFlagged, or
// AuditSafetyBlocked.
func (a *AuditLogger) SafetyVerdict(eventType AuditEventType, action string, confidence float64) {
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    action,
		Success:   eventType == AuditSafetyAllowed,
		Fields:    map[string]interface{}{"confidence": confidence},
		Message:   fmt.Sprintf("safety %s: %s (confidence=%.2f)", eventType, action, confidence),
	})
}

// ReflectionTransition records a proposal lifecycle state change.
func (a *AuditLogger) ReflectionTransition(proposalID string, eventType AuditEventType) {
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    proposalID,
		Success:   true,
		Message:   fmt.Sprintf("reflection proposal %s: %s", proposalID, eventType),
	})
}

// ConfigReloaded records a hot config reload from the watcher.
func (a *AuditLogger) ConfigReloaded(path string) {
	a.Log(AuditEvent{
		EventType: AuditConfigReloaded,
		Target:    path,
		Success:   true,
		Message:   fmt.Sprintf("config reloaded: %s", path),
	})
}
