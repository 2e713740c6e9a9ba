package security

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dappbridge/internal/constants"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	IP        string    `json:"ip,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Details   string    `json:"details"`
	Severity  string    `json:"severity"`
}

// AuditLogger writes security events as JSON lines to a daily file.
// A nil *AuditLogger is valid and discards everything.
type AuditLogger struct {
	mu          sync.Mutex
	file        *os.File
	enc         *json.Encoder
	logDir      string
	written     int
	windowStart time.Time
}

func NewAuditLogger(logDir string) (*AuditLogger, error) {
	dir := filepath.Join(logDir, "audit")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	filename := filepath.Join(dir, fmt.Sprintf("audit-%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{
		file:        file,
		enc:         json.NewEncoder(file),
		logDir:      dir,
		windowStart: time.Now(),
	}, nil
}

func (al *AuditLogger) Log(event AuditEvent) {
	if al == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.file == nil {
		return
	}

	// At most MaxAuditLogsPerMinute events per one-minute window.
	now := time.Now()
	if now.Sub(al.windowStart) > time.Minute {
		al.windowStart = now
		al.written = 0
	}
	if al.written >= constants.MaxAuditLogsPerMinute || !al.diskHasRoom() {
		return
	}

	al.written++
	event.Timestamp = now
	al.enc.Encode(event)
}

// diskHasRoom is false only when the free space is known to be too low.
func (al *AuditLogger) diskHasRoom() bool {
	free, err := freeDiskBytes(al.logDir)
	return err != nil || free > uint64(constants.MinDiskSpaceRequired)
}

func (al *AuditLogger) LogLoginFailure(ip, sessionID, reason string) {
	al.Log(AuditEvent{
		EventType: "login_failure",
		IP:        ip,
		SessionID: sessionID,
		Details:   reason,
		Severity:  "warning",
	})
}

func (al *AuditLogger) LogLoginSuccess(ip, sessionID, address string) {
	al.Log(AuditEvent{
		EventType: "login_success",
		IP:        ip,
		SessionID: sessionID,
		Details:   fmt.Sprintf("Logged in as %s", address),
		Severity:  "info",
	})
}

func (al *AuditLogger) LogBruteForce(ip, sessionID string, attempts int) {
	al.Log(AuditEvent{
		EventType: "brute_force",
		IP:        ip,
		SessionID: sessionID,
		Details:   fmt.Sprintf("Multiple failed attempts: %d", attempts),
		Severity:  "critical",
	})
}

func (al *AuditLogger) LogConnectionLimit(ip string) {
	al.Log(AuditEvent{
		EventType: "connection_limit",
		IP:        ip,
		Details:   "Connection limit exceeded",
		Severity:  "warning",
	})
}

func (al *AuditLogger) LogTokenFailure(ip, sessionID string) {
	al.Log(AuditEvent{
		EventType: "token_failure",
		IP:        ip,
		SessionID: sessionID,
		Details:   "Invalid or missing session token",
		Severity:  "warning",
	})
}

func (al *AuditLogger) LogBlockedNavigation(sessionID, target string) {
	al.Log(AuditEvent{
		EventType: "blocked_navigation",
		SessionID: sessionID,
		Details:   fmt.Sprintf("Refused to open %q", target),
		Severity:  "warning",
	})
}

func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	if al.file != nil {
		err := al.file.Close()
		al.file = nil
		return err
	}
	return nil
}
