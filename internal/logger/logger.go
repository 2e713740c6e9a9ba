package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
	Level     int       `json:"level,omitempty"`
	Source    string    `json:"source,omitempty"`
	Line      int       `json:"line,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Logger appends one JSON line per surface event to {logDir}/{sessionID}.log.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	enc       *json.Encoder
	logDir    string
	sessionID string
}

func NewLogger(logDir, sessionID string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("%s.log", filepath.Base(sessionID)))

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:      file,
		enc:       json.NewEncoder(file),
		logDir:    logDir,
		sessionID: sessionID,
	}, nil
}

func (l *Logger) Log(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}
	entry.Timestamp = time.Now()
	entry.SessionID = l.sessionID
	l.enc.Encode(entry)
}

// LogConsole records diagnostic output the surface printed.
func (l *Logger) LogConsole(level int, message, source string, line int) {
	l.Log(LogEntry{
		Type:    "console",
		Level:   level,
		Message: message,
		Source:  source,
		Line:    line,
	})
}

func (l *Logger) LogRequest(channel, requestID, outcome string) {
	l.Log(LogEntry{
		Type:      "request",
		Channel:   channel,
		RequestID: requestID,
		Message:   outcome,
	})
}

func (l *Logger) LogError(err error, message string) {
	l.Log(LogEntry{
		Type:    "error",
		Error:   err.Error(),
		Message: message,
	})
}

func (l *Logger) LogEvent(message string) {
	l.Log(LogEntry{
		Type:    "event",
		Message: message,
	})
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) GetLogPath() string {
	return filepath.Join(l.logDir, fmt.Sprintf("%s.log", filepath.Base(l.sessionID)))
}
