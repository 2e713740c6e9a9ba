package constants

import (
	"time"
)

const (
	AppName = "dappbridge"
	Version = "0.3.0"
)

// Network defaults
const (
	DefaultServerURL = "http://localhost:8080"
	WSBufferSize     = 32768
	MaxWSMessageSize = 1 << 20 // 1MB per surface frame
	MaxAPIBodySize   = 64 * 1024
	CleanupInterval  = 30 * time.Second
	WSWriteTimeout   = 10 * time.Second
	ShutdownTimeout  = 5 * time.Second
)

// Session settings
const (
	MinSessionDuration = time.Minute
	MaxSessionDuration = 24 * time.Hour
	MaxSessionIDLength = 128
)

// Request processing
const (
	ProcessorTimeout = 30 * time.Second
	MaxRequestIDLen  = 256
	MaxChannelLen    = 128
)

// Rate limiting
const (
	MaxConnectionsPerIP = 10
	MaxLoginAttempts    = 5
	LoginBlockDuration  = 15 * time.Minute
)

// Redis keys
const (
	RedisSessionPrefix = "dappbridge:session:"
	RedisQueuePrefix   = "dappbridge:queue:"
)

// API endpoints
const (
	EndpointHealth    = "/health"
	EndpointSessions  = "/api/sessions"
	EndpointWebSocket = "/ws/"
)

// Surface event types
const (
	EventIPCMessage     = "ipc-message"
	EventConsoleMessage = "console-message"
	EventNewWindow      = "new-window"
)

// Response channel markers
const (
	ChannelSuccess = "success"
	ChannelFailure = "failure"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
)

// Messages
const (
	MsgInvalidJSON      = "Invalid JSON"
	MsgSessionNotFound  = "Session not found or expired"
	MsgUnauthorized     = "Unauthorized: invalid or missing token"
	MsgRequestNotFound  = "Request not found"
	MsgTooManyAttempts  = "Too many failed attempts. Try again later."
	MsgNotLoggedIn      = "not logged in"
	MsgDuplicateRequest = "duplicate request id"
	MsgQueueUnavailable = "request queue unavailable"
)

// Audit
const (
	MaxAuditLogsPerMinute = 600
	MinDiskSpaceRequired  = 50 * 1024 * 1024 // 50MB
)
