package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dappbridge/internal/constants"
)

var (
	// ErrMalformedEvent is returned for frames that cannot be dispatched.
	ErrMalformedEvent = errors.New("malformed surface event")
	errUnknownEvent   = errors.New("unknown event type")
)

// Event is one inbound frame from a surface. Only the fields of Type are set.
type Event struct {
	Type string `json:"type"`

	// ipc-message
	Channel string            `json:"channel,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`

	// console-message
	Level   int    `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
	Line    int    `json:"line,omitempty"`
	Source  string `json:"source,omitempty"`

	// new-window
	URL string `json:"url,omitempty"`
}

// Response is one outbound frame to a surface.
type Response struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload"`
}

// DecodeEvent parses a frame and checks the fields its type requires.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch ev.Type {
	case constants.EventIPCMessage:
		if ev.Channel == "" || len(ev.Args) == 0 {
			return Event{}, fmt.Errorf("%w: ipc-message needs a channel and an id", ErrMalformedEvent)
		}
	case constants.EventNewWindow:
		if ev.URL == "" {
			return Event{}, fmt.Errorf("%w: new-window without url", ErrMalformedEvent)
		}
	case constants.EventConsoleMessage:
	default:
		return Event{}, fmt.Errorf("%w: %w %q", ErrMalformedEvent, errUnknownEvent, ev.Type)
	}
	return ev, nil
}

// RequestID returns the text form of a correlation id argument. Strings are
// unquoted and numbers keep their literal text; anything else is rejected.
func RequestID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: empty request id", ErrMalformedEvent)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: request id must be a string or number", ErrMalformedEvent)
}

// SuccessChannel names the channel a resolved request is answered on.
func SuccessChannel(channel, id string) string {
	return responseChannel(channel, constants.ChannelSuccess, id)
}

// FailureChannel names the channel a rejected request is answered on.
func FailureChannel(channel, id string) string {
	return responseChannel(channel, constants.ChannelFailure, id)
}

func responseChannel(channel, outcome, id string) string {
	var b strings.Builder
	b.Grow(len(channel) + len(outcome) + len(id) + 2)
	b.WriteString(channel)
	b.WriteByte('-')
	b.WriteString(outcome)
	b.WriteByte('-')
	b.WriteString(id)
	return b.String()
}
