// Package bridge connects one embedded surface to the shared request queue
// and delivers the results of its requests back to it.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"dappbridge/internal/constants"
	"dappbridge/internal/protocol"
	"dappbridge/internal/queue"
	"dappbridge/internal/security"
)

var (
	ErrAlreadyMounted   = errors.New("surface already mounted")
	ErrNotMounted       = errors.New("no surface mounted")
	ErrNotPending       = errors.New("request is not pending")
	ErrDuplicateRequest = errors.New(constants.MsgDuplicateRequest)
	ErrBlockedURL       = errors.New("external url not allowed")
)

// ConsoleSink receives the diagnostic output of a surface.
type ConsoleSink interface {
	LogConsole(level int, message, source string, line int)
}

// requestRecorder is implemented by sinks that also keep a request trail.
type requestRecorder interface {
	LogRequest(channel, requestID, outcome string)
}

type errorRecorder interface {
	LogError(err error, message string)
}

type Option func(*Controller)

func WithLinkOpener(o LinkOpener) Option {
	return func(c *Controller) { c.opener = o }
}

func WithConsole(sink ConsoleSink) Option {
	return func(c *Controller) { c.console = sink }
}

// WithBlockedLinkHook is called with every new-window URL that was refused.
func WithBlockedLinkHook(fn func(url string)) Option {
	return func(c *Controller) { c.onBlocked = fn }
}

// Controller owns the bridge of a single session. Requests from the mounted
// surface are enqueued under the session id; Resolve and Reject answer them
// on the surface exactly once.
type Controller struct {
	sessionID string
	queue     queue.Queue
	opener    LinkOpener
	console   ConsoleSink
	onBlocked func(url string)

	// mu guards surface. Sends hold it shared so Unmount waits for them.
	mu      sync.RWMutex
	surface Surface
}

func NewController(sessionID string, q queue.Queue, opts ...Option) *Controller {
	c := &Controller{
		sessionID: sessionID,
		queue:     q,
		opener:    LogOpener{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) SessionID() string {
	return c.sessionID
}

// Mount attaches s. Events are only accepted while a surface is mounted.
func (c *Controller) Mount(s Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.surface != nil {
		return ErrAlreadyMounted
	}
	c.surface = s
	log.Printf("🔌 Surface mounted: %s", c.sessionID)
	return nil
}

// Unmount detaches the current surface and discards every pending request
// of the session. The surface is closed if it can be. Unmount is idempotent.
func (c *Controller) Unmount() {
	c.mu.Lock()
	s := c.surface
	c.detach()
	c.mu.Unlock()

	if closer, ok := s.(io.Closer); ok {
		closer.Close()
	}
}

// release unmounts s only if it is still the mounted surface.
func (c *Controller) release(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface == s {
		c.detach()
	}
}

func (c *Controller) detach() {
	if c.surface == nil {
		return
	}
	c.surface = nil
	c.queue.Empty(c.sessionID)
	log.Printf("🔌 Surface unmounted: %s", c.sessionID)
}

func (c *Controller) Mounted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.surface != nil
}

// Dispatch routes one decoded event to its handler.
func (c *Controller) Dispatch(ev protocol.Event) error {
	switch ev.Type {
	case constants.EventIPCMessage:
		return c.HandleIPCMessage(ev.Channel, ev.Args)
	case constants.EventConsoleMessage:
		return c.HandleConsoleMessage(ev.Level, ev.Message, ev.Source, ev.Line)
	case constants.EventNewWindow:
		return c.HandleNewWindow(ev.URL)
	default:
		return fmt.Errorf("%w: type %q", protocol.ErrMalformedEvent, ev.Type)
	}
}

// HandleIPCMessage records a request. The first argument is the caller's
// correlation id and the rest are the call arguments. Nothing is executed
// here.
func (c *Controller) HandleIPCMessage(channel string, args []json.RawMessage) error {
	if channel == "" || len(channel) > constants.MaxChannelLen {
		return fmt.Errorf("%w: bad channel name", protocol.ErrMalformedEvent)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: %s message without id", protocol.ErrMalformedEvent, channel)
	}
	id, err := protocol.RequestID(args[0])
	if err != nil {
		return err
	}
	if len(id) > constants.MaxRequestIDLen {
		return fmt.Errorf("%w: request id too long", protocol.ErrMalformedEvent)
	}

	rest := make([]json.RawMessage, len(args)-1)
	copy(rest, args[1:])

	// Held shared so a concurrent Unmount cannot empty the queue between
	// the mounted check and the enqueue.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.surface == nil {
		return ErrNotMounted
	}

	err = c.queue.Enqueue(c.sessionID, queue.PendingRequest{Channel: channel, ID: id, Args: rest})
	switch {
	case errors.Is(err, queue.ErrDuplicate):
		return fmt.Errorf("%w: %s %s", ErrDuplicateRequest, channel, id)
	case err != nil:
		// The request was never stored, so nothing else will answer it.
		failure := protocol.FailureChannel(channel, id)
		if serr := c.surface.Send(failure, constants.MsgQueueUnavailable); serr != nil {
			log.Printf("⚠️  Session %s: failed to send %s: %v", c.sessionID, failure, serr)
		}
		c.record(channel, id, "rejected")
		if r, ok := c.console.(errorRecorder); ok {
			r.LogError(err, "enqueue "+channel+" "+id)
		}
		return fmt.Errorf("enqueue %s %s: %w", channel, id, err)
	}
	c.record(channel, id, "pending")
	return nil
}

func (c *Controller) HandleConsoleMessage(level int, message, source string, line int) error {
	if !c.Mounted() {
		return ErrNotMounted
	}
	if c.console != nil {
		c.console.LogConsole(level, security.SanitizeInput(message), source, line)
		return nil
	}
	log.Printf("📝 [%s] console(%d) %s:%d %s", c.sessionID, level, source, line, security.SanitizeInput(message))
	return nil
}

// HandleNewWindow opens url outside the surface. The surface itself never
// navigates. Only http, https and mailto links are opened.
func (c *Controller) HandleNewWindow(url string) error {
	if !c.Mounted() {
		return ErrNotMounted
	}
	if !security.ValidateExternalURL(url) {
		if c.onBlocked != nil {
			c.onBlocked(url)
		}
		return fmt.Errorf("%w: %q", ErrBlockedURL, url)
	}
	return c.opener.Open(context.Background(), url)
}

// Pending returns the session's request with the given id.
func (c *Controller) Pending(id string) (queue.PendingRequest, bool) {
	return c.queue.Get(c.sessionID, id)
}

// PendingRequests lists the session's requests in arrival order.
func (c *Controller) PendingRequests() []queue.PendingRequest {
	return c.queue.List(c.sessionID)
}

// Complete claims req from the queue and sends o on the matching response
// channel. Only the caller that claims the request sends anything, so a
// request is answered at most once. Requests discarded by Unmount return
// ErrNotPending and send nothing.
func (c *Controller) Complete(req queue.PendingRequest, o Outcome) error {
	if req.SessionID != "" && req.SessionID != c.sessionID {
		return ErrNotPending
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	cur, ok := c.queue.Get(c.sessionID, req.ID)
	if !ok || cur.Channel != req.Channel {
		return ErrNotPending
	}
	if !c.queue.Dequeue(c.sessionID, req.ID) {
		return ErrNotPending
	}
	c.record(req.Channel, req.ID, o.String())

	var channel string
	if o.OK() {
		channel = protocol.SuccessChannel(req.Channel, req.ID)
	} else {
		channel = protocol.FailureChannel(req.Channel, req.ID)
	}

	if c.surface == nil {
		log.Printf("⚠️  Session %s: dropped %s, no surface", c.sessionID, channel)
		return nil
	}
	if err := c.surface.Send(channel, o.Payload()); err != nil {
		log.Printf("⚠️  Session %s: failed to send %s: %v", c.sessionID, channel, err)
		return nil
	}
	return nil
}

// Resolve answers req with value on "<channel>-success-<id>".
func (c *Controller) Resolve(req queue.PendingRequest, value any) error {
	return c.Complete(req, Success(value))
}

// Reject answers req with message on "<channel>-failure-<id>".
func (c *Controller) Reject(req queue.PendingRequest, message string) error {
	return c.Complete(req, Failure(message))
}

func (c *Controller) record(channel, id, outcome string) {
	if r, ok := c.console.(requestRecorder); ok {
		r.LogRequest(channel, id, outcome)
	}
}
