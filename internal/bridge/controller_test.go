package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"dappbridge/internal/bridge"
	"dappbridge/internal/protocol"
	"dappbridge/internal/queue"
)

type sent struct {
	Channel string
	Payload any
}

type fakeSurface struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeSurface) Send(channel string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{channel, payload})
	return nil
}

func (f *fakeSurface) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeOpener struct {
	urls []string
}

func (o *fakeOpener) Open(_ context.Context, url string) error {
	o.urls = append(o.urls, url)
	return nil
}

type fakeConsole struct {
	lines    []string
	requests []string
	errors   []string
}

func (c *fakeConsole) LogConsole(level int, message, source string, line int) {
	c.lines = append(c.lines, message)
}

func (c *fakeConsole) LogRequest(channel, requestID, outcome string) {
	c.requests = append(c.requests, channel+"/"+requestID+"/"+outcome)
}

func (c *fakeConsole) LogError(err error, message string) {
	c.errors = append(c.errors, message+": "+err.Error())
}

func rawArgs(t *testing.T, vals ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(vals))
	for i, v := range vals {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		out[i] = b
	}
	return out
}

func mounted(t *testing.T, opts ...bridge.Option) (*bridge.Controller, *queue.MemoryQueue, *fakeSurface) {
	t.Helper()
	q := queue.NewMemoryQueue()
	c := bridge.NewController("s1", q, opts...)
	s := &fakeSurface{}
	if err := c.Mount(s); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return c, q, s
}

func TestController_ResolveEndToEnd(t *testing.T) {
	c, q, s := mounted(t)

	if err := c.HandleIPCMessage("invoke", rawArgs(t, "req-1", "foo", "bar")); err != nil {
		t.Fatalf("HandleIPCMessage: %v", err)
	}

	pending := q.List("s1")
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	req := pending[0]
	if req.Channel != "invoke" || req.ID != "req-1" || len(req.Args) != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if string(req.Args[0]) != `"foo"` || string(req.Args[1]) != `"bar"` {
		t.Fatalf("args = %s %s", req.Args[0], req.Args[1])
	}
	if len(s.messages()) != 0 {
		t.Fatal("enqueue must not answer the surface")
	}

	if err := c.Resolve(req, 42); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	msgs := s.messages()
	if len(msgs) != 1 || msgs[0].Channel != "invoke-success-req-1" || msgs[0].Payload != 42 {
		t.Fatalf("sent = %+v", msgs)
	}
	if len(q.List("s1")) != 0 {
		t.Fatal("request still pending after resolve")
	}
}

func TestController_Reject(t *testing.T) {
	c, _, s := mounted(t)

	if err := c.HandleIPCMessage("send", rawArgs(t, 7, map[string]int{"amount": 1})); err != nil {
		t.Fatalf("HandleIPCMessage: %v", err)
	}
	req, ok := c.Pending("7")
	if !ok {
		t.Fatal("numeric id not pending as \"7\"")
	}
	if err := c.Reject(req, "user declined"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	msgs := s.messages()
	if len(msgs) != 1 || msgs[0].Channel != "send-failure-7" || msgs[0].Payload != "user declined" {
		t.Fatalf("sent = %+v", msgs)
	}
}

func TestController_UnmountDiscardsPending(t *testing.T) {
	c, q, s := mounted(t)

	if err := c.HandleIPCMessage("invoke", rawArgs(t, "req-2")); err != nil {
		t.Fatalf("HandleIPCMessage: %v", err)
	}
	req, _ := c.Pending("req-2")

	c.Unmount()
	if c.Mounted() {
		t.Fatal("still mounted")
	}
	if len(q.List("s1")) != 0 {
		t.Fatal("queue not emptied on unmount")
	}

	if err := c.Resolve(req, "late"); !errors.Is(err, bridge.ErrNotPending) {
		t.Fatalf("Resolve after unmount = %v, want ErrNotPending", err)
	}
	if len(s.messages()) != 0 {
		t.Fatalf("sent after unmount: %+v", s.messages())
	}

	if err := c.HandleIPCMessage("invoke", rawArgs(t, "req-3")); !errors.Is(err, bridge.ErrNotMounted) {
		t.Fatalf("HandleIPCMessage after unmount = %v", err)
	}
	c.Unmount()
}

func TestController_UnmountKeepsOtherSessions(t *testing.T) {
	q := queue.NewMemoryQueue()
	a := bridge.NewController("a", q)
	b := bridge.NewController("b", q)
	a.Mount(&fakeSurface{})
	b.Mount(&fakeSurface{})

	a.HandleIPCMessage("invoke", rawArgs(t, "1"))
	b.HandleIPCMessage("invoke", rawArgs(t, "1"))
	a.Unmount()

	if len(q.List("a")) != 0 || len(q.List("b")) != 1 {
		t.Fatalf("a=%d b=%d", len(q.List("a")), len(q.List("b")))
	}
}

func TestController_CompletesOnce(t *testing.T) {
	c, _, s := mounted(t)
	c.HandleIPCMessage("invoke", rawArgs(t, "once"))
	req, _ := c.Pending("once")

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				results <- c.Resolve(req, i)
			} else {
				results <- c.Reject(req, "no")
			}
		}(i)
	}
	wg.Wait()
	close(results)

	var won int
	for err := range results {
		if err == nil {
			won++
		} else if !errors.Is(err, bridge.ErrNotPending) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || len(s.messages()) != 1 {
		t.Fatalf("won=%d sent=%d, want exactly one", won, len(s.messages()))
	}
}

func TestController_ChannelMustMatch(t *testing.T) {
	c, _, s := mounted(t)
	c.HandleIPCMessage("invoke", rawArgs(t, "x"))

	forged := queue.PendingRequest{Channel: "other", ID: "x"}
	if err := c.Resolve(forged, 1); !errors.Is(err, bridge.ErrNotPending) {
		t.Fatalf("Resolve with wrong channel = %v", err)
	}
	if _, ok := c.Pending("x"); !ok || len(s.messages()) != 0 {
		t.Fatal("mismatched completion touched the request")
	}
}

func TestController_DuplicateIDIgnored(t *testing.T) {
	c, q, _ := mounted(t)
	c.HandleIPCMessage("invoke", rawArgs(t, "dup", "first"))

	err := c.HandleIPCMessage("invoke", rawArgs(t, "dup", "second"))
	if !errors.Is(err, bridge.ErrDuplicateRequest) {
		t.Fatalf("duplicate = %v", err)
	}
	pending := q.List("s1")
	if len(pending) != 1 || string(pending[0].Args[0]) != `"first"` {
		t.Fatalf("pending = %+v", pending)
	}
}

// brokenQueue fails every Enqueue the way an unreachable backend does.
type brokenQueue struct {
	*queue.MemoryQueue
}

func (brokenQueue) Enqueue(string, queue.PendingRequest) error {
	return errors.New("connection refused")
}

func TestController_EnqueueFailureRejects(t *testing.T) {
	con := &fakeConsole{}
	c := bridge.NewController("s1", brokenQueue{queue.NewMemoryQueue()}, bridge.WithConsole(con))
	s := &fakeSurface{}
	if err := c.Mount(s); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	err := c.HandleIPCMessage("invoke", rawArgs(t, "r1", "x"))
	if err == nil || errors.Is(err, bridge.ErrDuplicateRequest) {
		t.Fatalf("HandleIPCMessage = %v, want a backend error", err)
	}
	msgs := s.messages()
	if len(msgs) != 1 || msgs[0].Channel != "invoke-failure-r1" || msgs[0].Payload != "request queue unavailable" {
		t.Fatalf("sent = %+v", msgs)
	}
	if len(con.requests) != 1 || con.requests[0] != "invoke/r1/rejected" {
		t.Fatalf("requests = %v", con.requests)
	}
	if len(con.errors) != 1 || con.errors[0] != "enqueue invoke r1: connection refused" {
		t.Fatalf("errors = %v", con.errors)
	}
}

func TestController_MalformedIPC(t *testing.T) {
	c, q, _ := mounted(t)

	cases := []struct {
		name    string
		channel string
		args    []json.RawMessage
	}{
		{"no channel", "", rawArgs(t, "1")},
		{"no args", "invoke", nil},
		{"object id", "invoke", rawArgs(t, map[string]int{"a": 1})},
		{"empty id", "invoke", rawArgs(t, "")},
	}
	for _, tc := range cases {
		err := c.HandleIPCMessage(tc.channel, tc.args)
		if !errors.Is(err, protocol.ErrMalformedEvent) {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
	}
	if len(q.List("s1")) != 0 {
		t.Fatal("malformed message was enqueued")
	}
}

func TestController_NewWindow(t *testing.T) {
	opener := &fakeOpener{}
	var blocked []string
	c, _, s := mounted(t,
		bridge.WithLinkOpener(opener),
		bridge.WithBlockedLinkHook(func(u string) { blocked = append(blocked, u) }),
	)

	if err := c.HandleNewWindow("https://neo.org"); err != nil {
		t.Fatalf("HandleNewWindow: %v", err)
	}
	if err := c.HandleNewWindow("file:///etc/passwd"); !errors.Is(err, bridge.ErrBlockedURL) {
		t.Fatalf("file url = %v", err)
	}

	if len(opener.urls) != 1 || opener.urls[0] != "https://neo.org" {
		t.Fatalf("opened = %v", opener.urls)
	}
	if len(blocked) != 1 {
		t.Fatalf("blocked = %v", blocked)
	}
	if len(s.messages()) != 0 {
		t.Fatal("new-window must not answer the surface")
	}
}

func TestController_ConsoleAndDispatch(t *testing.T) {
	console := &fakeConsole{}
	c, _, _ := mounted(t, bridge.WithConsole(console))

	events := []protocol.Event{
		{Type: "console-message", Level: 1, Message: "hello", Source: "app.js", Line: 3},
		{Type: "ipc-message", Channel: "invoke", Args: rawArgs(t, "r")},
	}
	for _, ev := range events {
		if err := c.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%s): %v", ev.Type, err)
		}
	}
	if err := c.Dispatch(protocol.Event{Type: "bogus"}); !errors.Is(err, protocol.ErrMalformedEvent) {
		t.Fatalf("Dispatch(bogus) = %v", err)
	}

	req, _ := c.Pending("r")
	c.Resolve(req, true)

	if len(console.lines) != 1 || console.lines[0] != "hello" {
		t.Fatalf("console = %v", console.lines)
	}
	want := []string{"invoke/r/pending", "invoke/r/resolved"}
	if len(console.requests) != 2 || console.requests[0] != want[0] || console.requests[1] != want[1] {
		t.Fatalf("requests = %v", console.requests)
	}
}

func TestController_MountTwice(t *testing.T) {
	c, _, _ := mounted(t)
	if err := c.Mount(&fakeSurface{}); !errors.Is(err, bridge.ErrAlreadyMounted) {
		t.Fatalf("second Mount = %v", err)
	}
}
