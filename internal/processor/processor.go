// Package processor answers requests that the host can handle without an
// operator. Requests on other channels stay pending.
package processor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"dappbridge/internal/auth"
	"dappbridge/internal/bridge"
	"dappbridge/internal/constants"
	"dappbridge/internal/queue"
)

// ChannelGetAccount returns the public view of the session's account.
const ChannelGetAccount = "getAccount"

// HandlerFunc computes the result of a request. A returned error rejects
// the request with its message.
type HandlerFunc func(ctx context.Context, req queue.PendingRequest) (any, error)

// Controllers looks up the bridge of a live session.
type Controllers interface {
	Controller(sessionID string) (*bridge.Controller, bool)
}

// Accounts looks up the account a session logged in with.
type Accounts interface {
	Account(sessionID string) (auth.Account, bool)
}

type Processor struct {
	controllers Controllers
	timeout     time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	wg       sync.WaitGroup
}

func New(controllers Controllers, timeout time.Duration) *Processor {
	if timeout <= 0 {
		timeout = constants.ProcessorTimeout
	}
	return &Processor{
		controllers: controllers,
		timeout:     timeout,
		handlers:    make(map[string]HandlerFunc),
	}
}

// Handle registers fn for channel, replacing any previous handler.
func (p *Processor) Handle(channel string, fn HandlerFunc) {
	p.mu.Lock()
	p.handlers[channel] = fn
	p.mu.Unlock()
}

func (p *Processor) handler(channel string) (HandlerFunc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.handlers[channel]
	return fn, ok
}

// Process is installed as the queue's enqueue hook. It returns at once and
// runs the handler, if any, on its own goroutine.
func (p *Processor) Process(req queue.PendingRequest) {
	fn, ok := p.handler(req.Channel)
	if !ok {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(fn, req)
	}()
}

func (p *Processor) run(fn HandlerFunc, req queue.PendingRequest) {
	c, ok := p.controllers.Controller(req.SessionID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	result, err := fn(ctx, req)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	if err != nil {
		err = c.Reject(req, err.Error())
	} else {
		err = c.Resolve(req, result)
	}
	if err != nil && !errors.Is(err, bridge.ErrNotPending) {
		log.Printf("⚠️  Processor: %s %s: %v", req.Channel, req.ID, err)
	}
}

// Wait blocks until every started handler has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// AccountHandler answers ChannelGetAccount from accounts.
func AccountHandler(accounts Accounts) HandlerFunc {
	return func(_ context.Context, req queue.PendingRequest) (any, error) {
		acct, ok := accounts.Account(req.SessionID)
		if !ok {
			return nil, errors.New(constants.MsgNotLoggedIn)
		}
		return acct.Public(), nil
	}
}
