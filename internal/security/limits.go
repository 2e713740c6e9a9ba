package security

import (
	"sync"
	"time"
)

// SurfaceLimiter caps the websocket surfaces one client address may hold
// open at the same time.
type SurfaceLimiter struct {
	mu    sync.Mutex
	open  map[string]int
	perIP int
}

func NewSurfaceLimiter(perIP int) *SurfaceLimiter {
	return &SurfaceLimiter{open: make(map[string]int), perIP: perIP}
}

// Acquire takes a slot for ip. The returned release must be called once
// the surface is gone; it is safe to call more than once.
func (l *SurfaceLimiter) Acquire(ip string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open[ip] >= l.perIP {
		return func() {}, false
	}
	l.open[ip]++

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.open[ip]--; l.open[ip] <= 0 {
				delete(l.open, ip)
			}
		})
	}, true
}

// LoginGuard locks a key out after too many failed logins. Failures count
// while each arrives within lockFor of the previous one. Keys combine the
// client address and the session.
type LoginGuard struct {
	mu       sync.Mutex
	failures map[string]*lockout
	limit    int
	lockFor  time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type lockout struct {
	count int
	until time.Time
}

func NewLoginGuard(limit int, lockFor, sweepEvery time.Duration) *LoginGuard {
	g := &LoginGuard{
		failures: make(map[string]*lockout),
		limit:    limit,
		lockFor:  lockFor,
		stop:     make(chan struct{}),
	}
	go g.sweep(sweepEvery)
	return g
}

// Allow reports whether key may attempt a login now.
func (g *LoginGuard) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	lo, ok := g.failures[key]
	if !ok {
		return true
	}
	if time.Now().After(lo.until) {
		delete(g.failures, key)
		return true
	}
	return lo.count < g.limit
}

// Fail counts a failed login and reports whether it locked key out.
func (g *LoginGuard) Fail(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	lo, ok := g.failures[key]
	if !ok {
		lo = &lockout{}
		g.failures[key] = lo
	}
	lo.count++
	lo.until = time.Now().Add(g.lockFor)
	return lo.count == g.limit
}

// Reset forgets the failures of key after a successful login.
func (g *LoginGuard) Reset(key string) {
	g.mu.Lock()
	delete(g.failures, key)
	g.mu.Unlock()
}

func (g *LoginGuard) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *LoginGuard) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-g.stop:
			return
		case now := <-t.C:
			g.mu.Lock()
			for key, lo := range g.failures {
				if now.After(lo.until) {
					delete(g.failures, key)
				}
			}
			g.mu.Unlock()
		}
	}
}
