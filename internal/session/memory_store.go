package session

import (
	"log"
	"sync"
	"time"

	"dappbridge/internal/constants"
)

type MemoryStore struct {
	sessions sync.Map
	mu       sync.RWMutex
	onExpire func(id string)
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	return newMemoryStore(constants.CleanupInterval)
}

func newMemoryStore(interval time.Duration) *MemoryStore {
	store := &MemoryStore{stop: make(chan struct{})}
	go store.cleanupLoop(interval)
	return store
}

func (st *MemoryStore) OnExpire(fn func(id string)) {
	st.mu.Lock()
	st.onExpire = fn
	st.mu.Unlock()
}

func (st *MemoryStore) expired(id string) {
	st.mu.RLock()
	fn := st.onExpire
	st.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

func (st *MemoryStore) Save(session *Session) {
	cp := *session
	st.sessions.Store(session.ID, &cp)
}

// Get returns a copy of the session. Expired sessions are removed and
// reported through the expiry callback.
func (st *MemoryStore) Get(id string) (*Session, bool) {
	val, ok := st.sessions.Load(id)
	if !ok {
		return nil, false
	}
	session := *val.(*Session)
	if session.IsExpired() {
		if _, loaded := st.sessions.LoadAndDelete(id); loaded {
			st.expired(id)
		}
		return nil, false
	}
	return &session, true
}

func (st *MemoryStore) Delete(id string) {
	st.sessions.Delete(id)
}

func (st *MemoryStore) Close() error {
	st.stopOnce.Do(func() { close(st.stop) })
	return nil
}

func (st *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
		}
		st.sessions.Range(func(key, value any) bool {
			session := value.(*Session)
			if session.IsExpired() {
				id := key.(string)
				if _, loaded := st.sessions.LoadAndDelete(id); loaded {
					st.expired(id)
					log.Printf("🗑 Expired session cleaned up: %s", id)
				}
			}
			return true
		})
	}
}
