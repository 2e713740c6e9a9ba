package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"dappbridge/internal/constants"
)

// expiryKey is a sorted set of session ids scored by expiry time. Redis
// drops the session keys on its own; the index lets the store notice.
const expiryKey = constants.RedisSessionPrefix + "expiry"

type RedisStore struct {
	client   *redis.Client
	mu       sync.RWMutex
	onExpire func(id string)
	ctx      context.Context
	cancel   func()
	wg       sync.WaitGroup
}

func NewRedisStore(host, port, username, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	})
	return newRedisStore(client, constants.CleanupInterval)
}

func newRedisStore(client *redis.Client, interval time.Duration) (*RedisStore, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store := &RedisStore{
		client: client,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := store.client.Ping(ctx).Err(); err != nil {
		cancel()
		client.Close()
		return nil, err
	}

	store.startCleanup(interval)

	return store, nil
}

func sessionKey(id string) string {
	return constants.RedisSessionPrefix + "data:" + id
}

func (st *RedisStore) OnExpire(fn func(id string)) {
	st.mu.Lock()
	st.onExpire = fn
	st.mu.Unlock()
}

func (st *RedisStore) expired(id string) {
	st.mu.RLock()
	fn := st.onExpire
	st.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

func (st *RedisStore) Save(session *Session) {
	jsonData, err := json.Marshal(session)
	if err != nil {
		log.Printf("Failed to marshal session: %v", err)
		return
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}

	pipe := st.client.TxPipeline()
	pipe.Set(st.ctx, sessionKey(session.ID), jsonData, ttl)
	pipe.ZAdd(st.ctx, expiryKey, redis.Z{Score: float64(session.ExpiresAt.UnixMilli()), Member: session.ID})
	if _, err := pipe.Exec(st.ctx); err != nil {
		log.Printf("Failed to save session to Redis: %v", err)
	}
}

func (st *RedisStore) Get(id string) (*Session, bool) {
	data, err := st.client.Get(st.ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to get session from Redis: %v", err)
		return nil, false
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		log.Printf("Failed to unmarshal session: %v", err)
		return nil, false
	}

	if session.IsExpired() {
		st.expire(id)
		return nil, false
	}
	return &session, true
}

func (st *RedisStore) Delete(id string) {
	pipe := st.client.TxPipeline()
	pipe.Del(st.ctx, sessionKey(id))
	pipe.ZRem(st.ctx, expiryKey, id)
	if _, err := pipe.Exec(st.ctx); err != nil {
		log.Printf("Failed to delete session from Redis: %v", err)
	}
}

// expire removes id and fires the callback if this call won the removal.
func (st *RedisStore) expire(id string) {
	removed, err := st.client.ZRem(st.ctx, expiryKey, id).Result()
	st.client.Del(st.ctx, sessionKey(id))
	if err != nil || removed == 0 {
		return
	}
	st.expired(id)
	log.Printf("🗑 Expired session cleaned up (Redis): %s", id)
}

func (st *RedisStore) Close() error {
	st.cancel()
	st.wg.Wait()
	return st.client.Close()
}

func (st *RedisStore) startCleanup(interval time.Duration) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-st.ctx.Done():
				return
			case <-ticker.C:
				st.cleanupExpired()
			}
		}
	}()
}

func (st *RedisStore) cleanupExpired() {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := st.client.ZRangeByScore(st.ctx, expiryKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		if st.ctx.Err() == nil {
			log.Printf("Redis expiry scan error: %v", err)
		}
		return
	}
	for _, id := range ids {
		st.expire(id)
	}
}
