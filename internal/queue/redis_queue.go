package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"dappbridge/internal/constants"
)

// Each session is a hash of id -> request plus a list of ids in arrival order.
// Scripts keep the two in step.
var (
	enqueueScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[1])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('EXPIRE', KEYS[1], ttl)
	redis.call('EXPIRE', KEYS[2], ttl)
end
return 1
`)

	dequeueScript = redis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('LREM', KEYS[2], 0, ARGV[1])
return 1
`)
)

type RedisQueue struct {
	client    *redis.Client
	ttl       time.Duration
	ctx       context.Context
	cancel    func()
	mu        sync.RWMutex
	onEnqueue func(PendingRequest)
}

// NewRedisQueue connects to Redis. Pending sets expire ttl after the last
// enqueue so abandoned sessions do not accumulate.
func NewRedisQueue(host, port, username, password string, ttl time.Duration) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := client.Ping(ctx).Err(); err != nil {
		cancel()
		client.Close()
		return nil, err
	}

	return &RedisQueue{
		client: client,
		ttl:    ttl,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func requestsKey(sessionID string) string {
	return constants.RedisQueuePrefix + sessionID + ":req"
}

func orderKey(sessionID string) string {
	return constants.RedisQueuePrefix + sessionID + ":order"
}

func (q *RedisQueue) OnEnqueue(fn func(PendingRequest)) {
	q.mu.Lock()
	q.onEnqueue = fn
	q.mu.Unlock()
}

func (q *RedisQueue) Enqueue(sessionID string, req PendingRequest) error {
	req.SessionID = sessionID
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request %s: %w", req.ID, err)
	}

	keys := []string{requestsKey(sessionID), orderKey(sessionID)}
	added, err := enqueueScript.Run(q.ctx, q.client, keys, req.ID, data, int64(q.ttl/time.Second)).Int()
	if err != nil {
		return fmt.Errorf("failed to enqueue request in Redis: %w", err)
	}
	if added == 0 {
		return ErrDuplicate
	}

	q.mu.RLock()
	hook := q.onEnqueue
	q.mu.RUnlock()
	if hook != nil {
		hook(req)
	}
	return nil
}

func (q *RedisQueue) Dequeue(sessionID, id string) bool {
	keys := []string{requestsKey(sessionID), orderKey(sessionID)}
	removed, err := dequeueScript.Run(q.ctx, q.client, keys, id).Int()
	if err != nil {
		log.Printf("Failed to dequeue request from Redis: %v", err)
		return false
	}
	return removed == 1
}

// Empty deletes both keys in one command, which Redis applies atomically.
func (q *RedisQueue) Empty(sessionID string) {
	if err := q.client.Del(q.ctx, requestsKey(sessionID), orderKey(sessionID)).Err(); err != nil {
		log.Printf("Failed to empty session queue in Redis: %v", err)
	}
}

func (q *RedisQueue) List(sessionID string) []PendingRequest {
	ids, err := q.client.LRange(q.ctx, orderKey(sessionID), 0, -1).Result()
	if err != nil {
		log.Printf("Failed to list session queue from Redis: %v", err)
		return nil
	}
	if len(ids) == 0 {
		return []PendingRequest{}
	}

	values, err := q.client.HMGet(q.ctx, requestsKey(sessionID), ids...).Result()
	if err != nil {
		log.Printf("Failed to load pending requests from Redis: %v", err)
		return nil
	}

	out := make([]PendingRequest, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Removed between LRANGE and HMGET.
			continue
		}
		var req PendingRequest
		if err := json.Unmarshal([]byte(s), &req); err != nil {
			log.Printf("Failed to unmarshal pending request: %v", err)
			continue
		}
		out = append(out, req)
	}
	return out
}

func (q *RedisQueue) Get(sessionID, id string) (PendingRequest, bool) {
	data, err := q.client.HGet(q.ctx, requestsKey(sessionID), id).Result()
	if err == redis.Nil {
		return PendingRequest{}, false
	}
	if err != nil {
		log.Printf("Failed to get pending request from Redis: %v", err)
		return PendingRequest{}, false
	}

	var req PendingRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		log.Printf("Failed to unmarshal pending request: %v", err)
		return PendingRequest{}, false
	}
	return req, true
}

func (q *RedisQueue) Close() error {
	q.cancel()
	return q.client.Close()
}
