package queue

import (
	"log"

	"dappbridge/internal/config"
)

// NewQueue returns a Redis-backed queue when Redis is configured and
// reachable, and an in-memory queue otherwise.
func NewQueue(cfg config.Config) Queue {
	if cfg.RedisHost != "" {
		q, err := NewRedisQueue(cfg.RedisHost, cfg.RedisPort, cfg.RedisUser, cfg.RedisPassword, cfg.SessionDuration)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("📥 Falling back to in-memory request queue")
			return NewMemoryQueue()
		}
		log.Printf("📥 Using Redis request queue: %s:%s", cfg.RedisHost, cfg.RedisPort)
		return q
	}

	log.Println("📥 Using in-memory request queue")
	return NewMemoryQueue()
}
