package session

import (
	"log"

	"dappbridge/internal/config"
)

// NewStore picks Redis when it is configured and reachable.
func NewStore(cfg config.Config) StoreInterface {
	if cfg.RedisHost != "" {
		store, err := NewRedisStore(cfg.RedisHost, cfg.RedisPort, cfg.RedisUser, cfg.RedisPassword)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory session store")
			return NewMemoryStore()
		}
		log.Printf("💾 Using Redis session store: %s:%s", cfg.RedisHost, cfg.RedisPort)
		return store
	}

	log.Println("💾 Using in-memory session store")
	return NewMemoryStore()
}
