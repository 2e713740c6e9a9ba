package main

import (
	"log"

	"dappbridge/internal/config"
	"dappbridge/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := s.Run(); err != nil {
		log.Fatalf("%v", err)
	}
}
