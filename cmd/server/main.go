package main

import (
	"log"

	"github.com/joho/godotenv"

	"roulette/internal/server"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("📄 Loaded configuration from .env")
	}

	s, err := server.NewServer()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	s.Run()
}
