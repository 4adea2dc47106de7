package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the server's configuration values.
type Config struct {
	Addr string // Listen address for the HTTP server

	PublicLobbies int // Number of public lobbies created at startup
	LobbyCapacity int // Maximum players per lobby
	RoundSeconds  int // Length of one round
	VoteSeconds   int // Length of the map voting window

	MapsPath  string   // Path to the map catalog (jsonc)
	Operators []string // Names promoted to operator on join
}

// Load reads configuration from the environment, falling back to
// built-in defaults. A .env file is loaded first if present.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env file not loaded: %v", err)
	}

	return Config{
		Addr:          getEnv("SERVER_ADDR", ":4566"),
		PublicLobbies: getEnvAsInt("PUBLIC_LOBBIES", 2),
		LobbyCapacity: getEnvAsInt("LOBBY_CAPACITY", 10),
		RoundSeconds:  getEnvAsInt("ROUND_SECONDS", 5*60),
		VoteSeconds:   getEnvAsInt("VOTE_SECONDS", 10),
		MapsPath:      getEnv("MAPS_PATH", "assets/maps.jsonc"),
		Operators:     getEnvAsList("OPERATOR_NAMES"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Fatalf("environment variable %s must be an integer: %v", key, err)
	}
	return value
}

func getEnvAsList(key string) []string {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
