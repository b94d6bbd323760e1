package main

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds process-level settings. Values come from flags, with
// environment variables (optionally via a .env file) as fallback.
type Config struct {
	Addr      string
	DBPath    string
	ClientDir string
}

// LoadConfig reads a .env file if one is present, then resolves each
// setting: an explicit flag value wins, then the environment, then the
// default.
func LoadConfig(addrFlag, dbFlag, clientFlag string) Config {
	_ = godotenv.Load() // missing .env is fine

	return Config{
		Addr:      pick(addrFlag, "ARENA_ADDR", ":8080"),
		DBPath:    pick(dbFlag, "ARENA_DB", "rooms.db"),
		ClientDir: pick(clientFlag, "ARENA_CLIENT_DIR", "./client"),
	}
}

func pick(flagVal, envKey, def string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}
