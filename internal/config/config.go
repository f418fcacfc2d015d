package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort   int
	ResultsDir string
	DataDir    string

	// Engine selects the crawl backend: "g2b" hits the live site,
	// "script" replays a YAML scenario.
	Engine     string
	ScriptPath string
	G2BBaseURL string
}

func Load() *Config {
	// .env is optional; plain environment variables work on their own.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	return &Config{
		HTTPPort:   getEnvInt("HTTP_PORT", 8000),
		ResultsDir: getEnv("RESULTS_DIR", "results"),
		DataDir:    getEnv("DATA_DIR", "data"),
		Engine:     getEnv("CRAWL_ENGINE", "g2b"),
		ScriptPath: getEnv("SCRIPT_PATH", "examples/demo-scenario.yaml"),
		G2BBaseURL: getEnv("G2B_BASE_URL", ""),
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
