package cli

import "os"

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	AdminSecret string
	Output      string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   getEnvOrDefault("ATLASGUESS_SERVER", "http://localhost:8080"),
		AdminSecret: os.Getenv("ATLASGUESS_ADMIN_SECRET"),
		Output:      "text",
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
