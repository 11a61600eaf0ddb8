package webmonitor

import "time"

// Config defines the runtime configuration for the operator web server.
type Config struct {
	Addr           string
	StatusInterval time.Duration
}

// DefaultConfig returns the config used when flags leave values unset.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		StatusInterval: 1 * time.Second,
	}
}
