// Package config loads and validates pvachat configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Bot: BotConfig{
			AutoGreet: true,
		},
		Identity: IdentityConfig{
			CacheStore: "sqlite",
		},
		Panel: PanelConfig{
			Title:            "Chat",
			ButtonLabel:      "Chat with us",
			HideUploadButton: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}
