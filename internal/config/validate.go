package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Bot validation
	if cfg.Bot.ConversationStartURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "bot.conversationStartUrl",
			Message: "conversation-start URL is required",
		})
	} else {
		u, err := url.Parse(cfg.Bot.ConversationStartURL)
		switch {
		case err != nil || u.Scheme == "" || u.Host == "":
			issues = append(issues, ValidationIssue{
				Path:    "bot.conversationStartUrl",
				Message: fmt.Sprintf("must be an absolute URL, got %q", cfg.Bot.ConversationStartURL),
			})
		case u.Query().Get("api-version") == "":
			issues = append(issues, ValidationIssue{
				Path:    "bot.conversationStartUrl",
				Message: "missing api-version query parameter",
			})
		}
	}

	// Identity validation: either fully configured or fully absent.
	id := cfg.Identity
	if id.ClientID != "" || id.Authority != "" || id.Scope != "" {
		for path, val := range map[string]string{
			"identity.clientId":  id.ClientID,
			"identity.authority": id.Authority,
			"identity.scope":     id.Scope,
			"identity.userEmail": id.UserEmail,
		} {
			if val == "" {
				issues = append(issues, ValidationIssue{
					Path:    path,
					Message: "required when identity is configured",
				})
			}
		}
	}
	if id.UserEmail != "" && !strings.Contains(id.UserEmail, "@") {
		issues = append(issues, ValidationIssue{
			Path:    "identity.userEmail",
			Message: fmt.Sprintf("must be an email-like identifier, got %q", id.UserEmail),
		})
	}

	validCacheStores := []string{"sqlite", "memory"}
	if id.CacheStore != "" && !slices.Contains(validCacheStores, id.CacheStore) {
		issues = append(issues, ValidationIssue{
			Path:    "identity.cacheStore",
			Message: fmt.Sprintf("must be one of %v, got %q", validCacheStores, id.CacheStore),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validLogStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validLogStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogStyles, cfg.Logging.Style),
		})
	}

	return issues
}
