package config

// Config is the root configuration for pvachat.
type Config struct {
	Bot      BotConfig      `yaml:"bot,omitempty"`
	Identity IdentityConfig `yaml:"identity,omitempty"`
	Panel    PanelConfig    `yaml:"panel,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// BotConfig points at the hosted agent's conversation-start endpoint.
type BotConfig struct {
	// ConversationStartURL is the bot's token endpoint, e.g.
	// https://<env>.contoso.com/powervirtualagents/.../convstart?api-version=2022-03-01-preview
	ConversationStartURL string `yaml:"conversationStartUrl"`
	AutoGreet            bool   `yaml:"autoGreet,omitempty"` // send the greeting trigger after connect
}

// IdentityConfig configures the identity provider used for silent sign-in.
// Leaving it empty disables token acquisition; the conversation still opens,
// but authentication challenges fall back to the interactive card.
type IdentityConfig struct {
	ClientID        string `yaml:"clientId,omitempty"`
	Authority       string `yaml:"authority,omitempty"` // e.g. https://login.microsoftonline.com/<tenant>
	Scope           string `yaml:"scope,omitempty"`     // custom API scope requested for the exchange
	UserEmail       string `yaml:"userEmail,omitempty"`
	UserDisplayName string `yaml:"userDisplayName,omitempty"`
	CacheStore      string `yaml:"cacheStore,omitempty"` // "sqlite" | "memory"
}

// PanelConfig carries presentation options handed through to the rendering
// surface. This layer never interprets them.
type PanelConfig struct {
	Title            string `yaml:"title,omitempty"`
	ButtonLabel      string `yaml:"buttonLabel,omitempty"`
	HideUploadButton bool   `yaml:"hideUploadButton,omitempty"`
	BotAvatarImage   string `yaml:"botAvatarImage,omitempty"`
	UserAvatarImage  string `yaml:"userAvatarImage,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}
