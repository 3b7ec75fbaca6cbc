// Package domain defines the activity envelope exchanged over the
// conversation transport and the shapes derived from it.
package domain

import (
	"encoding/json"
	"time"
)

// ActivityType classifies an activity envelope.
type ActivityType string

const (
	TypeMessage ActivityType = "message"
	TypeEvent   ActivityType = "event"
	TypeInvoke  ActivityType = "invoke"
	TypeTyping  ActivityType = "typing"
)

// Roles for the From field of an activity.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// ChannelAccount identifies a conversation participant.
type ChannelAccount struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// Attachment is a typed content blob carried by an activity. Content is
// kept raw; callers decode it against the declared ContentType.
type Attachment struct {
	ContentType string          `json:"contentType"`
	ContentURL  string          `json:"contentUrl,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Activity is a single message unit exchanged over the transport,
// inbound or outbound.
type Activity struct {
	Type        ActivityType   `json:"type"`
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Text        string         `json:"text,omitempty"`
	From        ChannelAccount `json:"from,omitempty"`
	Value       any            `json:"value,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	ChannelData map[string]any `json:"channelData,omitempty"`
	Timestamp   time.Time      `json:"timestamp,omitempty"`
}

// IsFromBot reports whether the activity originated from the agent side.
func (a Activity) IsFromBot() bool {
	return a.From.Role == RoleBot
}
