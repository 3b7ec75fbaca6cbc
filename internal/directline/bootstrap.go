package directline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// BootstrapError means the regional-settings or conversation-start fetch
// failed. It is fatal to the session: no transport handle is produced.
// Reported, never retried.
type BootstrapError struct {
	URL    string
	Status int
	Err    error
}

func (e *BootstrapError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("directline: fetching %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("directline: fetching %s: %v", e.URL, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// RegionalEndpointInfo is the outcome of regional endpoint resolution.
type RegionalEndpointInfo struct {
	DirectLineBaseURL string
}

// ConversationSession is a transport session produced by a successful
// exchange of the conversation-start URL. It lives for one panel-open
// lifecycle and is discarded on close.
type ConversationSession struct {
	Token           string
	TransportDomain string
}

// regionalSettings is the regional-settings endpoint response.
type regionalSettings struct {
	ChannelURLsByID map[string]string `json:"channelUrlsById"`
}

// conversationStart is the conversation-start endpoint response.
type conversationStart struct {
	Token string `json:"token"`
}

// Bootstrapper owns all bootstrap I/O: the regional-settings fetch, the
// conversation-start fetch, and transport construction.
type Bootstrapper struct {
	client *http.Client
	log    *logging.Logger
}

// NewBootstrapper creates a Bootstrapper. A nil client gets a default with
// a 30 second timeout.
func NewBootstrapper(client *http.Client, log *logging.Logger) *Bootstrapper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Bootstrapper{client: client, log: log.Sub("directline")}
}

// ResolveRegional fetches the regional channel settings for the descriptor's
// environment and returns the directline base URL.
func (b *Bootstrapper) ResolveRegional(ctx context.Context, d Descriptor) (RegionalEndpointInfo, error) {
	settingsURL := d.RegionalSettingsURL()

	var settings regionalSettings
	if err := b.getJSON(ctx, settingsURL, &settings); err != nil {
		return RegionalEndpointInfo{}, err
	}

	base, ok := settings.ChannelURLsByID["directline"]
	if !ok || base == "" {
		return RegionalEndpointInfo{}, &BootstrapError{
			URL: settingsURL,
			Err: fmt.Errorf("response has no channelUrlsById.directline"),
		}
	}

	b.log.Debug().Str("directline", base).Msg("regional endpoint resolved")
	return RegionalEndpointInfo{DirectLineBaseURL: base}, nil
}

// StartConversation exchanges the conversation-start URL for a transport
// token and composes the transport domain from the regional info.
func (b *Bootstrapper) StartConversation(ctx context.Context, d Descriptor, info RegionalEndpointInfo) (ConversationSession, error) {
	var start conversationStart
	if err := b.getJSON(ctx, d.BaseURL, &start); err != nil {
		return ConversationSession{}, err
	}
	if start.Token == "" {
		return ConversationSession{}, &BootstrapError{
			URL: d.BaseURL,
			Err: fmt.Errorf("response has no token"),
		}
	}

	return ConversationSession{
		Token:           start.Token,
		TransportDomain: info.DirectLineBaseURL + "v3/directline",
	}, nil
}

// Bootstrap runs both fetch phases in order and constructs the transport
// handle. Any failure aborts the remaining steps; no partial handle is
// ever returned.
func (b *Bootstrapper) Bootstrap(ctx context.Context, d Descriptor) (*Conn, error) {
	info, err := b.ResolveRegional(ctx, d)
	if err != nil {
		return nil, err
	}
	session, err := b.StartConversation(ctx, d, info)
	if err != nil {
		return nil, err
	}
	return NewConn(session, b.client, b.log), nil
}

func (b *Bootstrapper) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &BootstrapError{URL: rawURL, Err: err}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &BootstrapError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BootstrapError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &BootstrapError{URL: rawURL, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &BootstrapError{URL: rawURL, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}
