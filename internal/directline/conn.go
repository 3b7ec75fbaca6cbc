package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fieldtriplabs/pvachat/internal/domain"
	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// ErrConnClosed is returned by PostActivity after the connection has been
// invalidated.
var ErrConnClosed = errors.New("directline: connection closed")

// conversationResource is the response to the start-conversation call.
type conversationResource struct {
	ConversationID string `json:"conversationId"`
	Token          string `json:"token"`
	StreamURL      string `json:"streamUrl"`
}

// activitySet is one frame on the activity stream.
type activitySet struct {
	Activities []domain.Activity `json:"activities"`
	Watermark  string            `json:"watermark"`
}

// postResource is the response to posting an activity. The backend signals
// a rejected token exchange by answering with the literal id "retry".
type postResource struct {
	ID string `json:"id"`
}

// Conn is the live bidirectional channel to the conversation transport.
// It is exclusively owned by the session controller: once Close is called
// no further sends or handler dispatches happen.
type Conn struct {
	session ConversationSession
	http    *http.Client
	log     *logging.Logger

	mu             sync.Mutex
	closed         bool
	ws             *websocket.Conn
	conversationID string

	onConnected func()
	onActivity  func(domain.Activity)
}

// NewConn creates an unopened transport handle for a conversation session.
func NewConn(session ConversationSession, client *http.Client, log *logging.Logger) *Conn {
	return &Conn{
		session: session,
		http:    client,
		log:     log.Sub("conn"),
	}
}

// OnConnected registers the connection-established handler. Must be called
// before Start.
func (c *Conn) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = fn
}

// OnActivity registers the inbound-activity handler. Must be called before
// Start.
func (c *Conn) OnActivity(fn func(domain.Activity)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onActivity = fn
}

// ConversationID returns the id assigned when the conversation was opened.
func (c *Conn) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Start opens the conversation, dials the activity stream, fires the
// connected handler, and begins dispatching inbound activities. The
// connected handler runs before any inbound activity is delivered.
func (c *Conn) Start(ctx context.Context) error {
	res, err := c.openConversation(ctx)
	if err != nil {
		return err
	}
	if res.StreamURL == "" {
		return fmt.Errorf("directline: conversation %s has no stream URL", res.ConversationID)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.session.Token)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, res.StreamURL, header)
	if err != nil {
		return fmt.Errorf("directline: dialing activity stream: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return ErrConnClosed
	}
	c.ws = ws
	c.conversationID = res.ConversationID
	connected := c.onConnected
	c.mu.Unlock()

	c.log.Info().Str("conversationId", res.ConversationID).Msg("conversation connected")

	if connected != nil {
		connected()
	}

	go c.readLoop()
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return nil
}

func (c *Conn) openConversation(ctx context.Context) (conversationResource, error) {
	startURL := c.session.TransportDomain + "/conversations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, nil)
	if err != nil {
		return conversationResource{}, &BootstrapError{URL: startURL, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return conversationResource{}, &BootstrapError{URL: startURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return conversationResource{}, &BootstrapError{URL: startURL, Status: resp.StatusCode}
	}

	var res conversationResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return conversationResource{}, &BootstrapError{URL: startURL, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if res.Token != "" {
		// the conversation-scoped token supersedes the start token
		c.session.Token = res.Token
	}
	return res, nil
}

func (c *Conn) readLoop() {
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.log.Warn().Err(err).Msg("activity stream closed")
			}
			return
		}
		if len(bytes.TrimSpace(msg)) == 0 {
			// the stream sends empty keepalive frames
			continue
		}

		var set activitySet
		if err := json.Unmarshal(msg, &set); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed activity frame")
			continue
		}

		c.mu.Lock()
		closed := c.closed
		handler := c.onActivity
		c.mu.Unlock()
		if closed || handler == nil {
			return
		}
		for _, act := range set.Activities {
			handler(act)
		}
	}
}

// PostActivity sends an outbound activity and returns the id the backend
// assigned to it.
func (c *Conn) PostActivity(ctx context.Context, act domain.Activity) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrConnClosed
	}
	postURL := c.session.TransportDomain + "/conversations/" + c.conversationID + "/activities"
	token := c.session.Token
	c.mu.Unlock()

	payload, err := json.Marshal(act)
	if err != nil {
		return "", fmt.Errorf("directline: encoding activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("directline: posting activity: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("directline: posting activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("directline: posting activity: HTTP %d", resp.StatusCode)
	}

	var res postResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("directline: malformed post response: %w", err)
	}
	return res.ID, nil
}

// Close invalidates the connection. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ws != nil {
		return c.ws.Close()
	}
	return nil
}
