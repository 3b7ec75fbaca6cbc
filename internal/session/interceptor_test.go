package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtriplabs/pvachat/internal/domain"
	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// fakePoster records posted activities and scripts the outcome.
type fakePoster struct {
	mu     sync.Mutex
	posted []domain.Activity
	id     string
	err    error
}

func (p *fakePoster) PostActivity(ctx context.Context, act domain.Activity) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posted = append(p.posted, act)
	return p.id, p.err
}

func (p *fakePoster) postedActivities() []domain.Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Activity(nil), p.posted...)
}

func challengeActivity(t *testing.T) domain.Activity {
	t.Helper()
	content, err := json.Marshal(map[string]any{
		"connectionName": "AAD",
		"tokenExchangeResource": map[string]string{
			"id":  "ex-123",
			"uri": "api://botid-xyz",
		},
	})
	require.NoError(t, err)
	return domain.Activity{
		Type: domain.TypeMessage,
		From: domain.ChannelAccount{ID: "bot", Role: domain.RoleBot},
		Attachments: []domain.Attachment{{
			ContentType: domain.OAuthCardContentType,
			Content:     content,
		}},
	}
}

func newTestInterceptor(cfg InterceptorConfig, poster Poster) *Interceptor {
	return NewInterceptor(cfg, poster, logging.NewNop())
}

func TestIntercept_PlainActivityPassesThrough(t *testing.T) {
	poster := &fakePoster{id: "act-1"}
	i := newTestInterceptor(InterceptorConfig{Token: "tok"}, poster)

	act := domain.Activity{
		Type: domain.TypeMessage,
		Text: "hello",
		From: domain.ChannelAccount{Role: domain.RoleBot},
	}
	d := i.Intercept(context.Background(), act)

	assert.Equal(t, ActionForward, d.Action)
	assert.Empty(t, poster.postedActivities(), "no invoke for a plain message")
}

func TestIntercept_EventAndTypingPassThrough(t *testing.T) {
	poster := &fakePoster{id: "act-1"}
	i := newTestInterceptor(InterceptorConfig{Token: "tok"}, poster)

	for _, typ := range []domain.ActivityType{domain.TypeEvent, domain.TypeTyping, domain.TypeInvoke} {
		d := i.Intercept(context.Background(), domain.Activity{Type: typ, From: domain.ChannelAccount{Role: domain.RoleBot}})
		assert.Equal(t, ActionForward, d.Action)
	}
	assert.Empty(t, poster.postedActivities())
}

func TestIntercept_ChallengeExchangeAccepted(t *testing.T) {
	poster := &fakePoster{id: "invoke-1"}
	i := newTestInterceptor(InterceptorConfig{
		Token:    "id-token",
		UserID:   "jane@contoso.com",
		UserName: "Jane Doe",
	}, poster)

	d := i.Intercept(context.Background(), challengeActivity(t))

	assert.Equal(t, ActionSuppress, d.Action, "accepted exchange suppresses the card")

	posted := poster.postedActivities()
	require.Len(t, posted, 1, "exactly one exchange invoke")
	invoke := posted[0]
	assert.Equal(t, domain.TypeInvoke, invoke.Type)
	assert.Equal(t, "signin/tokenExchange", invoke.Name)
	assert.Equal(t, "jane@contoso.com", invoke.From.ID)
	assert.Equal(t, "Jane Doe", invoke.From.Name)
	assert.Equal(t, domain.RoleUser, invoke.From.Role)

	value, ok := invoke.Value.(tokenExchangeValue)
	require.True(t, ok)
	assert.Equal(t, "ex-123", value.ID)
	assert.Equal(t, "AAD", value.ConnectionName)
	assert.Equal(t, "id-token", value.Token)
}

func TestIntercept_ChallengeExchangeRejectedWithRetry(t *testing.T) {
	poster := &fakePoster{id: "retry"}
	i := newTestInterceptor(InterceptorConfig{Token: "id-token", UserID: "jane@contoso.com"}, poster)

	d := i.Intercept(context.Background(), challengeActivity(t))

	assert.Equal(t, ActionForward, d.Action, "rejected exchange forwards the card")
	assert.Len(t, poster.postedActivities(), 1, "exactly one exchange invoke even on rejection")
}

func TestIntercept_ChallengeExchangeTransportError(t *testing.T) {
	poster := &fakePoster{err: errors.New("connection reset")}
	i := newTestInterceptor(InterceptorConfig{Token: "id-token"}, poster)

	d := i.Intercept(context.Background(), challengeActivity(t))

	assert.Equal(t, ActionForward, d.Action, "errored exchange forwards the card")
	assert.Len(t, poster.postedActivities(), 1)
}

func TestIntercept_ChallengeWithoutToken(t *testing.T) {
	poster := &fakePoster{id: "never-used"}
	i := newTestInterceptor(InterceptorConfig{Token: ""}, poster)

	d := i.Intercept(context.Background(), challengeActivity(t))

	assert.Equal(t, ActionForward, d.Action, "no token forwards the card immediately")
	assert.Empty(t, poster.postedActivities(), "no invoke without a token")
}

func TestConnected_SendsGreetingOnce(t *testing.T) {
	poster := &fakePoster{id: "act-1"}
	i := newTestInterceptor(InterceptorConfig{
		Token:     "tok",
		UserID:    "jane@contoso.com",
		UserName:  "Jane Doe",
		AutoGreet: true,
	}, poster)

	i.Connected(context.Background())
	i.Connected(context.Background())
	i.Connected(context.Background())

	posted := poster.postedActivities()
	require.Len(t, posted, 1, "exactly one greeting per session")

	greeting := posted[0]
	assert.Equal(t, domain.TypeEvent, greeting.Type)
	assert.Equal(t, "startConversation", greeting.Name)
	assert.Equal(t, domain.RoleUser, greeting.From.Role)
	assert.Equal(t, true, greeting.ChannelData["postBack"])
}

func TestConnected_NoGreetingWhenDisabled(t *testing.T) {
	poster := &fakePoster{id: "act-1"}
	i := newTestInterceptor(InterceptorConfig{Token: "tok", AutoGreet: false}, poster)

	i.Connected(context.Background())

	assert.Empty(t, poster.postedActivities())
}

func TestConnected_GreetingFailureIsNonFatal(t *testing.T) {
	poster := &fakePoster{err: errors.New("post failed")}
	i := newTestInterceptor(InterceptorConfig{Token: "tok", AutoGreet: true}, poster)

	// must not panic; later challenges still work through the same poster
	i.Connected(context.Background())
	assert.Len(t, poster.postedActivities(), 1)
}

func TestIntercept_GreetingBeforeExchange(t *testing.T) {
	poster := &fakePoster{id: "ok"}
	i := newTestInterceptor(InterceptorConfig{Token: "tok", AutoGreet: true, UserID: "jane@contoso.com"}, poster)

	i.Connected(context.Background())
	i.Intercept(context.Background(), challengeActivity(t))

	posted := poster.postedActivities()
	require.Len(t, posted, 2)
	assert.Equal(t, domain.TypeEvent, posted[0].Type, "greeting is the first outbound activity")
	assert.Equal(t, domain.TypeInvoke, posted[1].Type)
}
