package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/fieldtriplabs/pvachat/internal/domain"
	"github.com/fieldtriplabs/pvachat/internal/logging"
)

const (
	// greetingEventName triggers the agent's greeting topic on connect.
	greetingEventName = "startConversation"
	// tokenExchangeInvokeName asserts the user's identity token against an
	// authentication challenge.
	tokenExchangeInvokeName = "signin/tokenExchange"
	// exchangeRejected is the invoke outcome meaning the backend could not
	// handle the exchange and the interactive card must be shown.
	exchangeRejected = "retry"
)

// ExchangeError records a failed or rejected token exchange. Non-fatal:
// only the challenge that triggered it falls back to the interactive card.
type ExchangeError struct {
	ExchangeID string
	Outcome    string
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: token exchange %s failed: %v", e.ExchangeID, e.Err)
	}
	return fmt.Sprintf("session: token exchange %s rejected with %q", e.ExchangeID, e.Outcome)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Poster sends an outbound activity over the transport and reports the id
// the backend assigned to it.
type Poster interface {
	PostActivity(ctx context.Context, act domain.Activity) (string, error)
}

// InterceptorConfig is the per-session state the interceptor closes over.
// All of it is fixed at construction; the token is read-only for the whole
// session.
type InterceptorConfig struct {
	Token     string // empty means no-auth mode: challenges fall back to the interactive card
	UserID    string // the user's email-like identifier
	UserName  string // the user's display name
	AutoGreet bool
}

// Interceptor is the per-session middleware: it auto-triggers the greeting
// after connect and satisfies authentication challenges by silent token
// exchange, forwarding the challenge for interactive display when the
// exchange is rejected or fails.
type Interceptor struct {
	cfg    InterceptorConfig
	poster Poster
	log    *logging.Logger

	mu      sync.Mutex
	greeted bool
}

// NewInterceptor creates the session middleware.
func NewInterceptor(cfg InterceptorConfig, poster Poster, log *logging.Logger) *Interceptor {
	return &Interceptor{
		cfg:    cfg,
		poster: poster,
		log:    log.Sub("interceptor"),
	}
}

// Connected sends the greeting trigger, at most once per session no matter
// how many times the transport reports establishment.
func (i *Interceptor) Connected(ctx context.Context) {
	if !i.cfg.AutoGreet {
		return
	}

	i.mu.Lock()
	if i.greeted {
		i.mu.Unlock()
		return
	}
	i.greeted = true
	i.mu.Unlock()

	// a simulated post-back, as if the user had typed the trigger phrase
	greeting := domain.Activity{
		Type: domain.TypeEvent,
		Name: greetingEventName,
		From: i.userAccount(),
		ChannelData: map[string]any{
			"postBack": true,
		},
	}

	if _, err := i.poster.PostActivity(ctx, greeting); err != nil {
		// the conversation still works, the user just greets first
		i.log.Warn().Err(err).Msg("failed to send greeting trigger")
		return
	}
	i.log.Debug().Msg("greeting trigger sent")
}

// Intercept evaluates one inbound activity. Anything that is not an
// authentication challenge passes through unchanged.
func (i *Interceptor) Intercept(ctx context.Context, act domain.Activity) Decision {
	challenge, ok := domain.ExtractOAuthChallenge(act)
	if !ok {
		return Forward()
	}

	if i.cfg.Token == "" {
		// no token was acquired; show the card so the user can sign in
		i.log.Debug().Str("connection", challenge.ConnectionName).Msg("no token for challenge, forwarding card")
		return Forward()
	}

	outcome, err := i.poster.PostActivity(ctx, i.exchangeInvoke(challenge))
	if err != nil {
		i.log.Warn().Err(&ExchangeError{ExchangeID: challenge.ExchangeID, Err: err}).Msg("token exchange failed, forwarding card")
		return Forward()
	}
	if outcome == exchangeRejected {
		i.log.Info().Err(&ExchangeError{ExchangeID: challenge.ExchangeID, Outcome: outcome}).Msg("token exchange rejected, forwarding card")
		return Forward()
	}

	i.log.Debug().Str("connection", challenge.ConnectionName).Msg("token exchange accepted")
	return Suppress()
}

// tokenExchangeValue is the invoke payload asserting the identity token.
type tokenExchangeValue struct {
	ID             string `json:"id"`
	ConnectionName string `json:"connectionName"`
	Token          string `json:"token"`
}

func (i *Interceptor) exchangeInvoke(challenge domain.OAuthChallenge) domain.Activity {
	return domain.Activity{
		Type: domain.TypeInvoke,
		Name: tokenExchangeInvokeName,
		Value: tokenExchangeValue{
			ID:             challenge.ExchangeID,
			ConnectionName: challenge.ConnectionName,
			Token:          i.cfg.Token,
		},
		From: i.userAccount(),
	}
}

func (i *Interceptor) userAccount() domain.ChannelAccount {
	return domain.ChannelAccount{
		ID:   i.cfg.UserID,
		Name: i.cfg.UserName,
		Role: domain.RoleUser,
	}
}

var _ Middleware = (*Interceptor)(nil)
