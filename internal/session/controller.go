package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fieldtriplabs/pvachat/internal/directline"
	"github.com/fieldtriplabs/pvachat/internal/domain"
	"github.com/fieldtriplabs/pvachat/internal/identity"
	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// OpenError means no conversation could be opened at all: the transport
// bootstrap itself failed. Auth trouble never produces an OpenError.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("session: open failed: %v", e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Options configures one panel-open lifecycle.
type Options struct {
	ConversationStartURL string
	Scopes               []string
	UserEmail            string
	UserDisplayName      string
	AutoGreet            bool
}

// Session is one live conversation: the transport handle plus the dispatch
// pipeline. The transport handle is owned here; nothing else constructs or
// destroys it.
type Session struct {
	Conn          *directline.Conn
	Store         *Store
	UserID        string
	Authenticated bool

	cancel context.CancelFunc
}

// Close tears the session down: dispatch stops first so any in-flight
// middleware outcome is discarded, then the transport is invalidated.
func (s *Session) Close() {
	s.Store.Close()
	s.Conn.Close()
	s.cancel()
}

// Controller sequences token acquisition and transport bootstrap into a
// Session. A nil broker means identity is not configured: the session
// opens in no-auth mode.
type Controller struct {
	broker       *identity.Broker
	bootstrapper *directline.Bootstrapper
	log          *logging.Logger
}

// NewController creates a session controller.
func NewController(broker *identity.Broker, bootstrapper *directline.Bootstrapper, log *logging.Logger) *Controller {
	return &Controller{
		broker:       broker,
		bootstrapper: bootstrapper,
		log:          log.Sub("session"),
	}
}

// Open acquires the identity token and bootstraps the transport
// concurrently, then wires the interceptor between them and starts the
// activity stream. A token failure degrades to no-auth mode; a transport
// failure aborts with an OpenError.
func (c *Controller) Open(ctx context.Context, opts Options) (*Session, error) {
	descriptor, err := directline.ParseDescriptor(opts.ConversationStartURL)
	if err != nil {
		return nil, &OpenError{Err: err}
	}

	sctx, cancel := context.WithCancel(ctx)

	var (
		tok  *identity.Token
		conn *directline.Conn
	)
	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		if c.broker == nil || len(opts.Scopes) == 0 {
			return nil
		}
		t, err := c.broker.Acquire(gctx, opts.Scopes, opts.UserEmail)
		if err != nil {
			// non-fatal: the conversation opens without auth capability
			c.log.Warn().Err(err).Msg("continuing without identity token")
			return nil
		}
		tok = t
		return nil
	})
	g.Go(func() error {
		cn, err := c.bootstrapper.Bootstrap(gctx, descriptor)
		if err != nil {
			return err
		}
		conn = cn
		return nil
	})
	if err := g.Wait(); err != nil {
		cancel()
		return nil, &OpenError{Err: err}
	}

	var token string
	if tok != nil {
		token = tok.AccessToken
	}

	interceptor := NewInterceptor(InterceptorConfig{
		Token:     token,
		UserID:    opts.UserEmail,
		UserName:  opts.UserDisplayName,
		AutoGreet: opts.AutoGreet,
	}, conn, c.log)
	store := NewStore(interceptor, c.log)

	conn.OnConnected(func() { store.HandleConnected(sctx) })
	conn.OnActivity(func(act domain.Activity) { store.HandleActivity(sctx, act) })

	if err := conn.Start(sctx); err != nil {
		store.Close()
		conn.Close()
		cancel()
		return nil, &OpenError{Err: err}
	}

	c.log.Info().
		Str("conversationId", conn.ConversationID()).
		Bool("authenticated", token != "").
		Msg("session opened")

	return &Session{
		Conn:          conn,
		Store:         store,
		UserID:        opts.UserEmail,
		Authenticated: token != "",
		cancel:        cancel,
	}, nil
}
