// Package session sequences token acquisition and transport bootstrap into
// a live conversation session and mediates the activity stream flowing to
// the rendering surface.
package session

import (
	"context"
	"sync"

	"github.com/fieldtriplabs/pvachat/internal/domain"
	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// Action is what the middleware decided to do with an activity.
type Action int

const (
	ActionForward Action = iota
	ActionSuppress
	ActionReplace
)

// Decision is the explicit outcome of intercepting one activity.
type Decision struct {
	Action      Action
	Replacement domain.Activity
}

// Forward passes the activity through unchanged.
func Forward() Decision { return Decision{Action: ActionForward} }

// Suppress swallows the activity; the rendering surface never sees it.
func Suppress() Decision { return Decision{Action: ActionSuppress} }

// Replace substitutes another activity for the intercepted one.
func Replace(act domain.Activity) Decision {
	return Decision{Action: ActionReplace, Replacement: act}
}

// Middleware sits between the transport and the rendering surface.
type Middleware interface {
	// Connected is invoked once the transport reports the channel is
	// established, before any inbound activity.
	Connected(ctx context.Context)
	// Intercept evaluates one inbound activity.
	Intercept(ctx context.Context, act domain.Activity) Decision
}

// Store is the dispatch pipeline the rendering surface consumes. Every
// transport event passes through the middleware before reaching
// subscribers. After Close nothing is dispatched, regardless of when the
// middleware outcome arrives.
type Store struct {
	mw  Middleware
	log *logging.Logger

	mu     sync.Mutex
	closed bool
	subs   []func(domain.Activity)
}

// NewStore creates a dispatch pipeline with the given middleware installed.
func NewStore(mw Middleware, log *logging.Logger) *Store {
	return &Store{mw: mw, log: log.Sub("store")}
}

// Subscribe registers a consumer for forwarded activities.
func (s *Store) Subscribe(fn func(domain.Activity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// HandleConnected feeds the connection-established event through the
// middleware.
func (s *Store) HandleConnected(ctx context.Context) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.mw.Connected(ctx)
}

// HandleActivity feeds one inbound activity through the middleware and
// forwards the surviving activity to subscribers.
func (s *Store) HandleActivity(ctx context.Context, act domain.Activity) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	decision := s.mw.Intercept(ctx, act)

	switch decision.Action {
	case ActionSuppress:
		s.log.Debug().Str("type", string(act.Type)).Msg("activity suppressed")
		return
	case ActionReplace:
		act = decision.Replacement
	}

	s.mu.Lock()
	// the middleware may have been suspended across session teardown
	if s.closed {
		s.mu.Unlock()
		return
	}
	subs := append(([]func(domain.Activity))(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(act)
	}
}

// Close stops all future dispatch.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
