package identity

import (
	"context"
	"fmt"

	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// Provider is the identity-provider collaborator contract. AcquireSilent
// returns (nil, nil) when no already-authenticated session matches the
// user hint. AcquireInteractive may surface a sign-in interaction owned by
// the provider.
type Provider interface {
	AcquireSilent(ctx context.Context, scopes []string, userHint string) (*Token, error)
	AcquireInteractive(ctx context.Context, scopes []string, userHint string) (*Token, error)
}

// AuthError means both the silent and the interactive acquisition paths
// failed. It is non-fatal: the conversation still opens, and authentication
// challenges fall back to the interactive card.
type AuthError struct {
	Silent      error
	Interactive error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("identity: token acquisition failed (silent: %v, interactive: %v)", e.Silent, e.Interactive)
}

func (e *AuthError) Unwrap() error { return e.Interactive }

// Broker acquires an identity token for a user, silent path first.
type Broker struct {
	provider Provider
	log      *logging.Logger
}

// NewBroker creates a token broker on top of an identity provider.
func NewBroker(provider Provider, log *logging.Logger) *Broker {
	return &Broker{provider: provider, log: log.Sub("identity")}
}

// Acquire obtains a token for the given scopes and user hint. The silent
// path is always tried first; the interactive path runs only when silent
// acquisition yields no usable token. Both failing returns an *AuthError.
func (b *Broker) Acquire(ctx context.Context, scopes []string, userHint string) (*Token, error) {
	tok, silentErr := b.provider.AcquireSilent(ctx, scopes, userHint)
	if silentErr != nil {
		b.log.Debug().Err(silentErr).Str("user", userHint).Msg("silent acquisition failed")
	}
	if tok.Valid() {
		b.log.Debug().Str("user", userHint).Msg("token acquired silently")
		return tok, nil
	}

	tok, err := b.provider.AcquireInteractive(ctx, scopes, userHint)
	if err != nil {
		return nil, &AuthError{Silent: silentErr, Interactive: err}
	}
	if !tok.Valid() {
		return nil, &AuthError{Silent: silentErr, Interactive: fmt.Errorf("provider returned no usable token")}
	}

	b.log.Info().Str("user", userHint).Msg("token acquired interactively")
	return tok, nil
}
