package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// fakeProvider scripts the two acquisition paths and records calls.
type fakeProvider struct {
	silentToken      *Token
	silentErr        error
	interactiveToken *Token
	interactiveErr   error

	silentCalls      int
	interactiveCalls int
}

func (p *fakeProvider) AcquireSilent(ctx context.Context, scopes []string, userHint string) (*Token, error) {
	p.silentCalls++
	return p.silentToken, p.silentErr
}

func (p *fakeProvider) AcquireInteractive(ctx context.Context, scopes []string, userHint string) (*Token, error) {
	p.interactiveCalls++
	return p.interactiveToken, p.interactiveErr
}

var testScopes = []string{"api://bot/scope.read"}

func TestAcquire_SilentFirst(t *testing.T) {
	p := &fakeProvider{
		silentToken: &Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)},
	}
	b := NewBroker(p, logging.NewNop())

	tok, err := b.Acquire(context.Background(), testScopes, "jane@contoso.com")
	require.NoError(t, err)
	assert.Equal(t, "cached", tok.AccessToken)

	// silent-first guarantee: the interactive path must never run
	assert.Equal(t, 1, p.silentCalls)
	assert.Equal(t, 0, p.interactiveCalls)
}

func TestAcquire_InteractiveFallbackOnNoSession(t *testing.T) {
	p := &fakeProvider{
		interactiveToken: &Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)},
	}
	b := NewBroker(p, logging.NewNop())

	tok, err := b.Acquire(context.Background(), testScopes, "jane@contoso.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, 1, p.interactiveCalls)
}

func TestAcquire_InteractiveFallbackOnExpiredSilentToken(t *testing.T) {
	p := &fakeProvider{
		silentToken:      &Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)},
		interactiveToken: &Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)},
	}
	b := NewBroker(p, logging.NewNop())

	tok, err := b.Acquire(context.Background(), testScopes, "jane@contoso.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
}

func TestAcquire_InteractiveFallbackOnSilentError(t *testing.T) {
	p := &fakeProvider{
		silentErr:        errors.New("refresh rejected"),
		interactiveToken: &Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)},
	}
	b := NewBroker(p, logging.NewNop())

	tok, err := b.Acquire(context.Background(), testScopes, "jane@contoso.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
}

func TestAcquire_BothPathsFail(t *testing.T) {
	p := &fakeProvider{
		silentErr:      errors.New("no session"),
		interactiveErr: errors.New("user declined"),
	}
	b := NewBroker(p, logging.NewNop())

	tok, err := b.Acquire(context.Background(), testScopes, "jane@contoso.com")
	require.Error(t, err)
	assert.Nil(t, tok)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorContains(t, authErr.Interactive, "user declined")
}

func TestAcquire_InteractiveReturnsUnusableToken(t *testing.T) {
	p := &fakeProvider{
		interactiveToken: &Token{AccessToken: ""},
	}
	b := NewBroker(p, logging.NewNop())

	_, err := b.Acquire(context.Background(), testScopes, "jane@contoso.com")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}
