package identity

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"

	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// ProviderOptions configures the device-code identity provider.
type ProviderOptions struct {
	ClientID  string
	Authority string    // e.g. https://login.microsoftonline.com/<tenant>
	Prompt    io.Writer // sign-in instructions for the interactive path; defaults to stderr
	Cache     Cache
}

// DeviceCodeProvider implements Provider against an OAuth2 authority.
// The silent path replays a cached session (valid access token, or refresh
// token exchange); the interactive path runs the device-authorization flow.
type DeviceCodeProvider struct {
	opts   ProviderOptions
	prompt io.Writer
	cache  Cache
	log    *logging.Logger
}

// NewDeviceCodeProvider creates a provider for the given authority.
func NewDeviceCodeProvider(opts ProviderOptions, log *logging.Logger) *DeviceCodeProvider {
	prompt := opts.Prompt
	if prompt == nil {
		prompt = os.Stderr
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &DeviceCodeProvider{
		opts:   opts,
		prompt: prompt,
		cache:  cache,
		log:    log.Sub("identity.provider"),
	}
}

func (p *DeviceCodeProvider) config(scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: p.opts.ClientID,
		Scopes:   scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       p.opts.Authority + "/oauth2/v2.0/authorize",
			TokenURL:      p.opts.Authority + "/oauth2/v2.0/token",
			DeviceAuthURL: p.opts.Authority + "/oauth2/v2.0/devicecode",
		},
	}
}

// AcquireSilent returns a token from an already-authenticated session
// matching the user hint, refreshing it if needed. (nil, nil) means no
// such session exists.
func (p *DeviceCodeProvider) AcquireSilent(ctx context.Context, scopes []string, userHint string) (*Token, error) {
	entry, err := p.cache.Get(userHint, ScopeKey(scopes))
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	tok := &Token{AccessToken: entry.AccessToken, Expiry: entry.Expiry}
	if tok.Valid() {
		return tok, nil
	}
	if entry.RefreshToken == "" {
		return nil, nil
	}

	refreshed, err := p.config(scopes).TokenSource(ctx, &oauth2.Token{RefreshToken: entry.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	tok = fromOAuth2(refreshed)
	p.store(userHint, scopes, tok, refreshed.RefreshToken)
	return tok, nil
}

// AcquireInteractive runs the device-authorization flow constrained to the
// user hint. The sign-in instruction is the only user-visible surface, and
// it belongs to this provider, not the conversation layer.
func (p *DeviceCodeProvider) AcquireInteractive(ctx context.Context, scopes []string, userHint string) (*Token, error) {
	conf := p.config(scopes)

	da, err := conf.DeviceAuth(ctx, oauth2.SetAuthURLParam("login_hint", userHint))
	if err != nil {
		return nil, fmt.Errorf("starting device authorization: %w", err)
	}

	fmt.Fprintf(p.prompt, "To sign in, visit %s and enter the code %s\n", da.VerificationURI, da.UserCode)

	ot, err := conf.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("completing device authorization: %w", err)
	}

	tok := fromOAuth2(ot)
	p.store(userHint, scopes, tok, ot.RefreshToken)
	return tok, nil
}

func (p *DeviceCodeProvider) store(userHint string, scopes []string, tok *Token, refreshToken string) {
	err := p.cache.Put(Entry{
		Account:      userHint,
		ScopeKey:     ScopeKey(scopes),
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		// Cache trouble only costs a future silent sign-in.
		p.log.Warn().Err(err).Str("user", userHint).Msg("failed to persist token")
	}
}

func fromOAuth2(ot *oauth2.Token) *Token {
	tok := &Token{AccessToken: ot.AccessToken, Expiry: ot.Expiry}
	if tok.Expiry.IsZero() {
		if exp, ok := expiryFromAccessToken(ot.AccessToken); ok {
			tok.Expiry = exp
		}
	}
	return tok
}

var _ Provider = (*DeviceCodeProvider)(nil)
