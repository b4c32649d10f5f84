// Package auth manages OAuth2 credentials for chat clients.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// TokenSource is a source of OAuth2 access tokens. Its methods are safe to
// call concurrently.
type TokenSource interface {
	// Token retrieves a token value, refreshing if the stored one expired.
	// The result is always non-nil if the error is nil.
	Token(ctx context.Context) (*oauth2.Token, error)
	// Refresh forces a refresh of the token if its current value is identical
	// to old in the sense of [Equal]. The result is the refreshed token.
	// The requirement to provide the old token allows Refresh to be called
	// concurrently without flooding refresh requests.
	Refresh(ctx context.Context, old *oauth2.Token) (*oauth2.Token, error)
}

// Equal compares two OAuth2 tokens by access token, refresh token, token
// type, and expiry.
func Equal(a, b *oauth2.Token) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return a.AccessToken == b.AccessToken &&
		a.TokenType == b.TokenType &&
		a.RefreshToken == b.RefreshToken &&
		a.Expiry.Equal(b.Expiry)
}

// ErrNoToken indicates the storage holds no token. The operator seeds one
// with the init subcommand before first run.
var ErrNoToken = errors.New("no stored token")

// refresher is a TokenSource that renews tokens with the refresh token
// grant against the stored credential.
type refresher struct {
	mu sync.Mutex

	cfg    oauth2.Config
	st     Storage
	client *http.Client
}

// RefreshFlow creates a TokenSource which renews tokens with the refresh
// token grant. The storage must already hold a token; RefreshFlow never
// initiates an interactive flow. If client is nil, [http.DefaultClient] is
// used instead.
func RefreshFlow(cfg oauth2.Config, st Storage, client *http.Client) TokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &refresher{cfg: cfg, st: st, client: client}
}

func (s *refresher) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't retrieve current token: %w", err)
	}
	if tok == nil {
		return nil, ErrNoToken
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return s.refreshLocked(ctx, tok.RefreshToken)
}

func (s *refresher) Refresh(ctx context.Context, old *oauth2.Token) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't retrieve current token for refresh: %w", err)
	}
	if tok == nil {
		return nil, ErrNoToken
	}
	if !Equal(tok, old) {
		// Someone else refreshed while the caller held the old value.
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return s.refreshLocked(ctx, tok.RefreshToken)
}

func (s *refresher) refreshLocked(ctx context.Context, rt string) (*oauth2.Token, error) {
	// x/oauth2 doesn't expose anything to do token refresh, so we implement
	// that manually here.
	v := url.Values{
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {rt},
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.Endpoint.TokenURL, strings.NewReader(v.Encode()))
	if err != nil {
		return nil, fmt.Errorf("couldn't create token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("couldn't read refresh response body: %w", err)
	}
	var d struct {
		oauth2.Token
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("couldn't decode token refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refresh failed: %s (%s)", d.Message, resp.Status)
	}
	tok := d.Token
	if tok.RefreshToken == "" {
		// Some providers rotate refresh tokens, some keep them. Keep the
		// old one if no replacement arrived.
		tok.RefreshToken = rt
	}
	if err := s.st.Store(ctx, &tok); err != nil {
		return nil, fmt.Errorf("couldn't store refreshed token: %w", err)
	}
	return &tok, nil
}
