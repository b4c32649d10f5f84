package twitchc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-json-experiment/json"
	"golang.org/x/oauth2"

	"github.com/aigachu/lavenza/auth"
)

// Identity is what Twitch reports about a validated access token.
type Identity struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	Scopes    []string `json:"scopes"`
	UserID    string   `json:"user_id"`
	ExpiresIn int      `json:"expires_in"`

	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ErrNeedRefresh indicates the access token expired and must be refreshed.
// It must be checked using [errors.Is].
var ErrNeedRefresh = errors.New("need refresh")

// Validate checks an access token against Twitch's validation endpoint. An
// expired token yields an error wrapping [ErrNeedRefresh]; the identity may
// be non-nil even when the error is non-nil.
func Validate(ctx context.Context, client *http.Client, tok *oauth2.Token) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://id.twitch.tv/oauth2/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't make validate request: %w", err)
	}
	tok.SetAuthHeader(req)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't validate access token: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("couldn't read validation response: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, fmt.Errorf("couldn't unmarshal validation response: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK: // do nothing
	case http.StatusUnauthorized:
		err = fmt.Errorf("token rejected: %s (%w)", id.Message, ErrNeedRefresh)
	default:
		err = fmt.Errorf("token validation failed: %s (%s)", id.Message, resp.Status)
	}
	return &id, err
}

// Login validates the token from tokens, refreshing as needed, and returns
// the bot's identity along with a token usable for the TMI login. It gives
// up after a few refresh attempts.
func Login(ctx context.Context, client *http.Client, tokens auth.TokenSource) (*Identity, *oauth2.Token, error) {
	tok, err := tokens.Token(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't obtain access token: %w", err)
	}
	for range 5 {
		id, err := Validate(ctx, client, tok)
		switch {
		case err == nil:
			return id, tok, nil
		case errors.Is(err, ErrNeedRefresh):
			tok, err = tokens.Refresh(ctx, tok)
			if err != nil {
				return nil, nil, fmt.Errorf("couldn't refresh access token: %w", err)
			}
		default:
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("gave up on validation attempts")
}
