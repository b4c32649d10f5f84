package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type testStorage struct {
	tok *oauth2.Token
}

func (t *testStorage) Load(ctx context.Context) (*oauth2.Token, error) {
	return t.tok, nil
}

func (t *testStorage) Store(ctx context.Context, tok *oauth2.Token) error {
	t.tok = tok
	return nil
}

func TestEqual(t *testing.T) {
	a := &oauth2.Token{AccessToken: "bocchi", RefreshToken: "ryou", TokenType: "bearer"}
	b := &oauth2.Token{AccessToken: "bocchi", RefreshToken: "ryou", TokenType: "bearer"}
	cases := []struct {
		name string
		a, b *oauth2.Token
		want bool
	}{
		{name: "both-nil", a: nil, b: nil, want: true},
		{name: "one-nil", a: a, b: nil, want: false},
		{name: "same", a: a, b: b, want: true},
		{name: "different", a: a, b: &oauth2.Token{AccessToken: "kita"}, want: false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Equal(c.a, c.b); got != c.want {
				t.Errorf("want %v, got %v", c.want, got)
			}
		})
	}
}

// tokenServer answers refresh token grants with a fixed new access token.
func tokenServer(t *testing.T, refreshes *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			http.Error(w, `{"message":"bad grant"}`, http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("refresh_token") != "hiroi" {
			http.Error(w, `{"message":"Invalid refresh token"}`, http.StatusBadRequest)
			return
		}
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"seika","refresh_token":"hiroi2","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshFlow(t *testing.T) {
	var refreshes atomic.Int32
	srv := tokenServer(t, &refreshes)
	cfg := oauth2.Config{
		ClientID:     "kita",
		ClientSecret: "nijika",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL},
	}
	ctx := context.Background()
	st := &testStorage{tok: &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "hiroi",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	src := RefreshFlow(cfg, st, srv.Client())
	tok, err := src.Token(ctx)
	if err != nil {
		t.Fatalf("couldn't get token: %v", err)
	}
	if tok.AccessToken != "seika" || tok.RefreshToken != "hiroi2" {
		t.Errorf("wrong token: %#v", tok)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refreshed %d times, want 1", refreshes.Load())
	}
	if !Equal(st.tok, tok) {
		t.Errorf("refreshed token not stored: %#v", st.tok)
	}
	// A fresh token is reused without another refresh.
	if _, err := src.Token(ctx); err != nil {
		t.Fatalf("couldn't get token again: %v", err)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refreshed %d times after reuse, want 1", refreshes.Load())
	}
}

func TestRefreshStaleOld(t *testing.T) {
	var refreshes atomic.Int32
	srv := tokenServer(t, &refreshes)
	cfg := oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL}}
	ctx := context.Background()
	current := &oauth2.Token{AccessToken: "fresh", RefreshToken: "hiroi", Expiry: time.Now().Add(time.Hour)}
	st := &testStorage{tok: current}
	src := RefreshFlow(cfg, st, srv.Client())
	// Refresh with an outdated old token returns the stored one untouched.
	tok, err := src.Refresh(ctx, &oauth2.Token{AccessToken: "older"})
	if err != nil {
		t.Fatalf("couldn't refresh: %v", err)
	}
	if !Equal(tok, current) {
		t.Errorf("wrong token: %#v", tok)
	}
	if refreshes.Load() != 0 {
		t.Errorf("refreshed %d times, want 0", refreshes.Load())
	}
	// Refresh with the current token forces the grant.
	if _, err := src.Refresh(ctx, current); err != nil {
		t.Fatalf("couldn't force refresh: %v", err)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refreshed %d times after force, want 1", refreshes.Load())
	}
}

func TestNoToken(t *testing.T) {
	src := RefreshFlow(oauth2.Config{}, &testStorage{}, nil)
	if _, err := src.Token(context.Background()); err == nil {
		t.Error("token from empty storage")
	}
}
