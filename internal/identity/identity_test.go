package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/credcache"
	"cdl-sync/internal/identity"
	"cdl-sync/internal/testutil"
)

func newTokenServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != identity.TokenPath {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != "password" ||
			r.Form.Get("username") != "researcher" ||
			r.Form.Get("password") != "s3cret" ||
			r.Form.Get("client_id") != "cdl-client" ||
			r.Form.Get("client_secret") != "client-secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "tok-1",
			"token_type":    "bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) identity.Config {
	return identity.Config{
		BaseURL:      baseURL,
		ClientID:     "cdl-client",
		ClientSecret: "client-secret",
		Username:     "researcher",
		Password:     "s3cret",
	}
}

func TestNewClient(t *testing.T) {
	cfg := testConfig("https://iam.example.com/")
	c, err := identity.NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://iam.example.com/authorize/oauth2/token", c.TokenURL())

	cfg.ClientSecret = ""
	_, err = identity.NewClient(cfg)
	assert.NoError(t, err, "client secret is optional")

	cfg.Username = ""
	_, err = identity.NewClient(cfg)
	assert.ErrorIs(t, err, identity.ErrNoCredentials)
}

func TestClient_FetchToken(t *testing.T) {
	t.Run("password grant", func(t *testing.T) {
		var hits atomic.Int32
		srv := newTokenServer(t, &hits)

		c, err := identity.NewClient(testConfig(srv.URL))
		require.NoError(t, err)

		tok, err := c.FetchToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok.AccessToken)
		assert.Equal(t, "refresh-1", tok.RefreshToken)
		assert.NotZero(t, tok.ExpiresAt)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		var hits atomic.Int32
		srv := newTokenServer(t, &hits)

		cfg := testConfig(srv.URL)
		cfg.Password = "wrong"
		c, err := identity.NewClient(cfg)
		require.NoError(t, err)

		_, err = c.FetchToken(context.Background())
		require.Error(t, err)
	})

	t.Run("prompts once for a missing password", func(t *testing.T) {
		var hits atomic.Int32
		srv := newTokenServer(t, &hits)

		prompts := 0
		cfg := testConfig(srv.URL)
		cfg.Password = ""
		cfg.PromptPassword = func() (string, error) {
			prompts++
			return "s3cret", nil
		}
		c, err := identity.NewClient(cfg)
		require.NoError(t, err)

		for range 2 {
			_, err := c.FetchToken(context.Background())
			require.NoError(t, err)
		}
		assert.Equal(t, 1, prompts)
	})

	t.Run("missing password without prompt", func(t *testing.T) {
		cfg := testConfig("https://iam.example.com")
		cfg.Password = ""
		c, err := identity.NewClient(cfg)
		require.NoError(t, err)

		_, err = c.FetchToken(context.Background())
		assert.ErrorIs(t, err, identity.ErrNoCredentials)
	})

	t.Run("prompt failure", func(t *testing.T) {
		cfg := testConfig("https://iam.example.com")
		cfg.Password = ""
		cfg.PromptPassword = func() (string, error) { return "", errors.New("no tty") }
		c, err := identity.NewClient(cfg)
		require.NoError(t, err)

		_, err = c.FetchToken(context.Background())
		assert.Error(t, err)
	})
}

func TestClient_FetchToken_PublicClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("client_id") != "public-client" ||
			r.Form.Get("password") != "typed-pw" ||
			r.Form.Get("client_secret") != "typed-pw" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-public",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)

	c, err := identity.NewClient(identity.Config{
		BaseURL:        srv.URL,
		ClientID:       "public-client",
		Username:       "researcher",
		PromptPassword: func() (string, error) { return "typed-pw", nil },
	})
	require.NoError(t, err)

	tok, err := c.FetchToken(context.Background())
	require.NoError(t, err, "prompted password should be sent as the client secret")
	assert.Equal(t, "tok-public", tok.AccessToken)
}

func TestTokenSource(t *testing.T) {
	var hits atomic.Int32
	srv := newTokenServer(t, &hits)

	c, err := identity.NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	cache := credcache.New[*cdl.BearerToken](
		filepath.Join(t.TempDir(), "bearer_token.json"),
		identity.TokenMargin,
		testutil.FixedClock(),
		cdl.NewNopLogger(),
	)
	ts := identity.NewTokenSource(context.Background(), c, cache)

	for range 3 {
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok.AccessToken)
	}
	assert.Equal(t, int32(1), hits.Load(), "token endpoint should be hit once")
}
