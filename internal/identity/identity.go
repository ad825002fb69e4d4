// Package identity obtains bearer tokens from the identity provider using the
// OAuth2 resource-owner password grant.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/credcache"
)

// TokenPath is appended to the identity base URL to form the token endpoint.
const TokenPath = "/authorize/oauth2/token"

// TokenMargin is how long before expiry a cached token stops being reused.
const TokenMargin = 60 * time.Second

// ErrNoCredentials is returned when the client id or username is missing.
var ErrNoCredentials = errors.New("identity credentials not configured")

// PasswordFunc supplies the user's password when it is not configured.
type PasswordFunc func() (string, error)

// Config holds the identity provider settings.
type Config struct {
	BaseURL  string
	ClientID string

	// ClientSecret may be empty for public clients, in which case the
	// user's password is sent as the client secret.
	ClientSecret string
	Username     string
	Password     string

	// PromptPassword is consulted once, on the first token fetch, when
	// Password is empty.
	PromptPassword PasswordFunc

	// HTTPClient is used for token requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client fetches new tokens from the identity provider.
type Client struct {
	oauth      *oauth2.Config
	username   string
	httpClient *http.Client

	mu       sync.Mutex
	password string
	prompt   PasswordFunc
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.Username == "" {
		return nil, ErrNoCredentials
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("identity base url not configured")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  strings.TrimRight(cfg.BaseURL, "/") + TokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		username:   cfg.Username,
		password:   cfg.Password,
		prompt:     cfg.PromptPassword,
		httpClient: httpClient,
	}, nil
}

// TokenURL returns the token endpoint.
func (c *Client) TokenURL() string { return c.oauth.Endpoint.TokenURL }

// FetchToken performs a password grant and returns the issued token.
func (c *Client) FetchToken(ctx context.Context) (*cdl.BearerToken, error) {
	password, err := c.resolvePassword()
	if err != nil {
		return nil, err
	}

	conf := *c.oauth
	if conf.ClientSecret == "" {
		conf.ClientSecret = password
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := conf.PasswordCredentialsToken(ctx, c.username, password)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}
	return FromOAuth2(tok), nil
}

func (c *Client) resolvePassword() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.password != "" {
		return c.password, nil
	}
	if c.prompt == nil {
		return "", fmt.Errorf("%w: password missing", ErrNoCredentials)
	}
	pw, err := c.prompt()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	c.password = pw
	return pw, nil
}

// FromOAuth2 converts an oauth2 token into its persisted form.
func FromOAuth2(tok *oauth2.Token) *cdl.BearerToken {
	bt := &cdl.BearerToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		bt.ExpiresAt = tok.Expiry.Unix()
	}
	return bt
}

// ToOAuth2 converts a persisted token back into an oauth2 token.
func ToOAuth2(bt *cdl.BearerToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  bt.AccessToken,
		TokenType:    bt.TokenType,
		RefreshToken: bt.RefreshToken,
		Expiry:       bt.Expiry(),
	}
}

// TokenSource serves tokens from the credential cache and fetches a new one
// from the identity provider when the cached token is close to expiry.
type TokenSource struct {
	ctx    context.Context
	client *Client
	cache  *credcache.Cache[*cdl.BearerToken]
}

var _ oauth2.TokenSource = (*TokenSource)(nil)

// NewTokenSource creates a TokenSource. ctx bounds token fetches made
// through the oauth2.TokenSource interface.
func NewTokenSource(ctx context.Context, client *Client, cache *credcache.Cache[*cdl.BearerToken]) *TokenSource {
	return &TokenSource{ctx: ctx, client: client, cache: cache}
}

// BearerToken returns a token valid for at least TokenMargin, or one without
// a known expiry that was just issued.
func (s *TokenSource) BearerToken(ctx context.Context) (*cdl.BearerToken, error) {
	tok, err := s.cache.GetOrRefresh(ctx, s.client.FetchToken)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	return tok, nil
}

func (s *TokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.BearerToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return ToOAuth2(tok), nil
}
