package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

// TokenClientOpts configures a [TokenClient].
type TokenClientOpts struct {
	ClientID    string
	RedirectURI string
	AuthURL     string
	TokenURL    string
	Scopes      []string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      *log.Logger
	Now         func() time.Time
}

// TokenClient talks to the token endpoint for a public PKCE client (no client secret).
type TokenClient struct {
	config     *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

// NewTokenClient creates a [TokenClient]. Without an explicit HTTP client it uses one bounded by opts.Timeout (10s by default).
func NewTokenClient(opts TokenClientOpts) *TokenClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &TokenClient{
		config: &oauth2.Config{
			ClientID:    opts.ClientID,
			RedirectURL: opts.RedirectURI,
			Scopes:      opts.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: opts.HTTPClient,
		logger:     opts.Logger.With("component", "token-client"),
		now:        opts.Now,
	}
}

// NewTokenClientFromConfig builds a [TokenClient] from the application config.
func NewTokenClientFromConfig(cfg *shared.Config, logger *log.Logger) *TokenClient {
	return NewTokenClient(TokenClientOpts{
		ClientID:    cfg.Spotify.ClientID,
		RedirectURI: cfg.Spotify.RedirectURI,
		AuthURL:     cfg.Spotify.AuthURL,
		TokenURL:    cfg.Spotify.TokenURL,
		Scopes:      cfg.Spotify.Scopes,
		Timeout:     cfg.HTTP.Timeout(),
		Logger:      logger,
	})
}

// AuthCodeURL returns the authorize URL carrying state and the S256 code challenge.
func (c *TokenClient) AuthCodeURL(state, challenge string) string {
	return c.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", challenge),
	)
}

// ExchangeCode trades an authorization code and its PKCE verifier for tokens.
func (c *TokenClient) ExchangeCode(ctx context.Context, code, verifier string) (*models.TokenResult, error) {
	tok, err := c.config.Exchange(c.withClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		reason, status, oauthCode := classify(err)
		c.logger.Warn("code exchange failed", "reason", reason, "status", status)
		return nil, &ExchangeError{Reason: reason, Status: status, Code: oauthCode, Err: err}
	}

	result, err := c.result(tok)
	if err != nil {
		return nil, &ExchangeError{Reason: ReasonServer, Err: err}
	}
	c.logger.Debug("code exchanged", "expires_at", result.ExpiresAt)
	return result, nil
}

// Refresh trades a refresh token for a new access token.
//
// When the response omits a refresh token the result carries refreshToken forward.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenResult, error) {
	src := c.config.TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		reason, status, oauthCode := classify(err)
		c.logger.Warn("token refresh failed", "reason", reason, "status", status)
		return nil, &RefreshError{Reason: reason, Status: status, Code: oauthCode, Err: err}
	}

	result, err := c.result(tok)
	if err != nil {
		return nil, &RefreshError{Reason: ReasonServer, Err: err}
	}
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	c.logger.Debug("token refreshed", "expires_at", result.ExpiresAt)
	return result, nil
}

func (c *TokenClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// result converts tok, fixing the absolute expiry at the moment the response was received.
func (c *TokenClient) result(tok *oauth2.Token) (*models.TokenResult, error) {
	if tok.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}
	if tok.ExpiresIn <= 0 {
		return nil, errors.New("token response missing a positive expires_in")
	}

	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	return &models.TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		ExpiresAt:    c.now().Add(expiresIn),
	}, nil
}
