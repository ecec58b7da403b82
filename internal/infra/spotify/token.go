package spotify

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// TokenProvider exchanges the long-lived refresh token for access tokens.
type TokenProvider struct {
	oauth        oauth2.Config
	refreshToken string
	baseURL      string
	transport    http.RoundTripper
}

// NewTokenProvider validates credentials and returns a provider.
func NewTokenProvider(cfg Config, opts ...Option) (*TokenProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, ErrNoCredentials
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	return &TokenProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: tokenURL,
			},
		},
		refreshToken: cfg.RefreshToken,
		baseURL:      cfg.BaseURL,
		transport:    buildOptions(opts).transport,
	}, nil
}

// Token obtains a fresh access token.
func (p *TokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: p.transport})
	token, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken}).Token()
	if err != nil {
		return nil, errors.Wrap(err, "failed to refresh spotify access token")
	}
	return token, nil
}

// Test reports whether token is accepted by the Web API, using a one-result search.
func (p *TokenProvider) Test(ctx context.Context, token *oauth2.Token) bool {
	if token == nil || token.AccessToken == "" {
		return false
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   p.transport,
		},
	}
	var opts []spotify.ClientOption
	if p.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(p.baseURL))
	}
	if _, err := spotify.New(httpClient, opts...).Search(ctx, "a", spotify.SearchTypeTrack, spotify.Limit(1)); err != nil {
		zlog.Warn().Err(err).Msg("spotify access token test failed")
		return false
	}
	return true
}
