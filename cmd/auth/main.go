// Package main provides the tool that obtains a Spotify refresh token for replaybox.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/replaybox/internal/infra/logger"
)

var (
	app          = kingpin.New("replaybox-auth", "Obtain a Spotify refresh token for replaybox")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	timeout      = app.Flag("timeout", "How long to wait for the browser callback").Default("5m").Duration()
)

const successPage = `<!DOCTYPE html>
<html>
<head><title>replaybox - Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 20vh">
<h1>Authorization complete</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>
`

// callback exchanges the authorization code once and hands the token over.
type callback struct {
	auth   *spotifyauth.Authenticator
	state  string
	tokens chan<- *oauth2.Token
}

func (c *callback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if st := r.FormValue("state"); st != c.state {
		http.Error(w, "State mismatch", http.StatusForbidden)
		zlog.Warn().Msgf("State mismatch: %q", st)
		return
	}
	token, err := c.auth.Token(r.Context(), c.state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		zlog.Error().Msgf("Failed to get token: %v", err)
		return
	}
	fmt.Fprint(w, successPage)

	select {
	case c.tokens <- token:
	default:
	}
}

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	token, err := authorize()
	if err != nil {
		zlog.Error().Msgf("Authorization failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("Refresh Token:")
	fmt.Println(token.RefreshToken)
	fmt.Println("")
	fmt.Println("Add this to your config file:")
	fmt.Println("")
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: %q\n", token.RefreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=%q\n", token.RefreshToken)
}

func authorize() (*oauth2.Token, error) {
	// Catalog lookups need no user scopes; reading recent plays does.
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(fmt.Sprintf("http://127.0.0.1:%d/callback", *port)),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(spotifyauth.ScopeUserReadRecentlyPlayed),
	)

	tokens := make(chan *oauth2.Token, 1)
	cb := &callback{auth: auth, state: uuid.NewString(), tokens: tokens}

	mux := http.NewServeMux()
	mux.Handle("/callback", cb)
	server := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", *port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zlog.Warn().Msgf("Failed to shutdown callback server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize replaybox:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(cb.state))
	fmt.Println("")
	zlog.Info().Msg("Waiting for authorization...")

	select {
	case token := <-tokens:
		return token, nil
	case err := <-serveErr:
		return nil, errors.Wrap(err, "callback server failed")
	case <-time.After(*timeout):
		return nil, errors.Newf("no callback within %s", *timeout)
	}
}
