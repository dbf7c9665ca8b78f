// Package spotify implements the Spotify integration for the listening
// widget: the refresh-grant token exchanger, the redirect-based
// authorization flow, and the track fetcher/normalizer.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// ErrNotConfigured is returned when a required Spotify credential is not
// provisioned. No network call is made in that case.
var ErrNotConfigured = errors.New("spotify credentials not configured")

// ExchangeError reports a failed token exchange against the authorization
// server. Reason is the upstream OAuth error code when the server supplied
// one, otherwise the HTTP status text.
type ExchangeError struct {
	Reason string
}

func (e *ExchangeError) Error() string {
	return "token_refresh_failed: " + e.Reason
}

// Exchanger trades the long-lived refresh token for a short-lived access
// token. Access tokens are never cached: every call re-exchanges so the
// widget always observes the current credential state.
type Exchanger struct {
	clientID     string
	clientSecret string
	refreshToken string
	endpoint     oauth2.Endpoint
	httpClient   *http.Client
}

// ExchangerOption customizes an Exchanger.
type ExchangerOption func(*Exchanger)

// WithTokenURL overrides the token endpoint. Used by tests.
func WithTokenURL(u string) ExchangerOption {
	return func(e *Exchanger) { e.endpoint.TokenURL = u }
}

// WithExchangerHTTPClient overrides the HTTP client used for the exchange.
func WithExchangerHTTPClient(c *http.Client) ExchangerOption {
	return func(e *Exchanger) { e.httpClient = c }
}

// NewExchanger creates an Exchanger for the given client identity and
// refresh token. Missing values are allowed here and reported by Exchange.
func NewExchanger(clientID, clientSecret, refreshToken string, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		endpoint: oauth2.Endpoint{
			AuthURL:   spotifyauth.AuthURL,
			TokenURL:  spotifyauth.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange performs the refresh grant and returns a fresh access token.
// The request authenticates with HTTP Basic (client_id:client_secret) and a
// form body of grant_type=refresh_token. Failures are returned as
// ErrNotConfigured or *ExchangeError; there are no retries.
func (e *Exchanger) Exchange(ctx context.Context) (string, error) {
	var missing []string
	if e.clientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if e.clientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if e.refreshToken == "" {
		missing = append(missing, "SPOTIFY_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}

	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}

	conf := &oauth2.Config{
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
		Endpoint:     e.endpoint,
	}

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: e.refreshToken}).Token()
	if err != nil {
		return "", &ExchangeError{Reason: exchangeReason(err)}
	}
	if token.AccessToken == "" {
		return "", &ExchangeError{Reason: "empty access token"}
	}

	return token.AccessToken, nil
}

// exchangeReason extracts a short diagnostic from an oauth2 failure.
func exchangeReason(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode != "" {
			return retrieveErr.ErrorCode
		}
		if retrieveErr.Response != nil {
			return http.StatusText(retrieveErr.Response.StatusCode)
		}
	}
	return err.Error()
}
