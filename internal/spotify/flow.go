package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// CallbackPath is the route the authorization server redirects back to.
// It must match the redirect URI registered with the Spotify app.
const CallbackPath = "/callback"

// Scopes requested during authorization: enough for the listening widget,
// nothing more.
var Scopes = []string{
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserTopRead,
}

// Flow drives the redirect-based authorization code flow used to mint the
// refresh token. The resulting token is surfaced to the operator only; it
// is never persisted or sent to the browser.
type Flow struct {
	clientID     string
	clientSecret string
	redirectBase string
	endpoint     oauth2.Endpoint
	httpClient   *http.Client
}

// FlowOption customizes a Flow.
type FlowOption func(*Flow)

// WithEndpoint overrides the authorization server endpoints. Used by tests.
func WithEndpoint(ep oauth2.Endpoint) FlowOption {
	return func(f *Flow) { f.endpoint = ep }
}

// WithFlowHTTPClient overrides the HTTP client used for the code exchange.
func WithFlowHTTPClient(c *http.Client) FlowOption {
	return func(f *Flow) { f.httpClient = c }
}

// NewFlow creates a Flow. redirectBase optionally overrides the origin used
// for the callback URL (needed behind proxies whose Host header differs
// from the registered redirect URI).
func NewFlow(clientID, clientSecret, redirectBase string, opts ...FlowOption) *Flow {
	f := &Flow{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectBase: redirectBase,
		endpoint: oauth2.Endpoint{
			AuthURL:   spotifyauth.AuthURL,
			TokenURL:  spotifyauth.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GenerateState creates the random anti-forgery token for one authorization
// attempt: 16 bytes, hex-encoded.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RedirectURI computes the exact callback URL for the incoming request.
// A configured redirect base wins, with its path normalized to
// CallbackPath; otherwise the origin is derived from the request itself.
func (f *Flow) RedirectURI(r *http.Request) string {
	if f.redirectBase != "" {
		if u, err := url.Parse(f.redirectBase); err == nil && u.Host != "" {
			u.Path = CallbackPath
			u.RawQuery = ""
			u.Fragment = ""
			return u.String()
		}
	}

	scheme := "http"
	if RequestIsSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host + CallbackPath
}

// RequestIsSecure reports whether the request arrived over TLS, directly or
// via a forwarding proxy.
func RequestIsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// AuthCodeURL returns the consent URL the browser is redirected to.
func (f *Flow) AuthCodeURL(state, redirectURI string) string {
	conf := f.config(redirectURI)
	return conf.AuthCodeURL(state)
}

// Exchange trades the authorization code returned on callback for a token
// pair. redirectURI must be the same value used for the consent redirect.
func (f *Flow) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}
	return f.config(redirectURI).Exchange(ctx, code)
}

func (f *Flow) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Endpoint:     f.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
	}
}
