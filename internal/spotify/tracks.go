package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.spotify.com/v1"
	fetchLimit     = 10
)

// Mode selects which listening data the widget shows.
type Mode string

const (
	// ModeRecent shows the most recently played tracks.
	ModeRecent Mode = "recent"
	// ModeTop shows the top tracks over a medium-term window.
	ModeTop Mode = "top"
)

// ParseMode maps a query-string value to a Mode, defaulting to ModeRecent
// for anything absent or unrecognized.
func ParseMode(s string) Mode {
	if Mode(s) == ModeTop {
		return ModeTop
	}
	return ModeRecent
}

// Client fetches listening data from the Spotify Web API and normalizes it
// into Track records. Every fetch obtains a fresh access token from the
// Exchanger first.
type Client struct {
	exchanger  *Exchanger
	httpClient *http.Client
	baseURL    string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client backed by the given Exchanger.
func NewClient(exchanger *Exchanger, opts ...ClientOption) *Client {
	c := &Client{
		exchanger: exchanger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tracks returns up to 10 normalized tracks for the given mode.
//
// In ModeRecent, an empty listening history falls back to short-term top
// tracks so a freshly authorized account still shows something; fallback
// records carry a null PlayedAt like any other top-shaped result.
func (c *Client) Tracks(ctx context.Context, mode Mode) ([]Track, error) {
	accessToken, err := c.exchanger.Exchange(ctx)
	if err != nil {
		return nil, err
	}

	if mode == ModeTop {
		return c.topTracks(ctx, accessToken, "medium_term")
	}

	recent, err := c.recentTracks(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return c.topTracks(ctx, accessToken, "short_term")
	}
	return recent, nil
}

// recentTracks fetches and normalizes the recently-played history.
func (c *Client) recentTracks(ctx context.Context, accessToken string) ([]Track, error) {
	query := url.Values{"limit": {fmt.Sprint(fetchLimit)}}
	body, err := c.get(ctx, accessToken, "/me/player/recently-played", query)
	if err != nil {
		return nil, err
	}

	var page recentlyPlayedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing recently played response: %w", err)
	}

	tracks := make([]Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, normalizeTrack(item.Track, parsePlayedAt(item.PlayedAt)))
	}
	return tracks, nil
}

// topTracks fetches and normalizes top tracks over the given time range.
func (c *Client) topTracks(ctx context.Context, accessToken, timeRange string) ([]Track, error) {
	query := url.Values{
		"limit":      {fmt.Sprint(fetchLimit)},
		"time_range": {timeRange},
	}
	body, err := c.get(ctx, accessToken, "/me/top/tracks", query)
	if err != nil {
		return nil, err
	}

	var page topTracksPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing top tracks response: %w", err)
	}

	tracks := make([]Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, normalizeTrack(item, nil))
	}
	return tracks, nil
}

// get performs an authenticated API request with caching disabled.
func (c *Client) get(ctx context.Context, accessToken, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("spotify API returned %s for %s", resp.Status, path)
	}

	return body, nil
}

// normalizeTrack maps an upstream track object into the Track record.
// Absent optional fields become empty values, never an error.
func normalizeTrack(t apiTrack, playedAt *time.Time) Track {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}

	track := Track{
		ID:         t.ID,
		Name:       t.Name,
		Artist:     strings.Join(names, ", "),
		PreviewURL: t.PreviewURL,
		URL:        t.ExternalURLs["spotify"],
		PlayedAt:   playedAt,
	}

	if t.Album != nil {
		track.Album = t.Album.Name
		if len(t.Album.Images) > 0 {
			track.Image = t.Album.Images[0].URL
		}
	}

	return track
}

// parsePlayedAt converts the played_at timestamp, returning nil when it is
// missing or malformed.
func parsePlayedAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &ts
}
