package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient wires a Client and its Exchanger to the given API mux. The
// mux gets a working token endpoint registered automatically.
func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	t.Helper()

	var tokenCount atomic.Int32
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		n := tokenCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		// A different credential per exchange: credentials must never
		// leak into normalized output.
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, n)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	exchanger := NewExchanger("id", "secret", "refresh",
		WithTokenURL(server.URL+"/api/token"))
	client := NewClient(exchanger, WithBaseURL(server.URL))

	return client, server
}

func TestTracks_RecentNormalization(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %q, want 10", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"items": [
				{
					"played_at": "2024-01-15T10:30:00Z",
					"track": {
						"id": "track1",
						"name": "Full Track",
						"artists": [{"name": "Artist A"}, {"name": "Artist B"}],
						"album": {"name": "Some Album", "images": [{"url": "https://img/1"}]},
						"preview_url": "https://preview/1",
						"external_urls": {"spotify": "https://open.spotify.com/track/track1"}
					}
				},
				{
					"played_at": "not-a-timestamp",
					"track": {"id": "track2", "name": "Bare Track"}
				}
			]
		}`)
	})

	client, _ := newTestClient(t, mux)

	tracks, err := client.Tracks(context.Background(), ModeRecent)
	if err != nil {
		t.Fatalf("Tracks() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("Tracks() returned %d tracks, want 2", len(tracks))
	}

	full := tracks[0]
	if full.Artist != "Artist A, Artist B" {
		t.Errorf("Artist = %q, want joined list", full.Artist)
	}
	if full.Album != "Some Album" || full.Image != "https://img/1" {
		t.Errorf("Album/Image = %q/%q, want Some Album/https://img/1", full.Album, full.Image)
	}
	if full.URL != "https://open.spotify.com/track/track1" {
		t.Errorf("URL = %q", full.URL)
	}
	wantPlayed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if full.PlayedAt == nil || !full.PlayedAt.Equal(wantPlayed) {
		t.Errorf("PlayedAt = %v, want %v", full.PlayedAt, wantPlayed)
	}

	// Absent optional fields become empty values, never an error.
	bare := tracks[1]
	if bare.Artist != "" || bare.Album != "" || bare.Image != "" || bare.URL != "" || bare.PreviewURL != "" {
		t.Errorf("bare track has defaulted fields: %+v", bare)
	}
	if bare.PlayedAt != nil {
		t.Errorf("PlayedAt = %v for malformed timestamp, want nil", bare.PlayedAt)
	}
}

func TestTracks_TopMode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/top/tracks", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("time_range"); got != "medium_term" {
			t.Errorf("time_range = %q, want medium_term", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": [{"id": "top1", "name": "Top Track", "artists": [{"name": "Solo"}]}]}`)
	})

	client, _ := newTestClient(t, mux)

	tracks, err := client.Tracks(context.Background(), ModeTop)
	if err != nil {
		t.Fatalf("Tracks() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Tracks() returned %d tracks, want 1", len(tracks))
	}
	if tracks[0].PlayedAt != nil {
		t.Errorf("PlayedAt = %v for top mode, want nil", tracks[0].PlayedAt)
	}
}

func TestTracks_FallbackWhenRecentEmpty(t *testing.T) {
	var topCount atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": []}`)
	})
	mux.HandleFunc("/me/top/tracks", func(w http.ResponseWriter, r *http.Request) {
		topCount.Add(1)
		if got := r.URL.Query().Get("time_range"); got != "short_term" {
			t.Errorf("fallback time_range = %q, want short_term", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": [{"id": "fb1", "name": "Fallback", "artists": [{"name": "New Account"}]}]}`)
	})

	client, _ := newTestClient(t, mux)

	tracks, err := client.Tracks(context.Background(), ModeRecent)
	if err != nil {
		t.Fatalf("Tracks() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Tracks() returned %d tracks, want 1 fallback track", len(tracks))
	}
	if tracks[0].PlayedAt != nil {
		t.Errorf("PlayedAt = %v for fallback-origin record, want nil", tracks[0].PlayedAt)
	}
	if count := topCount.Load(); count != 1 {
		t.Errorf("fallback queried %d times, want 1", count)
	}
}

func TestTracks_FallbackAlsoEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	})
	mux.HandleFunc("/me/top/tracks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	})

	client, _ := newTestClient(t, mux)

	tracks, err := client.Tracks(context.Background(), ModeRecent)
	if err != nil {
		t.Fatalf("Tracks() error = %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("Tracks() returned %d tracks, want 0", len(tracks))
	}
}

func TestTracks_ExchangeFailureShortCircuits(t *testing.T) {
	var apiCount atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		apiCount.Add(1)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	exchanger := NewExchanger("id", "secret", "refresh",
		WithTokenURL(server.URL+"/api/token"))
	client := NewClient(exchanger, WithBaseURL(server.URL))

	_, err := client.Tracks(context.Background(), ModeRecent)
	if err == nil {
		t.Fatal("Tracks() error = nil, want exchange failure")
	}
	if want := "token_refresh_failed: invalid_grant"; err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
	if count := apiCount.Load(); count != 0 {
		t.Errorf("API queried %d times after failed exchange, want 0", count)
	}
}

func TestTracks_UpstreamFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, mux)

	if _, err := client.Tracks(context.Background(), ModeRecent); err == nil {
		t.Fatal("Tracks() error = nil, want upstream failure")
	}
}

func TestTracks_Idempotence(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"items": [{
				"played_at": "2024-03-01T00:00:00Z",
				"track": {"id": "t1", "name": "Same Song", "artists": [{"name": "Same Artist"}]}
			}]
		}`)
	})

	client, _ := newTestClient(t, mux)

	first, err := client.Tracks(context.Background(), ModeRecent)
	if err != nil {
		t.Fatalf("first Tracks() error = %v", err)
	}
	second, err := client.Tracks(context.Background(), ModeRecent)
	if err != nil {
		t.Fatalf("second Tracks() error = %v", err)
	}

	// The access credential differs between calls (see newTestClient) but
	// is not part of the normalized output.
	if !reflect.DeepEqual(first, second) {
		t.Errorf("consecutive results differ:\n%+v\n%+v", first, second)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"recent", ModeRecent},
		{"top", ModeTop},
		{"", ModeRecent},
		{"garbage", ModeRecent},
	}

	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
