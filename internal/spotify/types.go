package spotify

import "time"

// Track is the normalized record rendered by the listening widget.
// Optional metadata is omitted from the JSON when the upstream item lacks
// it; PlayedAt is null for anything that did not come from the
// recently-played history (top tracks and the empty-history fallback).
type Track struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Artist     string     `json:"artist"`
	Album      string     `json:"album,omitempty"`
	Image      string     `json:"image,omitempty"`
	URL        string     `json:"url,omitempty"`
	PreviewURL string     `json:"preview_url,omitempty"`
	PlayedAt   *time.Time `json:"played_at"`
}

// Spotify Web API response shapes, reduced to the fields the widget uses.
// See https://developer.spotify.com/documentation/web-api/reference/

type apiImage struct {
	URL string `json:"url"`
}

type apiAlbum struct {
	Name   string     `json:"name"`
	Images []apiImage `json:"images"`
}

type apiArtist struct {
	Name string `json:"name"`
}

type apiTrack struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Artists      []apiArtist       `json:"artists"`
	Album        *apiAlbum         `json:"album"`
	PreviewURL   string            `json:"preview_url"`
	ExternalURLs map[string]string `json:"external_urls"`
}

type recentlyPlayedItem struct {
	Track    apiTrack `json:"track"`
	PlayedAt string   `json:"played_at"`
}

type recentlyPlayedPage struct {
	Items []recentlyPlayedItem `json:"items"`
}

type topTracksPage struct {
	Items []apiTrack `json:"items"`
}
