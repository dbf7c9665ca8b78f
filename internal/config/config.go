// Package config reads the site configuration from environment variables.
package config

import (
	"os"
	"strings"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultAddr      = ":8080"
	DefaultAdminUser = "admin"
	DefaultMailFrom  = "no-reply@resend.dev"
)

// Config holds all environment-provided settings. Spotify credentials may be
// absent at boot; the token exchanger fails fast when they are needed, and
// /health reports which ones are missing.
type Config struct {
	Addr string
	Env  string // "development" or "production"

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string
	SpotifyRedirectBase string

	AdminUser string
	AdminPass string

	DatabaseURL string

	ResendAPIKey string
	MailTo       string
	MailFrom     string
}

// Load reads the configuration from the environment. It never fails: missing
// secrets degrade the features that need them rather than blocking boot.
func Load() *Config {
	cfg := &Config{
		Addr:                DefaultAddr,
		Env:                 getenvDefault("APP_ENV", "development"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyRefreshToken: os.Getenv("SPOTIFY_REFRESH_TOKEN"),
		SpotifyRedirectBase: os.Getenv("SPOTIFY_REDIRECT_BASE"),
		AdminUser:           getenvDefault("ADMIN_USER", DefaultAdminUser),
		AdminPass:           os.Getenv("ADMIN_PASS"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ResendAPIKey:        os.Getenv("RESEND_API_KEY"),
		MailTo:              os.Getenv("CONTACT_TO"),
		MailFrom:            getenvDefault("CONTACT_FROM", DefaultMailFrom),
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}

	return cfg
}

// Production reports whether the site runs in production deployment mode.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// MissingSpotify lists the Spotify variables that are not set.
func (c *Config) MissingSpotify() []string {
	var missing []string
	if c.SpotifyClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.SpotifyClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if c.SpotifyRefreshToken == "" {
		missing = append(missing, "SPOTIFY_REFRESH_TOKEN")
	}
	return missing
}

// MailConfigured reports whether question notifications can be sent.
func (c *Config) MailConfigured() bool {
	return c.ResendAPIKey != "" && c.MailTo != ""
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
