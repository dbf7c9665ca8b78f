// Command portfolio runs the personal portfolio web server.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dtommyhil/tommyhil-portfolio/internal/config"
	"github.com/dtommyhil/tommyhil-portfolio/internal/db"
	"github.com/dtommyhil/tommyhil-portfolio/internal/mail"
	"github.com/dtommyhil/tommyhil-portfolio/internal/web"
	webfs "github.com/dtommyhil/tommyhil-portfolio/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cfg := config.Load()
	if missing := cfg.MissingSpotify(); len(missing) > 0 {
		logger.Warn("spotify widget disabled until configured", "missing", strings.Join(missing, ", "))
	}

	// Create sub-filesystems for templates and static files
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	// The Q&A feature degrades to 503s when no datastore is configured;
	// the rest of the site keeps working.
	var database *db.DB
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		database, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := database.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set; Q&A endpoints disabled")
	}

	var notifier web.QuestionNotifier
	if cfg.MailConfigured() {
		notifier = mail.NewNotifier(cfg.ResendAPIKey, cfg.MailFrom, cfg.MailTo)
	} else {
		logger.Warn("RESEND_API_KEY or CONTACT_TO not set; question notifications disabled")
	}

	server, err := web.NewServer(web.ServerConfig{
		Config:      cfg,
		Database:    database,
		Notifier:    notifier,
		Logger:      logger,
		TemplatesFS: templates,
		StaticFS:    static,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}
