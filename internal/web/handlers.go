package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/dtommyhil/tommyhil-portfolio/internal/config"
	"github.com/dtommyhil/tommyhil-portfolio/internal/db"
	"github.com/dtommyhil/tommyhil-portfolio/internal/spotify"
)

const (
	stateCookieName   = "spotify_auth_state"
	stateCookieMaxAge = 600 // 10 minutes
)

// TrackSource fetches normalized tracks for the listening widget.
type TrackSource interface {
	Tracks(ctx context.Context, mode spotify.Mode) ([]spotify.Track, error)
}

// QuestionNotifier notifies the site owner about a new question.
type QuestionNotifier interface {
	QuestionReceived(ctx context.Context, question *db.Question) error
}

// HandlersConfig holds the collaborators for NewHandlers.
type HandlersConfig struct {
	Config    *config.Config
	Flow      *spotify.Flow
	Tracks    TrackSource
	Database  *db.DB
	Notifier  QuestionNotifier
	Templates *Templates
	Logger    *log.Logger
}

// Handlers contains HTTP handlers for the portfolio site.
type Handlers struct {
	cfg       *config.Config
	flow      *spotify.Flow
	tracks    TrackSource
	database  *db.DB
	notifier  QuestionNotifier
	templates *Templates
	logger    *log.Logger
	validate  *validator.Validate
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{
		cfg:       cfg.Config,
		flow:      cfg.Flow,
		tracks:    cfg.Tracks,
		database:  cfg.Database,
		notifier:  cfg.Notifier,
		templates: cfg.Templates,
		logger:    cfg.Logger,
		validate:  validator.New(),
	}
}

// ============================================================================
// Pages
// ============================================================================

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := HomePageData{
		PageData: PageData{
			Title:       "Tommyhil",
			CurrentPath: r.URL.Path,
		},
		SpotifyStatus: r.URL.Query().Get("spotify"),
		SpotifyReason: r.URL.Query().Get("reason"),
	}

	h.renderPage(w, "home", data)
}

// About handles the about page (GET /about).
func (h *Handlers) About(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:       "About",
		CurrentPath: r.URL.Path,
	}

	h.renderPage(w, "about", data)
}

// Contact handles the contact page (GET /contact), showing the ask form and
// published Q&A entries.
func (h *Handlers) Contact(w http.ResponseWriter, r *http.Request) {
	data := QAPageData{
		PageData: PageData{
			Title:       "Contact",
			CurrentPath: r.URL.Path,
		},
	}

	if h.database != nil {
		questions, err := h.database.Questions().List(r.Context(), true)
		if err != nil {
			h.logger.Error("listing published questions", "err", err)
		} else {
			data.Questions = questions
			data.DatastoreOK = true
		}
	}

	h.renderPage(w, "contact", data)
}

// Admin handles the admin page (GET /admin), showing every question with a
// reply form. Reached only through the Basic auth gate.
func (h *Handlers) Admin(w http.ResponseWriter, r *http.Request) {
	data := QAPageData{
		PageData: PageData{
			Title:       "Admin",
			CurrentPath: r.URL.Path,
		},
		AdminUser: AdminUser(r.Context()),
	}

	if h.database != nil {
		questions, err := h.database.Questions().List(r.Context(), false)
		if err != nil {
			h.logger.Error("listing questions", "err", err)
		} else {
			data.Questions = questions
			data.DatastoreOK = true
		}
	}

	h.renderPage(w, "admin", data)
}

func (h *Handlers) renderPage(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, page, data); err != nil {
		h.logger.Error("rendering template", "page", page, "err", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// ============================================================================
// Spotify authorization flow
// ============================================================================

// Authorize initiates the Spotify consent flow (GET /authorize).
func (h *Handlers) Authorize(w http.ResponseWriter, r *http.Request) {
	state, err := spotify.GenerateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	// One-time anti-forgery token, validated and consumed on callback.
	// Secure only over TLS or in production so plain-HTTP local
	// development keeps working.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateCookieMaxAge,
		Secure:   spotify.RequestIsSecure(r) || h.cfg.Production(),
	})

	consentURL := h.flow.AuthCodeURL(state, h.flow.RedirectURI(r))
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// Callback completes the consent flow (GET /callback). It always redirects
// to the home page with a spotify status parameter and clears the state
// cookie; nothing here surfaces as an error page. The refresh token from a
// successful exchange is logged for the operator to provision manually and
// is never sent to the browser.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	var cookieState string
	if cookie, err := r.Cookie(stateCookieName); err == nil {
		cookieState = cookie.Value
	}

	// The state token is one-time use: clear it on every terminal branch.
	h.clearStateCookie(w, r)

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithStatus(w, r, "missing_code", r.URL.Query().Get("error"))
		return
	}

	state := r.URL.Query().Get("state")
	if cookieState == "" || state != cookieState {
		h.redirectWithStatus(w, r, "state_error", "")
		return
	}

	token, err := h.flow.Exchange(r.Context(), code, h.flow.RedirectURI(r))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			reason := retrieveErr.ErrorCode
			if reason == "" && retrieveErr.Response != nil {
				reason = http.StatusText(retrieveErr.Response.StatusCode)
			}
			h.redirectWithStatus(w, r, "exchange_error", reason)
			return
		}
		h.redirectWithStatus(w, r, "callback_exception", err.Error())
		return
	}

	if token.RefreshToken != "" {
		h.logger.Warn("authorization complete; set SPOTIFY_REFRESH_TOKEN to the logged value and restart",
			"refresh_token", token.RefreshToken)
	} else {
		h.logger.Warn("authorization complete but the token response carried no refresh token")
	}

	h.redirectWithStatus(w, r, "connected", "")
}

func (h *Handlers) clearStateCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Secure:   spotify.RequestIsSecure(r) || h.cfg.Production(),
	})
}

func (h *Handlers) redirectWithStatus(w http.ResponseWriter, r *http.Request, status, reason string) {
	query := url.Values{"spotify": {status}}
	if reason != "" {
		query.Set("reason", reason)
	}
	http.Redirect(w, r, "/?"+query.Encode(), http.StatusFound)
}

// ============================================================================
// Listening widget
// ============================================================================

type tracksResponse struct {
	Tracks []spotify.Track `json:"tracks"`
	Error  string          `json:"error,omitempty"`
	Note   string          `json:"note,omitempty"`
}

// tracksFailureNote tells the operator what to check when a fetch fails.
const tracksFailureNote = "Check the Spotify configuration via /health, or re-run the authorization flow at /authorize to mint a new refresh token."

// Tracks serves the listening widget data (GET /tracks?type=recent|top).
//
// Failures still answer 200 with an empty list and an embedded error so the
// widget renders an empty state instead of breaking the page. Deliberate
// trade-off: this hides upstream failures from HTTP-level monitoring.
func (h *Handlers) Tracks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	mode := spotify.ParseMode(r.URL.Query().Get("type"))

	tracks, err := h.tracks.Tracks(r.Context(), mode)
	if err != nil {
		h.logger.Error("fetching tracks", "mode", mode, "err", err)
		writeJSON(w, http.StatusOK, tracksResponse{
			Tracks: []spotify.Track{},
			Error:  err.Error(),
			Note:   tracksFailureNote,
		})
		return
	}

	if tracks == nil {
		tracks = []spotify.Track{}
	}
	writeJSON(w, http.StatusOK, tracksResponse{Tracks: tracks})
}

// healthResponse reports which configuration values are present. It never
// carries the values themselves.
type healthResponse struct {
	HasClientID     bool    `json:"hasClientId"`
	HasClientSecret bool    `json:"hasClientSecret"`
	HasRefreshToken bool    `json:"hasRefreshToken"`
	RedirectBase    *string `json:"redirectBase"`
}

// Health serves operational diagnostics (GET /health).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	resp := healthResponse{
		HasClientID:     h.cfg.SpotifyClientID != "",
		HasClientSecret: h.cfg.SpotifyClientSecret != "",
		HasRefreshToken: h.cfg.SpotifyRefreshToken != "",
	}
	if h.cfg.SpotifyRedirectBase != "" {
		resp.RedirectBase = &h.cfg.SpotifyRedirectBase
	}

	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// Q&A
// ============================================================================

type askRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=80"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
}

type okResponse struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Ask accepts a visitor question (POST /ask).
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	if h.database == nil {
		writeJSON(w, http.StatusServiceUnavailable, okResponse{Error: "datastore_unavailable"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, okResponse{Error: "invalid_input"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, okResponse{Error: "invalid_input"})
		return
	}

	question := &db.Question{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	}
	if err := h.database.Questions().Create(r.Context(), question); err != nil {
		h.logger.Error("creating question", "err", err)
		writeJSON(w, http.StatusInternalServerError, okResponse{Error: "insert_failed"})
		return
	}

	// Notification is best effort; a lost email never fails the submission.
	if h.notifier != nil {
		if err := h.notifier.QuestionReceived(r.Context(), question); err != nil {
			h.logger.Warn("question notification failed", "err", err)
		}
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true, ID: question.ID.String()})
}

// Reply records the owner's answer to a question (POST /admin/reply).
// Accepts JSON or an HTML form; form submissions are redirected back to the
// admin page. Answers are published immediately.
func (h *Handlers) Reply(w http.ResponseWriter, r *http.Request) {
	if h.database == nil {
		writeJSON(w, http.StatusServiceUnavailable, okResponse{Error: "datastore_unavailable"})
		return
	}

	var questionID, text string
	isForm := false

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			QuestionID string `json:"question_id"`
			Text       string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, okResponse{Error: "invalid_input"})
			return
		}
		questionID, text = req.QuestionID, req.Text
	} else {
		isForm = true
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, okResponse{Error: "invalid_input"})
			return
		}
		questionID = r.PostFormValue("question_id")
		text = r.PostFormValue("text")
	}

	if questionID == "" || strings.TrimSpace(text) == "" {
		writeJSON(w, http.StatusBadRequest, okResponse{Error: "missing_inputs"})
		return
	}

	id, err := uuid.Parse(questionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, okResponse{Error: "invalid_question_id"})
		return
	}

	answer := &db.Answer{
		QuestionID: id,
		Text:       text,
		Published:  true,
	}
	if err := h.database.Answers().Upsert(r.Context(), answer); err != nil {
		h.logger.Error("upserting answer", "question_id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, okResponse{Error: "upsert_failed"})
		return
	}

	if isForm {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// writeJSON encodes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
