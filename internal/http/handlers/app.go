// Package handlers implements the HTTP surface of the suite. Handlers
// validate input, enforce per-user ownership and translate domain errors to
// status codes; all real work happens in the repositories, providers and the
// task runner injected into App.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"ritasuite/internal/domain"
	"ritasuite/internal/infra"
	"ritasuite/internal/middleware"
	"ritasuite/internal/providers/gemini"
	"ritasuite/internal/providers/tiktok"
	"ritasuite/internal/scrape"
	"ritasuite/internal/storage"
	"ritasuite/internal/tasks"
)

// ChatProvider produces assistant replies for chat conversations.
type ChatProvider interface {
	Chat(ctx context.Context, req gemini.ChatRequest) (string, error)
}

// Transcriber turns a remote audio file into text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audioURL string) (string, error)
}

// Enqueuer schedules background units without blocking.
type Enqueuer interface {
	Enqueue(kind tasks.Kind, taskID string) error
}

// App bundles the dependencies shared by all handlers.
type App struct {
	Cfg    *infra.Config
	Logger infra.Logger

	Videos   domain.VideoTaskRepository
	Scrapes  domain.ScrapeTaskRepository
	Chats    domain.ChatRepository
	Trackers domain.TrackerRepository

	TikTok      tiktok.InfoFetcher
	Assistant   ChatProvider
	Transcriber Transcriber
	Runner      Enqueuer
	Store       storage.Store
	Pricing     scrape.Pricing

	Country middleware.CountryLookup
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error":   code,
		"message": message,
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// decode parses a JSON request body into dst.
func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
