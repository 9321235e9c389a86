// Package httpapi assembles the chi router: middleware chain, public
// endpoints and the authenticated API groups.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ritasuite/internal/http/handlers"
	"ritasuite/internal/middleware"
)

// NewRouter wires the full HTTP surface around the handler App.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Cfg.AllowedOrigins),
		middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Public tracker surface: the redirect hop and the location ping.
	r.Get("/t/{trackingID}", app.TrackRedirect)
	r.Post("/api/track/location", app.TrackLocation)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Cfg.JWTSecret))

		r.Route("/api/chat", func(r chi.Router) {
			r.Post("/", app.ChatSend)
			r.Get("/history", app.ChatHistory)
			r.Post("/refresh", app.ChatClear)
		})

		r.Route("/api/tiktok", func(r chi.Router) {
			r.Post("/submit", app.TikTokSubmit)
			r.Get("/status", app.TikTokStatus)
			r.Get("/history", app.TikTokHistory)
			r.Post("/history/delete", app.TikTokHistoryDelete)
		})

		r.Route("/api/scraper", func(r chi.Router) {
			r.Post("/start", app.ScraperStart)
			r.Get("/status/{id}", app.ScraperStatus)
			r.Get("/history", app.ScraperHistory)
			r.Post("/history/delete", app.ScraperHistoryDelete)
			r.Get("/download/{id}/{kind}", app.ScraperDownload)
		})

		r.Route("/api/tracker/links", func(r chi.Router) {
			r.Post("/", app.TrackerCreateLink)
			r.Get("/", app.TrackerListLinks)
			r.Post("/{id}/delete", app.TrackerDeleteLink)
		})
	})

	return r
}
