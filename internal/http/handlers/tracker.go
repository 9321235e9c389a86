package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ritasuite/internal/domain"
	"ritasuite/internal/middleware"
)

type trackerCreateRequest struct {
	URL            string `json:"url"`
	RequireConsent bool   `json:"require_consent"`
}

// TrackerCreateLink mints a tracking link with a short public id.
func (a *App) TrackerCreateLink(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req trackerCreateRequest
	if err := decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !validHTTPURL(req.URL) {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid url is required")
		return
	}

	link := &domain.TrackingLink{
		ID:             uuid.NewString(),
		UserID:         userID,
		OriginalURL:    strings.TrimSpace(req.URL),
		TrackingID:     strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		RequireConsent: req.RequireConsent,
	}
	if err := a.Trackers.CreateLink(r.Context(), link); err != nil {
		a.Logger.Error().Err(err).Msg("tracking link create failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not create the link")
		return
	}
	a.json(w, http.StatusCreated, trackingLinkJSON(link, nil))
}

// TrackerListLinks returns the caller's links together with their recorded
// locations.
func (a *App) TrackerListLinks(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	links, err := a.Trackers.ListLinksByUser(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("tracking link listing failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load links")
		return
	}

	items := make([]map[string]any, 0, len(links))
	for i := range links {
		logs, err := a.Trackers.ListLogs(r.Context(), links[i].ID)
		if err != nil {
			a.Logger.Error().Err(err).Str("link_id", links[i].ID).Msg("location log listing failed")
			a.error(w, http.StatusInternalServerError, "internal", "could not load links")
			return
		}
		items = append(items, trackingLinkJSON(&links[i], logs))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// TrackerDeleteLink removes one of the caller's links; its logs cascade.
func (a *App) TrackerDeleteLink(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.Trackers.DeleteLink(r.Context(), userID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "link not found")
			return
		}
		a.Logger.Error().Err(err).Str("link_id", id).Msg("tracking link delete failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not delete the link")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"deleted": true})
}

// TrackRedirect is the public hop: it resolves the short id and forwards the
// visitor to the original URL.
func (a *App) TrackRedirect(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")
	link, err := a.Trackers.GetLinkByTrackingID(r.Context(), trackingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		a.Logger.Error().Err(err).Str("tracking_id", trackingID).Msg("tracking link lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

type trackLocationRequest struct {
	TrackingID string  `json:"tracking_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// TrackLocation is the public ping endpoint: it records coordinates reported
// by a visitor's browser, enriched with the caller's GeoIP country.
func (a *App) TrackLocation(w http.ResponseWriter, r *http.Request) {
	var req trackLocationRequest
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.TrackingID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "tracking_id is required")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		a.error(w, http.StatusBadRequest, "bad_request", "coordinates are out of range")
		return
	}

	link, err := a.Trackers.GetLinkByTrackingID(r.Context(), strings.TrimSpace(req.TrackingID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "link not found")
			return
		}
		a.Logger.Error().Err(err).Msg("tracking link lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not record the location")
		return
	}

	log := &domain.LocationLog{
		LinkID:    link.ID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Country:   middleware.ResolveCountry(r, a.Country),
	}
	if err := a.Trackers.AddLog(r.Context(), log); err != nil {
		a.Logger.Error().Err(err).Str("link_id", link.ID).Msg("location log insert failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not record the location")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"recorded": true})
}

func trackingLinkJSON(link *domain.TrackingLink, logs []domain.LocationLog) map[string]any {
	logItems := make([]map[string]any, 0, len(logs))
	for _, l := range logs {
		logItems = append(logItems, map[string]any{
			"latitude":   l.Latitude,
			"longitude":  l.Longitude,
			"country":    l.Country,
			"created_at": l.CreatedAt,
		})
	}
	return map[string]any{
		"id":              link.ID,
		"url":             link.OriginalURL,
		"tracking_id":     link.TrackingID,
		"require_consent": link.RequireConsent,
		"created_at":      link.CreatedAt,
		"logs":            logItems,
		"log_count":       len(logItems),
	}
}
