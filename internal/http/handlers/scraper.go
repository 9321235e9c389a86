package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ritasuite/internal/domain"
	"ritasuite/internal/scrape"
	"ritasuite/internal/tasks"
	"ritasuite/pkg/zip"
)

type scrapeStartRequest struct {
	URL    string `json:"url"`
	Fields string `json:"fields"`
	Model  string `json:"model"`
}

// ScraperStart validates a scrape request, persists it as PENDING and
// schedules the background unit. All validation happens before any write, so
// a rejected request leaves no record behind.
func (a *App) ScraperStart(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req scrapeStartRequest
	if err := decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !validHTTPURL(req.URL) {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid url is required")
		return
	}

	task := &domain.ScrapeTask{
		ID:     uuid.NewString(),
		UserID: userID,
		URL:    strings.TrimSpace(req.URL),
		Fields: req.Fields,
		Model:  strings.TrimSpace(req.Model),
		Status: domain.StatusPending,
	}
	if task.Model == "" {
		task.Model = a.Cfg.GeminiModel
	}
	if _, err := scrape.NewListingSchema(task.FieldList()); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one field to extract is required")
		return
	}
	if !a.Pricing.Supports(task.Model) {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("model %q is not supported", task.Model))
		return
	}

	if err := a.Scrapes.Create(r.Context(), task); err != nil {
		a.Logger.Error().Err(err).Msg("scrape task create failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not save the task")
		return
	}

	if err := a.Runner.Enqueue(tasks.KindScrape, task.ID); err != nil {
		if err := a.Scrapes.Fail(r.Context(), task.ID, "server is busy, please try again later"); err != nil {
			a.Logger.Error().Err(err).Str("task_id", task.ID).Msg("could not fail scrape task after full queue")
		}
		a.error(w, http.StatusServiceUnavailable, "busy", "server is busy, please try again later")
		return
	}

	a.json(w, http.StatusAccepted, map[string]any{
		"id":     task.ID,
		"status": string(task.Status),
	})
}

// ScraperStatus returns the current state of one of the caller's tasks.
func (a *App) ScraperStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	task, err := a.Scrapes.GetForUser(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", id).Msg("scrape task lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load the task")
		return
	}
	a.json(w, http.StatusOK, scrapeTaskJSON(task))
}

// ScraperHistory lists the caller's scrape tasks, newest first.
func (a *App) ScraperHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	items, err := a.Scrapes.ListByUser(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("scrape history listing failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load history")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, scrapeTaskJSON(&items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

type scrapeDeleteRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

// ScraperHistoryDelete removes the caller's selected (or all) tasks along
// with their stored artifacts.
func (a *App) ScraperHistoryDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req scrapeDeleteRequest
	if err := decode(r, &req); err != nil || (!req.All && len(req.IDs) == 0) {
		a.error(w, http.StatusBadRequest, "bad_request", "ids or all are required")
		return
	}

	var keys []string
	var err error
	if req.All {
		keys, err = a.Scrapes.DeleteAllForUser(r.Context(), userID)
	} else {
		keys, err = a.Scrapes.DeleteByIDs(r.Context(), userID, req.IDs)
	}
	if err != nil {
		a.Logger.Error().Err(err).Msg("scrape history delete failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not delete tasks")
		return
	}

	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := a.Store.Delete(r.Context(), key); err != nil {
			a.Logger.Error().Err(err).Str("key", key).Msg("could not delete artifact")
		}
	}
	a.json(w, http.StatusOK, map[string]any{"deleted": len(keys)})
}

// ScraperDownload streams a completed task's result artifact. Supported kinds
// are "json", "csv" and "bundle" (both files zipped together).
func (a *App) ScraperDownload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	kind := chi.URLParam(r, "kind")

	task, err := a.Scrapes.GetForUser(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", id).Msg("scrape task lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load the task")
		return
	}
	if task.Status != domain.StatusComplete {
		a.error(w, http.StatusNotFound, "not_found", "task has no results yet")
		return
	}

	switch kind {
	case "json":
		a.streamArtifact(w, r, task.JSONKey, "application/json", fmt.Sprintf("scrape_result_%s.json", task.ID))
	case "csv":
		a.streamArtifact(w, r, task.CSVKey, "text/csv", fmt.Sprintf("scrape_result_%s.csv", task.ID))
	case "bundle":
		a.streamBundle(w, r, task)
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "kind must be json, csv or bundle")
	}
}

func (a *App) streamArtifact(w http.ResponseWriter, r *http.Request, key, contentType, filename string) {
	if key == "" {
		a.error(w, http.StatusNotFound, "not_found", "artifact not found")
		return
	}
	rc, err := a.Store.Open(r.Context(), key)
	if err != nil {
		a.Logger.Error().Err(err).Str("key", key).Msg("artifact open failed")
		a.error(w, http.StatusNotFound, "not_found", "artifact not found")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, rc); err != nil {
		a.Logger.Error().Err(err).Str("key", key).Msg("artifact stream interrupted")
	}
}

func (a *App) streamBundle(w http.ResponseWriter, r *http.Request, task *domain.ScrapeTask) {
	var entries []zip.Entry
	for _, artifact := range []struct {
		key  string
		name string
	}{
		{task.JSONKey, fmt.Sprintf("scrape_result_%s.json", task.ID)},
		{task.CSVKey, fmt.Sprintf("scrape_result_%s.csv", task.ID)},
	} {
		if artifact.key == "" {
			continue
		}
		rc, err := a.Store.Open(r.Context(), artifact.key)
		if err != nil {
			a.Logger.Error().Err(err).Str("key", artifact.key).Msg("artifact open failed")
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			a.Logger.Error().Err(err).Str("key", artifact.key).Msg("artifact read failed")
			continue
		}
		entries = append(entries, zip.Entry{Name: artifact.name, Data: data})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "artifacts not found")
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("task_id", task.ID).Msg("bundle archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not build the bundle")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("scrape_result_%s.zip", task.ID)))
	_, _ = w.Write(archive)
}

func scrapeTaskJSON(t *domain.ScrapeTask) map[string]any {
	out := map[string]any{
		"id":         t.ID,
		"url":        t.URL,
		"fields":     t.FieldList(),
		"model":      t.Model,
		"status":     string(t.Status),
		"created_at": t.CreatedAt,
	}
	if t.CompletedAt != nil {
		out["completed_at"] = t.CompletedAt
	}
	if t.Status == domain.StatusComplete {
		out["usage"] = map[string]any{
			"input_tokens":  t.InputTokens,
			"output_tokens": t.OutputTokens,
			"total_cost":    t.TotalCost,
		}
		out["downloads"] = map[string]bool{
			"json": t.JSONKey != "",
			"csv":  t.CSVKey != "",
		}
	}
	if t.Status == domain.StatusFailed {
		out["error"] = t.ErrorMessage
	}
	return out
}
