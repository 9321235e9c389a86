package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"ritasuite/internal/domain"
	"ritasuite/internal/tasks"
)

type tiktokSubmitRequest struct {
	VideoURL string `json:"video_url"`
	// Older clients send the address under "url"; both keys are accepted.
	URL string `json:"url"`
}

func (r tiktokSubmitRequest) videoURL() string {
	if r.VideoURL != "" {
		return r.VideoURL
	}
	return r.URL
}

// TikTokSubmit accepts a video URL, captures its metadata and transcript
// inline and schedules the analysis in the background. Resubmitting a video
// that was analyzed before reuses its row: the previous result is cleared and
// the task starts over.
func (a *App) TikTokSubmit(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req tiktokSubmitRequest
	if err := decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	videoURL := strings.TrimSpace(req.videoURL())
	if !validHTTPURL(videoURL) {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid video url is required")
		return
	}

	info, err := a.TikTok.VideoInfo(r.Context(), videoURL)
	if err != nil {
		a.Logger.Error().Err(err).Str("url", videoURL).Msg("tiktok metadata fetch failed")
		a.error(w, http.StatusBadGateway, "upstream", "could not fetch video metadata")
		return
	}

	transcript := ""
	if info.MusicURL != "" {
		transcript, err = a.Transcriber.TranscribeAudio(r.Context(), info.MusicURL)
		if err != nil {
			// The analysis degrades gracefully without a transcript.
			a.Logger.Warn().Err(err).Str("video_id", info.VideoID).Msg("transcription failed, continuing without transcript")
			transcript = ""
		}
	}

	task, err := a.Videos.UpsertByVideoID(r.Context(), &domain.VideoTask{
		ID:          uuid.NewString(),
		UserID:      userID,
		VideoID:     info.VideoID,
		VideoURL:    videoURL,
		Author:      info.Author,
		Description: info.Description,
		CoverURL:    info.CoverURL,
		DownloadURL: info.DownloadURL,
		PlayCount:   info.PlayCount,
		Likes:       info.Likes,
		Comments:    info.Comments,
		Shares:      info.Shares,
		Transcript:  transcript,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("video task upsert failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not save the task")
		return
	}

	if err := a.Videos.MarkProcessing(r.Context(), task.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.Logger.Error().Err(err).Str("task_id", task.ID).Msg("could not mark video task processing")
		a.error(w, http.StatusInternalServerError, "internal", "could not schedule the task")
		return
	}
	task.Status = domain.StatusProcessing

	if err := a.Runner.Enqueue(tasks.KindVideoAnalysis, task.ID); err != nil {
		if err := a.Videos.Fail(r.Context(), task.ID, "server is busy, please try again later"); err != nil {
			a.Logger.Error().Err(err).Str("task_id", task.ID).Msg("could not fail video task after full queue")
		}
		a.error(w, http.StatusServiceUnavailable, "busy", "server is busy, please try again later")
		return
	}

	a.json(w, http.StatusAccepted, videoTaskJSON(task))
}

// TikTokStatus returns the current state of one of the caller's tasks.
func (a *App) TikTokStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id is required")
		return
	}
	task, err := a.Videos.GetForUser(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", id).Msg("video task lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load the task")
		return
	}
	a.json(w, http.StatusOK, videoTaskJSON(task))
}

// TikTokHistory lists the caller's video tasks, newest first.
func (a *App) TikTokHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	items, err := a.Videos.ListByUser(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("video history listing failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load history")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, videoTaskJSON(&items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

type historyDeleteRequest struct {
	IDs []string `json:"ids"`
}

// TikTokHistoryDelete removes the caller's selected tasks. Foreign ids are
// silently skipped by the ownership-scoped delete.
func (a *App) TikTokHistoryDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req historyDeleteRequest
	if err := decode(r, &req); err != nil || len(req.IDs) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "ids are required")
		return
	}
	deleted, err := a.Videos.DeleteByIDs(r.Context(), userID, req.IDs)
	if err != nil {
		a.Logger.Error().Err(err).Msg("video history delete failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not delete tasks")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func videoTaskJSON(t *domain.VideoTask) map[string]any {
	out := map[string]any{
		"id":           t.ID,
		"video_id":     t.VideoID,
		"video_url":    t.VideoURL,
		"author":       t.Author,
		"description":  t.Description,
		"cover_url":    t.CoverURL,
		"download_url": t.DownloadURL,
		"stats": map[string]int{
			"play_count": t.PlayCount,
			"likes":      t.Likes,
			"comments":   t.Comments,
			"shares":     t.Shares,
		},
		"status":     string(t.Status),
		"created_at": t.CreatedAt,
	}
	if t.CompletedAt != nil {
		out["completed_at"] = t.CompletedAt
	}
	if t.Status == domain.StatusComplete && len(t.Analysis) > 0 {
		out["analysis"] = json.RawMessage(t.Analysis)
	}
	if t.Status == domain.StatusFailed {
		out["error"] = t.ErrorMessage
	}
	return out
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
