package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ritasuite/internal/domain"
	"ritasuite/internal/infra"
	"ritasuite/internal/providers/gemini"
	"ritasuite/internal/providers/tiktok"
	"ritasuite/internal/scrape"
	"ritasuite/internal/tasks"
)

func testApp() *App {
	return &App{
		Cfg: &infra.Config{
			GeminiModel: "gemini-1.5-flash",
			JWTSecret:   "test-secret",
		},
		Logger:  zerolog.New(io.Discard),
		Pricing: scrape.DefaultPricing,
	}
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

type stubEnqueuer struct {
	enqueued []tasks.Kind
	ids      []string
	err      error
}

func (s *stubEnqueuer) Enqueue(kind tasks.Kind, taskID string) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, kind)
	s.ids = append(s.ids, taskID)
	return nil
}

type stubInfoFetcher struct {
	info *tiktok.VideoInfo
	err  error
}

func (s *stubInfoFetcher) VideoInfo(ctx context.Context, videoURL string) (*tiktok.VideoInfo, error) {
	return s.info, s.err
}

type stubTranscriber struct {
	transcript string
	err        error
}

func (s *stubTranscriber) TranscribeAudio(ctx context.Context, audioURL string) (string, error) {
	return s.transcript, s.err
}

type stubAssistant struct {
	reply string
	err   error
}

func (s *stubAssistant) Chat(ctx context.Context, req gemini.ChatRequest) (string, error) {
	return s.reply, s.err
}

type fakeVideos struct {
	tasks map[string]*domain.VideoTask
}

func newFakeVideos(items ...*domain.VideoTask) *fakeVideos {
	r := &fakeVideos{tasks: make(map[string]*domain.VideoTask)}
	for _, t := range items {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *fakeVideos) UpsertByVideoID(ctx context.Context, task *domain.VideoTask) (*domain.VideoTask, error) {
	for _, existing := range r.tasks {
		if existing.VideoID == task.VideoID {
			task.ID = existing.ID
			break
		}
	}
	task.Status = domain.StatusPending
	task.CreatedAt = time.Now()
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeVideos) GetByID(ctx context.Context, id string) (*domain.VideoTask, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (r *fakeVideos) GetForUser(ctx context.Context, id, userID string) (*domain.VideoTask, error) {
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (r *fakeVideos) ListByUser(ctx context.Context, userID string) ([]domain.VideoTask, error) {
	var out []domain.VideoTask
	for _, t := range r.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeVideos) MarkProcessing(ctx context.Context, id string) error {
	if t, ok := r.tasks[id]; ok && t.Status == domain.StatusPending {
		t.Status = domain.StatusProcessing
	}
	return nil
}

func (r *fakeVideos) Complete(ctx context.Context, id string, analysis json.RawMessage) error {
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = domain.StatusComplete
	t.Analysis = analysis
	return nil
}

func (r *fakeVideos) Fail(ctx context.Context, id, message string) error {
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = domain.StatusFailed
	t.ErrorMessage = message
	return nil
}

func (r *fakeVideos) DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if t, ok := r.tasks[id]; ok && t.UserID == userID {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeVideos) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeScrapes struct {
	tasks map[string]*domain.ScrapeTask
}

func newFakeScrapes(items ...*domain.ScrapeTask) *fakeScrapes {
	r := &fakeScrapes{tasks: make(map[string]*domain.ScrapeTask)}
	for _, t := range items {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *fakeScrapes) Create(ctx context.Context, task *domain.ScrapeTask) error {
	task.Status = domain.StatusPending
	task.CreatedAt = time.Now()
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeScrapes) GetByID(ctx context.Context, id string) (*domain.ScrapeTask, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (r *fakeScrapes) GetForUser(ctx context.Context, id, userID string) (*domain.ScrapeTask, error) {
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (r *fakeScrapes) ListByUser(ctx context.Context, userID string) ([]domain.ScrapeTask, error) {
	var out []domain.ScrapeTask
	for _, t := range r.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeScrapes) MarkProcessing(ctx context.Context, id string) error {
	if t, ok := r.tasks[id]; ok && t.Status == domain.StatusPending {
		t.Status = domain.StatusProcessing
	}
	return nil
}

func (r *fakeScrapes) Complete(ctx context.Context, id, jsonKey, csvKey string, usage domain.ScrapeUsage) error {
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = domain.StatusComplete
	t.JSONKey = jsonKey
	t.CSVKey = csvKey
	return nil
}

func (r *fakeScrapes) Fail(ctx context.Context, id, message string) error {
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = domain.StatusFailed
	t.ErrorMessage = message
	return nil
}

func (r *fakeScrapes) DeleteByIDs(ctx context.Context, userID string, ids []string) ([]string, error) {
	var keys []string
	for _, id := range ids {
		if t, ok := r.tasks[id]; ok && t.UserID == userID {
			keys = append(keys, t.JSONKey, t.CSVKey)
			delete(r.tasks, id)
		}
	}
	return keys, nil
}

func (r *fakeScrapes) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	var keys []string
	for id, t := range r.tasks {
		if t.UserID == userID {
			keys = append(keys, t.JSONKey, t.CSVKey)
			delete(r.tasks, id)
		}
	}
	return keys, nil
}

func (r *fakeScrapes) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

type memStore struct {
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	s.files[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	delete(s.files, key)
	return nil
}
