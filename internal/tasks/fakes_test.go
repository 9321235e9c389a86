package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ritasuite/internal/domain"
	"ritasuite/internal/infra"
	"ritasuite/internal/providers/gemini"
)

func testLogger() infra.Logger {
	return zerolog.New(io.Discard)
}

type fakeVideoRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.VideoTask
}

func newFakeVideoRepo(tasks ...*domain.VideoTask) *fakeVideoRepo {
	r := &fakeVideoRepo{tasks: make(map[string]*domain.VideoTask)}
	for _, t := range tasks {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *fakeVideoRepo) UpsertByVideoID(ctx context.Context, task *domain.VideoTask) (*domain.VideoTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task.Status = domain.StatusPending
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeVideoRepo) GetByID(ctx context.Context, id string) (*domain.VideoTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeVideoRepo) GetForUser(ctx context.Context, id, userID string) (*domain.VideoTask, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil || t.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (r *fakeVideoRepo) ListByUser(ctx context.Context, userID string) ([]domain.VideoTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.VideoTask
	for _, t := range r.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) MarkProcessing(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok && t.Status == domain.StatusPending {
		t.Status = domain.StatusProcessing
	}
	return nil
}

func (r *fakeVideoRepo) Complete(ctx context.Context, id string, analysis json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	t.Status = domain.StatusComplete
	t.Analysis = analysis
	t.ErrorMessage = ""
	t.CompletedAt = &now
	return nil
}

func (r *fakeVideoRepo) Fail(ctx context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	t.Status = domain.StatusFailed
	t.ErrorMessage = message
	t.CompletedAt = &now
	return nil
}

func (r *fakeVideoRepo) DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if t, ok := r.tasks[id]; ok && t.UserID == userID {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeVideoRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tasks {
		if t.Status.Terminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

type fakeScrapeRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.ScrapeTask
}

func newFakeScrapeRepo(tasks ...*domain.ScrapeTask) *fakeScrapeRepo {
	r := &fakeScrapeRepo{tasks: make(map[string]*domain.ScrapeTask)}
	for _, t := range tasks {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *fakeScrapeRepo) Create(ctx context.Context, task *domain.ScrapeTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task.Status = domain.StatusPending
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeScrapeRepo) GetByID(ctx context.Context, id string) (*domain.ScrapeTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeScrapeRepo) GetForUser(ctx context.Context, id, userID string) (*domain.ScrapeTask, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil || t.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (r *fakeScrapeRepo) ListByUser(ctx context.Context, userID string) ([]domain.ScrapeTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScrapeTask
	for _, t := range r.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeScrapeRepo) MarkProcessing(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok && t.Status == domain.StatusPending {
		t.Status = domain.StatusProcessing
	}
	return nil
}

func (r *fakeScrapeRepo) Complete(ctx context.Context, id, jsonKey, csvKey string, usage domain.ScrapeUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	t.Status = domain.StatusComplete
	t.JSONKey = jsonKey
	t.CSVKey = csvKey
	t.InputTokens = usage.InputTokens
	t.OutputTokens = usage.OutputTokens
	t.TotalCost = usage.TotalCost
	t.ErrorMessage = ""
	t.CompletedAt = &now
	return nil
}

func (r *fakeScrapeRepo) Fail(ctx context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	t.Status = domain.StatusFailed
	t.ErrorMessage = message
	t.CompletedAt = &now
	return nil
}

func (r *fakeScrapeRepo) DeleteByIDs(ctx context.Context, userID string, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, id := range ids {
		if t, ok := r.tasks[id]; ok && t.UserID == userID {
			keys = append(keys, t.JSONKey, t.CSVKey)
			delete(r.tasks, id)
		}
	}
	return keys, nil
}

func (r *fakeScrapeRepo) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for id, t := range r.tasks {
		if t.UserID == userID {
			keys = append(keys, t.JSONKey, t.CSVKey)
			delete(r.tasks, id)
		}
	}
	return keys, nil
}

func (r *fakeScrapeRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for id, t := range r.tasks {
		if t.Status.Terminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			keys = append(keys, t.JSONKey, t.CSVKey)
			delete(r.tasks, id)
		}
	}
	return keys, nil
}

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

type stubFetcher struct {
	html string
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	return f.html, f.err
}

type stubExtractor struct {
	payload json.RawMessage
	usage   gemini.Usage
	err     error
}

func (e *stubExtractor) ExtractStructured(ctx context.Context, req gemini.ExtractRequest) (json.RawMessage, gemini.Usage, error) {
	return e.payload, e.usage, e.err
}

type stubAnalyzer struct {
	analysis json.RawMessage
	err      error
}

func (a *stubAnalyzer) AnalyzeTranscript(ctx context.Context, transcript string) (json.RawMessage, error) {
	return a.analysis, a.err
}
