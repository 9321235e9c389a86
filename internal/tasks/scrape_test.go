package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ritasuite/internal/domain"
	"ritasuite/internal/providers/gemini"
	"ritasuite/internal/scrape"
)

func newScrapeTask() *domain.ScrapeTask {
	return &domain.ScrapeTask{
		ID:     "s1",
		UserID: "u1",
		URL:    "https://example.com/listings",
		Fields: "name, price",
		Model:  "gemini-2.0-flash",
		Status: domain.StatusPending,
	}
}

func TestScrapePipelineHappyPath(t *testing.T) {
	repo := newFakeScrapeRepo(newScrapeTask())
	store := newMemStore()
	payload := json.RawMessage(`{"listings":[{"name":"Widget","price":"9.99"}]}`)
	p := NewScrapePipeline(
		repo,
		&stubFetcher{html: "<html><body>Widget 9.99</body></html>"},
		&stubExtractor{payload: payload, usage: gemini.Usage{InputTokens: 500_000, OutputTokens: 100_000}},
		store,
		scrape.DefaultPricing,
		testLogger(),
	)

	require.NoError(t, p.Process(context.Background(), "s1"))

	got, err := repo.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusComplete, got.Status)
	require.Equal(t, 500_000, got.InputTokens)
	require.Equal(t, 100_000, got.OutputTokens)
	// 0.5M input at 0.10/M plus 0.1M output at 0.40/M.
	require.InDelta(t, 0.09, got.TotalCost, 1e-9)
	require.NotEmpty(t, got.JSONKey)
	require.NotEmpty(t, got.CSVKey)

	rc, err := store.Open(context.Background(), got.JSONKey)
	require.NoError(t, err)
	rc.Close()
	rc, err = store.Open(context.Background(), got.CSVKey)
	require.NoError(t, err)
	rc.Close()
}

func TestScrapePipelineFetchFailure(t *testing.T) {
	repo := newFakeScrapeRepo(newScrapeTask())
	p := NewScrapePipeline(
		repo,
		&stubFetcher{err: errors.New("browser crashed")},
		&stubExtractor{},
		newMemStore(),
		nil,
		testLogger(),
	)

	require.Error(t, p.Process(context.Background(), "s1"))

	got, _ := repo.GetByID(context.Background(), "s1")
	require.Equal(t, domain.StatusFailed, got.Status)
	require.Equal(t, "could not fetch the page content", got.ErrorMessage)
}

func TestScrapePipelineProviderErrorPayload(t *testing.T) {
	repo := newFakeScrapeRepo(newScrapeTask())
	p := NewScrapePipeline(
		repo,
		&stubFetcher{html: "<html><body>nothing here</body></html>"},
		&stubExtractor{payload: json.RawMessage(`{"error":"extraction_failed","details":"no listings on page"}`)},
		newMemStore(),
		nil,
		testLogger(),
	)

	require.Error(t, p.Process(context.Background(), "s1"))

	got, _ := repo.GetByID(context.Background(), "s1")
	require.Equal(t, domain.StatusFailed, got.Status)
	require.Contains(t, got.ErrorMessage, "no listings on page")
}

func TestScrapePipelineUnknownModelFailsTask(t *testing.T) {
	task := newScrapeTask()
	task.Model = "gpt-unpriced"
	repo := newFakeScrapeRepo(task)
	p := NewScrapePipeline(
		repo,
		&stubFetcher{html: "<html><body>Widget</body></html>"},
		&stubExtractor{payload: json.RawMessage(`{"listings":[{"name":"Widget","price":"1"}]}`)},
		newMemStore(),
		nil,
		testLogger(),
	)

	require.Error(t, p.Process(context.Background(), "s1"))

	got, _ := repo.GetByID(context.Background(), "s1")
	require.Equal(t, domain.StatusFailed, got.Status)
}

func TestScrapePipelineCSVWriteFailureRemovesJSONArtifact(t *testing.T) {
	repo := newFakeScrapeRepo(newScrapeTask())
	store := &flakyStore{memStore: newMemStore(), failSuffix: ".csv"}
	p := NewScrapePipeline(
		repo,
		&stubFetcher{html: "<html><body>Widget 9.99</body></html>"},
		&stubExtractor{payload: json.RawMessage(`{"listings":[{"name":"Widget","price":"9.99"}]}`)},
		store,
		nil,
		testLogger(),
	)

	require.Error(t, p.Process(context.Background(), "s1"))

	got, _ := repo.GetByID(context.Background(), "s1")
	require.Equal(t, domain.StatusFailed, got.Status)
	require.Equal(t, "could not store the results", got.ErrorMessage)
	require.Empty(t, got.JSONKey)
	require.Empty(t, store.files, "the blob written before the failure must not be left behind")
}

func TestScrapePipelineMarksProcessing(t *testing.T) {
	repo := newFakeScrapeRepo(newScrapeTask())
	var observed domain.TaskStatus
	p := NewScrapePipeline(
		repo,
		fetchFunc(func(ctx context.Context, pageURL string) (string, error) {
			got, err := repo.GetByID(ctx, "s1")
			if err != nil {
				return "", err
			}
			observed = got.Status
			return "<html><body>Widget 9.99</body></html>", nil
		}),
		&stubExtractor{payload: json.RawMessage(`{"listings":[{"name":"Widget","price":"9.99"}]}`), usage: gemini.Usage{}},
		newMemStore(),
		nil,
		testLogger(),
	)

	require.NoError(t, p.Process(context.Background(), "s1"))
	require.Equal(t, domain.StatusProcessing, observed)
}

func TestScrapePipelineSkipsMissingTask(t *testing.T) {
	p := NewScrapePipeline(newFakeScrapeRepo(), &stubFetcher{}, &stubExtractor{}, newMemStore(), nil, testLogger())
	require.NoError(t, p.Process(context.Background(), "gone"))
}

type flakyStore struct {
	*memStore
	failSuffix string
}

func (s *flakyStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if strings.HasSuffix(key, s.failSuffix) {
		return "", errors.New("disk full")
	}
	return s.memStore.Write(ctx, key, data)
}

type fetchFunc func(ctx context.Context, pageURL string) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, pageURL string) (string, error) {
	return f(ctx, pageURL)
}
