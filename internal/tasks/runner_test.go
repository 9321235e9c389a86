package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ritasuite/internal/domain"
)

type recordingPipeline struct {
	kind      Kind
	mu        sync.Mutex
	processed []string
	abandoned []string
	panicOn   map[string]bool
	done      chan string
}

func newRecordingPipeline(kind Kind) *recordingPipeline {
	return &recordingPipeline{
		kind:    kind,
		panicOn: make(map[string]bool),
		done:    make(chan string, 16),
	}
}

func (p *recordingPipeline) Kind() Kind { return p.kind }

func (p *recordingPipeline) Process(ctx context.Context, taskID string) error {
	if p.panicOn[taskID] {
		defer func() { p.done <- taskID }()
		panic("pipeline exploded")
	}
	p.mu.Lock()
	p.processed = append(p.processed, taskID)
	p.mu.Unlock()
	p.done <- taskID
	return nil
}

func (p *recordingPipeline) Abandon(ctx context.Context, taskID string) {
	p.mu.Lock()
	p.abandoned = append(p.abandoned, taskID)
	p.mu.Unlock()
}

func waitFor(t *testing.T, ch <-chan string, want int) {
	t.Helper()
	for i := 0; i < want; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for unit %d of %d", i+1, want)
		}
	}
}

func TestRunnerProcessesQueuedUnits(t *testing.T) {
	p := newRecordingPipeline(KindScrape)
	r := NewRunner(2, 8, testLogger(), nil)
	r.Register(p)
	r.Start(context.Background())
	defer r.Stop()

	require.NoError(t, r.Enqueue(KindScrape, "a"))
	require.NoError(t, r.Enqueue(KindScrape, "b"))
	waitFor(t, p.done, 2)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.ElementsMatch(t, []string{"a", "b"}, p.processed)
}

func TestRunnerEnqueueFullQueue(t *testing.T) {
	// No workers started, so the buffered channel fills immediately.
	r := NewRunner(1, 2, testLogger(), nil)
	require.NoError(t, r.Enqueue(KindScrape, "a"))
	require.NoError(t, r.Enqueue(KindScrape, "b"))

	err := r.Enqueue(KindScrape, "c")
	require.True(t, errors.Is(err, domain.ErrQueueFull))
}

func TestRunnerSurvivesPanickingPipeline(t *testing.T) {
	p := newRecordingPipeline(KindVideoAnalysis)
	p.panicOn["boom"] = true

	r := NewRunner(1, 8, testLogger(), nil)
	r.Register(p)
	r.Start(context.Background())
	defer r.Stop()

	require.NoError(t, r.Enqueue(KindVideoAnalysis, "boom"))
	require.NoError(t, r.Enqueue(KindVideoAnalysis, "after"))
	waitFor(t, p.done, 2)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Equal(t, []string{"after"}, p.processed)
	require.Equal(t, []string{"boom"}, p.abandoned)
}

func TestRunnerStopDrainsQueue(t *testing.T) {
	p := newRecordingPipeline(KindScrape)
	r := NewRunner(1, 8, testLogger(), nil)
	r.Register(p)
	r.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Enqueue(KindScrape, id))
	}
	r.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.processed, 3)
}
