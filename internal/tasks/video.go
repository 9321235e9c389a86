package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ritasuite/internal/domain"
	"ritasuite/internal/infra"
)

// TranscriptAnalyzer turns a transcript into a structured analysis payload.
type TranscriptAnalyzer interface {
	AnalyzeTranscript(ctx context.Context, transcript string) (json.RawMessage, error)
}

// VideoPipeline runs the analysis stage of a submitted TikTok video task. The
// record already carries the metadata snapshot and transcript captured at
// submission time; this unit only has to produce and persist the analysis.
type VideoPipeline struct {
	repo     domain.VideoTaskRepository
	analyzer TranscriptAnalyzer
	logger   infra.Logger
}

// NewVideoPipeline wires the analysis pipeline.
func NewVideoPipeline(repo domain.VideoTaskRepository, analyzer TranscriptAnalyzer, logger infra.Logger) *VideoPipeline {
	return &VideoPipeline{repo: repo, analyzer: analyzer, logger: logger}
}

func (p *VideoPipeline) Kind() Kind {
	return KindVideoAnalysis
}

// Process analyzes the transcript and completes the record. A record deleted
// or re-submitted between enqueue and execution is skipped without error.
func (p *VideoPipeline) Process(ctx context.Context, taskID string) error {
	t, err := p.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn().Str("task_id", taskID).Msg("video task gone before processing, skipping")
			return nil
		}
		return fmt.Errorf("load video task: %w", err)
	}
	if t.Status.Terminal() {
		p.logger.Warn().Str("task_id", taskID).Str("status", string(t.Status)).Msg("video task already terminal, skipping")
		return nil
	}

	analysis, err := p.analyzer.AnalyzeTranscript(ctx, t.Transcript)
	if err != nil {
		p.fail(ctx, taskID, "AI analysis failed")
		return fmt.Errorf("analyze transcript: %w", err)
	}

	var parsed domain.VideoAnalysis
	if err := json.Unmarshal(analysis, &parsed); err != nil {
		p.fail(ctx, taskID, "analysis response was not in the expected format")
		return fmt.Errorf("decode analysis: %w", err)
	}

	if err := p.repo.Complete(ctx, taskID, analysis); err != nil {
		return fmt.Errorf("complete video task: %w", err)
	}
	return nil
}

// Abandon records a generic failure for a unit that panicked mid-flight.
func (p *VideoPipeline) Abandon(ctx context.Context, taskID string) {
	p.fail(ctx, taskID, "internal error during analysis")
}

func (p *VideoPipeline) fail(ctx context.Context, taskID, message string) {
	if err := p.repo.Fail(ctx, taskID, message); err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.logger.Error().Err(err).Str("task_id", taskID).Msg("could not mark video task failed")
	}
}

var _ Pipeline = (*VideoPipeline)(nil)
