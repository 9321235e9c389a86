package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"ritasuite/internal/domain"
	"ritasuite/internal/infra"
	"ritasuite/internal/storage"
)

// Retention prunes terminal task records older than the configured window and
// removes their stored artifacts. Non-terminal records are never touched, so a
// record that got stuck in PROCESSING waits for the operator, not the sweeper.
type Retention struct {
	videos  domain.VideoTaskRepository
	scrapes domain.ScrapeTaskRepository
	store   storage.Store
	days    int
	logger  infra.Logger
}

// NewRetention wires the sweeper. A non-positive days value disables it.
func NewRetention(videos domain.VideoTaskRepository, scrapes domain.ScrapeTaskRepository, store storage.Store, days int, logger infra.Logger) *Retention {
	return &Retention{videos: videos, scrapes: scrapes, store: store, days: days, logger: logger}
}

// Schedule registers the nightly sweep on the given cron instance.
func (r *Retention) Schedule(c *cron.Cron) error {
	if r.days <= 0 {
		r.logger.Info().Msg("task retention disabled")
		return nil
	}
	_, err := c.AddFunc("0 3 * * *", func() {
		r.Sweep(context.Background())
	})
	return err
}

// Sweep deletes terminal records past the cutoff and their artifacts.
func (r *Retention) Sweep(ctx context.Context) {
	if r.days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -r.days)

	removedVideos, err := r.videos.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("retention sweep of video tasks failed")
	}

	var removedScrapes int
	keys, err := r.scrapes.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("retention sweep of scrape tasks failed")
	} else {
		removedScrapes = len(keys)
		for _, key := range keys {
			if key == "" {
				continue
			}
			if err := r.store.Delete(ctx, key); err != nil {
				r.logger.Error().Err(err).Str("key", key).Msg("could not delete expired artifact")
			}
		}
	}

	r.logger.Info().
		Int64("video_tasks", removedVideos).
		Int("scrape_artifacts", removedScrapes).
		Time("cutoff", cutoff).
		Msg("retention sweep finished")
}
