package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ritasuite/internal/domain"
	"ritasuite/internal/infra"
	"ritasuite/internal/providers/gemini"
	"ritasuite/internal/providers/pagefetch"
	"ritasuite/internal/scrape"
	"ritasuite/internal/storage"
)

// StructuredExtractor runs schema-constrained extraction over free text and
// reports the token usage of the call.
type StructuredExtractor interface {
	ExtractStructured(ctx context.Context, req gemini.ExtractRequest) (json.RawMessage, gemini.Usage, error)
}

// ScrapePipeline runs a scrape task end to end: fetch the rendered page,
// reduce it to text, extract the declared fields as structured records, price
// the call and persist JSON and CSV artifacts.
type ScrapePipeline struct {
	repo      domain.ScrapeTaskRepository
	fetcher   pagefetch.Fetcher
	extractor StructuredExtractor
	store     storage.Store
	pricing   scrape.Pricing
	logger    infra.Logger
}

// NewScrapePipeline wires the scrape pipeline. A nil pricing map falls back
// to the default model rates.
func NewScrapePipeline(
	repo domain.ScrapeTaskRepository,
	fetcher pagefetch.Fetcher,
	extractor StructuredExtractor,
	store storage.Store,
	pricing scrape.Pricing,
	logger infra.Logger,
) *ScrapePipeline {
	if pricing == nil {
		pricing = scrape.DefaultPricing
	}
	return &ScrapePipeline{
		repo:      repo,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		pricing:   pricing,
		logger:    logger,
	}
}

func (p *ScrapePipeline) Kind() Kind {
	return KindScrape
}

// Process drives one scrape task to a terminal state. Every failure path
// records a FAILED status with a message before returning; only persistence
// errors on the final write can leave the record non-terminal, and those are
// swept by retention.
func (p *ScrapePipeline) Process(ctx context.Context, taskID string) error {
	t, err := p.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn().Str("task_id", taskID).Msg("scrape task gone before processing, skipping")
			return nil
		}
		return fmt.Errorf("load scrape task: %w", err)
	}
	if t.Status.Terminal() {
		p.logger.Warn().Str("task_id", taskID).Str("status", string(t.Status)).Msg("scrape task already terminal, skipping")
		return nil
	}

	if err := p.repo.MarkProcessing(ctx, taskID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("mark scrape task processing: %w", err)
	}

	schema, err := scrape.NewListingSchema(t.FieldList())
	if err != nil {
		p.fail(ctx, taskID, "no valid fields to extract")
		return fmt.Errorf("build schema: %w", err)
	}

	html, err := p.fetcher.Fetch(ctx, t.URL)
	if err != nil {
		p.fail(ctx, taskID, "could not fetch the page content")
		return fmt.Errorf("fetch page: %w", err)
	}

	text, err := scrape.TextFromHTML(html)
	if err != nil {
		p.fail(ctx, taskID, "could not read the page content")
		return fmt.Errorf("convert page: %w", err)
	}

	payload, usage, err := p.extractor.ExtractStructured(ctx, gemini.ExtractRequest{
		Model:  t.Model,
		Text:   text,
		Schema: schema.ResponseSchema(),
	})
	if err != nil {
		p.fail(ctx, taskID, "data extraction failed")
		return fmt.Errorf("extract: %w", err)
	}

	listings, err := schema.Decode(payload)
	if err != nil {
		// The decode error carries the provider's detail when the payload
		// flagged an extraction error; surface it to the user.
		p.fail(ctx, taskID, err.Error())
		return fmt.Errorf("decode extraction: %w", err)
	}

	cost, err := p.pricing.Cost(t.Model, usage.InputTokens, usage.OutputTokens)
	if err != nil {
		p.fail(ctx, taskID, "extraction model is not configured for pricing")
		return fmt.Errorf("price extraction: %w", err)
	}

	jsonKey, csvKey, err := p.writeArtifacts(ctx, taskID, payload, schema, listings)
	if err != nil {
		p.fail(ctx, taskID, "could not store the results")
		return err
	}

	err = p.repo.Complete(ctx, taskID, jsonKey, csvKey, domain.ScrapeUsage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalCost:    cost,
	})
	if err != nil {
		return fmt.Errorf("complete scrape task: %w", err)
	}

	p.logger.Info().
		Str("task_id", taskID).
		Int("listings", len(listings)).
		Float64("cost_usd", cost).
		Msg("scrape task completed")
	return nil
}

// Abandon records a generic failure for a unit that panicked mid-flight.
func (p *ScrapePipeline) Abandon(ctx context.Context, taskID string) {
	p.fail(ctx, taskID, "internal error during scraping")
}

func (p *ScrapePipeline) writeArtifacts(ctx context.Context, taskID string, payload json.RawMessage, schema *scrape.ListingSchema, listings []map[string]string) (string, string, error) {
	jsonKey := fmt.Sprintf("scrape_results/scrape_result_%s.json", taskID)
	csvKey := fmt.Sprintf("scrape_results/scrape_result_%s.csv", taskID)

	jsonKey, err := p.store.Write(ctx, jsonKey, payload)
	if err != nil {
		return "", "", fmt.Errorf("write json artifact: %w", err)
	}

	csvData, err := schema.CSV(listings)
	if err != nil {
		p.discardArtifact(ctx, jsonKey)
		return "", "", fmt.Errorf("render csv artifact: %w", err)
	}
	csvKey, err = p.store.Write(ctx, csvKey, csvData)
	if err != nil {
		p.discardArtifact(ctx, jsonKey)
		return "", "", fmt.Errorf("write csv artifact: %w", err)
	}
	return jsonKey, csvKey, nil
}

// discardArtifact removes a blob written before a later artifact step failed.
// The task record never holds the key at that point, so a leftover blob would
// be unreachable by both history deletion and the retention sweep.
func (p *ScrapePipeline) discardArtifact(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := p.store.Delete(ctx, key); err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("could not remove orphaned artifact")
	}
}

func (p *ScrapePipeline) fail(ctx context.Context, taskID, message string) {
	if err := p.repo.Fail(ctx, taskID, message); err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.logger.Error().Err(err).Str("task_id", taskID).Msg("could not mark scrape task failed")
	}
}

var _ Pipeline = (*ScrapePipeline)(nil)
