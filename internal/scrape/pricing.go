package scrape

import (
	"fmt"

	"ritasuite/internal/domain"
)

// ModelRates holds per-token USD rates for one extraction model.
type ModelRates struct {
	Input  float64
	Output float64
}

// DefaultPricing lists the supported extraction models with USD-per-token
// rates (published prices divided by one million tokens).
var DefaultPricing = Pricing{
	"gemini-1.5-flash": {Input: 0.075 / 1_000_000, Output: 0.30 / 1_000_000},
	"gemini-2.0-flash": {Input: 0.10 / 1_000_000, Output: 0.40 / 1_000_000},
}

// Pricing maps model identifiers to their token rates.
type Pricing map[string]ModelRates

// Supports reports whether the model has a configured price.
func (p Pricing) Supports(model string) bool {
	_, ok := p[model]
	return ok
}

// Cost computes the monetary cost of a call from its token counts. An unknown
// model is a configuration error: cost accounting must never silently guess.
func (p Pricing) Cost(model string, inputTokens, outputTokens int) (float64, error) {
	rates, ok := p[model]
	if !ok {
		return 0, fmt.Errorf("no pricing for model %q: %w", model, domain.ErrConfiguration)
	}
	return float64(inputTokens)*rates.Input + float64(outputTokens)*rates.Output, nil
}
