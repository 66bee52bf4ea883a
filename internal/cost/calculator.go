// Package cost turns LLM token usage into spend estimates.
package cost

import "sync"

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps a model ID to its pricing.
type Rates map[string]ModelRate

// Calculator computes and accumulates completion costs. It is safe for
// concurrent use.
type Calculator struct {
	rates Rates

	mu      sync.Mutex
	total   float64
	calls   int
	unknown map[string]bool
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates, unknown: make(map[string]bool)}
}

// Completion returns the cost of one completion and adds it to the running
// total. ok is false when model has no configured rate; the call still
// counts, at zero cost.
func (c *Calculator) Completion(model string, input, output int) (usd float64, ok bool) {
	rate, ok := c.rates[model]
	if ok {
		usd = (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += usd
	c.calls++
	if !ok {
		c.unknown[model] = true
	}
	return usd, ok
}

// Total returns the accumulated cost and the number of completions seen.
func (c *Calculator) Total() (usd float64, calls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.calls
}

// Unpriced lists models that were used without a configured rate.
func (c *Calculator) Unpriced() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.unknown))
	for m := range c.unknown {
		out = append(out, m)
	}
	return out
}

// Merge returns a copy of base with overrides applied on top.
func Merge(base, overrides Rates) Rates {
	out := make(Rates, len(base)+len(overrides))
	for m, r := range base {
		out[m] = r
	}
	for m, r := range overrides {
		out[m] = r
	}
	return out
}

// DefaultRates returns list prices for the default models.
func DefaultRates() Rates {
	return Rates{
		"google/gemini-2.5-flash-lite-preview-09-2025": {Input: 0.10, Output: 0.40},
		"google/gemini-2.5-flash":                      {Input: 0.30, Output: 2.50},
		"google/gemini-3-pro-image-preview":            {Input: 2.00, Output: 12.00},
		"claude-haiku-4-5-20251001":                    {Input: 1.00, Output: 5.00},
		"claude-sonnet-4-5-20250929":                   {Input: 3.00, Output: 15.00},
	}
}
