package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		"lite":   {Input: 0.10, Output: 0.40},
		"vision": {Input: 2.00, Output: 12.00},
	}
}

func TestCompletion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
		ok     bool
	}{
		{name: "lite one million each", model: "lite", input: 1000000, output: 1000000, want: 0.50, ok: true},
		{name: "vision screenshot call", model: "vision", input: 1500, output: 800, want: 0.003 + 0.0096, ok: true},
		{name: "zero tokens", model: "lite", want: 0, ok: true},
		{name: "unknown model", model: "mystery", input: 1000, output: 1000, want: 0, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NewCalculator(testRates()).Completion(tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestTotal_Accumulates(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			calc.Completion("lite", 1000000, 0)
		}()
	}
	wg.Wait()
	calc.Completion("mystery", 10, 10)

	usd, calls := calc.Total()
	assert.InDelta(t, 1.0, usd, 1e-9)
	assert.Equal(t, 11, calls)
	assert.Equal(t, []string{"mystery"}, calc.Unpriced())
}

func TestMerge(t *testing.T) {
	t.Parallel()
	base := testRates()
	merged := Merge(base, Rates{"lite": {Input: 1, Output: 1}, "extra": {Input: 5, Output: 5}})

	assert.Equal(t, ModelRate{Input: 1, Output: 1}, merged["lite"])
	assert.Equal(t, ModelRate{Input: 5, Output: 5}, merged["extra"])
	assert.Equal(t, ModelRate{Input: 2, Output: 12}, merged["vision"])
	assert.Equal(t, ModelRate{Input: 0.10, Output: 0.40}, base["lite"], "base must not be modified")
}

func TestDefaultRates_CoverDefaultModels(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()
	for _, m := range []string{
		"google/gemini-2.5-flash-lite-preview-09-2025",
		"google/gemini-3-pro-image-preview",
		"claude-haiku-4-5-20251001",
		"claude-sonnet-4-5-20250929",
	} {
		r, ok := rates[m]
		assert.True(t, ok, m)
		assert.Greater(t, r.Output, r.Input, m)
	}
}
