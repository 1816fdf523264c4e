package ai

import (
	"strings"
	"sync"
)

// CallCost is the accounting record for one LLM call.
type CallCost struct {
	Provider  string
	Model     string
	TokensIn  int
	TokensOut int
	USD       float64
}

// CostTracker accumulates per-document LLM spend. It is safe for
// concurrent use; enrichment and critic calls may overlap.
type CostTracker struct {
	mu    sync.Mutex
	calls []CallCost
}

func NewCostTracker() *CostTracker {
	return &CostTracker{}
}

func (c *CostTracker) Record(cost CallCost) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, cost)
}

func (c *CostTracker) TotalUSD() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, call := range c.calls {
		total += call.USD
	}
	return total
}

func (c *CostTracker) TotalTokens() (in, out int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		in += call.TokensIn
		out += call.TokensOut
	}
	return in, out
}

func (c *CostTracker) Calls() []CallCost {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CallCost, len(c.calls))
	copy(out, c.calls)
	return out
}

// modelPricing holds USD per million tokens (input, output). Prices are
// estimates for accounting, not billing.
type modelPricing struct {
	inPerM  float64
	outPerM float64
}

var pricingTable = map[string]modelPricing{
	"gpt-4o":                 {2.50, 10.00},
	"gpt-4o-mini":            {0.15, 0.60},
	"gpt-4.1-mini":           {0.40, 1.60},
	"llama-3.3-70b":          {0.59, 0.79},
	"llama-3.1-8b":           {0.05, 0.08},
	"claude-3-5-haiku":       {0.80, 4.00},
	"gemini-2.0-flash":       {0.10, 0.40},
	"text-embedding-3-small": {0.02, 0},
}

var defaultPricing = modelPricing{0.50, 1.50}

// EstimateUSD prices a call from its token usage. The longest matching
// prefix wins so "gpt-4o-mini" never prices as "gpt-4o"; unknown models
// fall back to a conservative default rate.
func EstimateUSD(model string, tokensIn, tokensOut int) float64 {
	pricing := defaultPricing
	matched := 0
	for prefix, p := range pricingTable {
		if len(prefix) > matched && strings.HasPrefix(model, prefix) {
			pricing = p
			matched = len(prefix)
		}
	}
	return float64(tokensIn)/1e6*pricing.inPerM + float64(tokensOut)/1e6*pricing.outPerM
}
