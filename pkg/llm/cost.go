package llm

import "strings"

// Token pricing per 1M tokens (USD).
var pricing = map[string]modelPrice{
	// OpenAI
	"gpt-4.1":      {Input: 2.00, Output: 8.00},
	"gpt-4.1-mini": {Input: 0.40, Output: 1.60},
	"gpt-4.1-nano": {Input: 0.10, Output: 0.40},
	"gpt-4o":       {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":  {Input: 0.15, Output: 0.60},

	// Gemini
	"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
	"gemini-2.0-flash": {Input: 0.10, Output: 0.40},

	// Claude
	"claude-sonnet-4-5": {Input: 3.00, Output: 15.00},
	"claude-haiku-4-5":  {Input: 1.00, Output: 5.00},
}

type modelPrice struct {
	Input  float64 // per 1M input tokens
	Output float64 // per 1M output tokens
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Dated snapshots ("gpt-4.1-2025-04-14") are priced as their base model.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := lookupPrice(model)
	if !ok {
		return 0
	}
	return (float64(tokensIn) * p.Input / 1_000_000) + (float64(tokensOut) * p.Output / 1_000_000)
}

func lookupPrice(model string) (modelPrice, bool) {
	if p, ok := pricing[model]; ok {
		return p, true
	}
	best := ""
	for name := range pricing {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return modelPrice{}, false
	}
	return pricing[best], true
}
