package provider

// modelPricing is USD per 1K tokens. Unknown models fall back to the
// default entry so estimates stay order-of-magnitude useful.
type modelPricing struct {
	Input  float64
	Output float64
}

var pricingTable = map[string]modelPricing{
	"gpt-4o":        {Input: 0.0025, Output: 0.01},
	"gpt-4o-mini":   {Input: 0.00015, Output: 0.0006},
	"gpt-4-turbo":   {Input: 0.01, Output: 0.03},
	"gpt-3.5-turbo": {Input: 0.0005, Output: 0.0015},
}

var defaultPricing = modelPricing{Input: 0.001, Output: 0.002}

func estimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		pricing = defaultPricing
	}
	return float64(inputTokens)/1000*pricing.Input + float64(outputTokens)/1000*pricing.Output
}
