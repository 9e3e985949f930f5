package budget

import "math"

// Rate is the price in USD per million tokens.
type Rate struct {
	InputPerMillion  float64 `mapstructure:"input_per_million" yaml:"input_per_million" json:"inputPerMillion"`
	OutputPerMillion float64 `mapstructure:"output_per_million" yaml:"output_per_million" json:"outputPerMillion"`
}

// Pricing maps provider ids to rates.
type Pricing map[string]Rate

// DefaultPricing returns the built-in pricing table.
func DefaultPricing() Pricing {
	return Pricing{
		"openai":    {InputPerMillion: 2.50, OutputPerMillion: 10.00},
		"anthropic": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
		"xai":       {InputPerMillion: 2.00, OutputPerMillion: 10.00},
		"google":    {InputPerMillion: 1.25, OutputPerMillion: 5.00},
		"simulated": {},
	}
}

// costDecimals is the precision kept on every cost figure.
const costDecimals = 6

// Cost returns the USD cost of a call. Unknown providers are free.
func (p Pricing) Cost(provider string, inputTokens, outputTokens int) float64 {
	r := p[provider]
	c := float64(inputTokens)*r.InputPerMillion/1e6 + float64(outputTokens)*r.OutputPerMillion/1e6
	return roundCost(c)
}

func roundCost(v float64) float64 {
	scale := math.Pow10(costDecimals)
	return math.Round(v*scale) / scale
}
