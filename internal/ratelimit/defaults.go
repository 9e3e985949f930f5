package ratelimit

// DefaultLimits returns the built-in per-provider capacities. Operators
// override them through configuration.
func DefaultLimits() map[string]Limits {
	return map[string]Limits{
		"openai":    {RequestsPerMinute: 500, TokensPerMinute: 30000},
		"anthropic": {RequestsPerMinute: 50, TokensPerMinute: 40000},
		"xai":       {RequestsPerMinute: 60, TokensPerMinute: 100000},
		"google":    {RequestsPerMinute: 60, TokensPerMinute: 32000},
		"simulated": {RequestsPerMinute: 6000, TokensPerMinute: 10000000},
	}
}

// DefaultFallback is applied to providers without configured limits.
func DefaultFallback() Limits {
	return Limits{RequestsPerMinute: 60, TokensPerMinute: 30000}
}
