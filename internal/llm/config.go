// Package llm provides the Gemini text client and the painting idea generator built on it.
package llm

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider.
const ProviderGemini Provider = "gemini"

// Config holds the text model settings.
type Config struct {
	Provider Provider
	Model    string
	// Temperature is kept high since ideas should vary between calls.
	Temperature float32
	// MaxAttempts bounds retries when the model returns output that fails validation.
	MaxAttempts int
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Model:       "gemini-2.5-flash",
		Temperature: 0.9,
		MaxAttempts: 2,
	}
}

// WithModel returns a copy of c using model.
func (c *Config) WithModel(model string) *Config {
	next := *c
	if model != "" {
		next.Model = model
	}
	return &next
}
