package llm

// Generation defaults applied when a request leaves a parameter unset.
const (
	DefaultMaxTokens         = 512
	DefaultTemperature       = 0.7
	DefaultTopP              = 0.8
	DefaultTopK              = 20
	DefaultRepetitionPenalty = 1.1
)

// GenerationConfig contains the resolved model inference parameters for one request.
type GenerationConfig struct {
	MaxTokens         int
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
	FrequencyPenalty  float64
	PresencePenalty   float64
	Seed              *int

	// Sample is false for greedy decoding, which an explicit temperature of 0 selects.
	Sample bool
}

// DefaultGenerationConfig returns the configuration used for a request that sets nothing.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxTokens:         DefaultMaxTokens,
		Temperature:       DefaultTemperature,
		TopP:              DefaultTopP,
		TopK:              DefaultTopK,
		RepetitionPenalty: DefaultRepetitionPenalty,
		Sample:            true,
	}
}

// GenerationConfig resolves the request's parameters against the defaults.
// Only absent fields fall back; explicit zeros are kept.
func (r *ChatCompletionRequest) GenerationConfig() GenerationConfig {
	cfg := DefaultGenerationConfig()

	if r.MaxTokens != nil {
		cfg.MaxTokens = *r.MaxTokens
	}
	if r.Temperature != nil {
		cfg.Temperature = *r.Temperature
	}
	if r.TopP != nil {
		cfg.TopP = *r.TopP
	}
	if r.TopK != nil {
		cfg.TopK = *r.TopK
	}
	if r.RepetitionPenalty != nil {
		cfg.RepetitionPenalty = *r.RepetitionPenalty
	}
	if r.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = *r.FrequencyPenalty
	}
	if r.PresencePenalty != nil {
		cfg.PresencePenalty = *r.PresencePenalty
	}
	if r.Seed != nil {
		seed := *r.Seed
		cfg.Seed = &seed
	}

	cfg.Sample = cfg.Temperature > 0
	return cfg
}
