package ollama

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/localchat/chatbot/pkg/llm"
)

// Options contains model inference parameters.
type Options struct {
	// Sampling parameters
	Temperature *float64 `json:"temperature,omitempty"` // Creativity (0.0-2.0), 0 is greedy
	TopP        *float64 `json:"top_p,omitempty"`       // Nucleus sampling threshold
	TopK        *int     `json:"top_k,omitempty"`       // Top-k sampling
	Seed        *int     `json:"seed,omitempty"`        // Random seed for reproducibility

	// Length parameters
	NumPredict *int `json:"num_predict,omitempty"` // Max tokens to generate

	// Repetition control
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// ChatRequest represents an Ollama /api/chat request.
type ChatRequest struct {
	Model     string        `json:"model"`
	Messages  []llm.Message `json:"messages"`
	Stream    *bool         `json:"stream,omitempty"` // Ollama defaults to streaming
	Options   *Options      `json:"options,omitempty"`
	KeepAlive KeepAlive     `json:"keep_alive,omitempty"` // How long to keep the model in memory
}

// KeepAlive is Ollama's keep_alive value. Ollama reads a JSON number as seconds
// (negative keeps the model loaded forever) and a JSON string as a Go duration
// with a unit, so numeric values are sent as numbers.
type KeepAlive string

func (k KeepAlive) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(k))
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(s)
}

func (k *KeepAlive) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*k = KeepAlive(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = KeepAlive(s)
	return nil
}

// Message is an assistant message as Ollama returns it.
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"` // Only set when the daemon splits reasoning out
}

// ChatResponse represents a non-streaming Ollama /api/chat response.
type ChatResponse struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Message    Message   `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`

	// Metrics (only present when done=true)
	TotalDuration   int64 `json:"total_duration,omitempty"`
	LoadDuration    int64 `json:"load_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`
}

// ShowRequest asks Ollama for a model's metadata.
type ShowRequest struct {
	Model string `json:"model"`
}

// ShowResponse is the subset of /api/show we inspect.
type ShowResponse struct {
	Details struct {
		Format            string `json:"format"`
		Family            string `json:"family"`
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

// optionsFor translates a generation config into Ollama options.
func optionsFor(cfg llm.GenerationConfig) *Options {
	temperature := cfg.Temperature
	if !cfg.Sample {
		temperature = 0
	}
	opts := &Options{
		Temperature:      &temperature,
		TopP:             &cfg.TopP,
		TopK:             &cfg.TopK,
		NumPredict:       &cfg.MaxTokens,
		RepeatPenalty:    &cfg.RepetitionPenalty,
		FrequencyPenalty: &cfg.FrequencyPenalty,
		PresencePenalty:  &cfg.PresencePenalty,
	}
	if cfg.Seed != nil {
		seed := *cfg.Seed
		opts.Seed = &seed
	}
	return opts
}
