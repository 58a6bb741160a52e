package llm

import (
	"encoding/json"
	"fmt"
)

// DefaultModel is reported when a request does not name a model.
const DefaultModel = "qwen-3-1.7b"

// ChatCompletionRequest represents an OpenAI-style chat completion request.
// Optional parameters are pointers so "not set" is distinguishable from zero.
type ChatCompletionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`

	// Generation options
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	FrequencyPenalty  *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float64 `json:"presence_penalty,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Seed              *int     `json:"seed,omitempty"`
	N                 *int     `json:"n,omitempty"`

	// Accepted for client compatibility, not acted on
	Stream   *bool           `json:"stream,omitempty"`
	Stop     json.RawMessage `json:"stop,omitempty"`
	Logprobs *bool           `json:"logprobs,omitempty"`
	Echo     *bool           `json:"echo,omitempty"`
	User     string          `json:"user,omitempty"`
}

// DecodeChatCompletionRequest parses and validates a request body.
// Every failure is a *ValidationError.
func DecodeChatCompletionRequest(body []byte) (*ChatCompletionRequest, error) {
	var req ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &ValidationError{Field: "body", Reason: err.Error()}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Only an absent model falls back to the default; a given name, even "", is echoed back.
	var present struct {
		Model *string `json:"model"`
	}
	if err := json.Unmarshal(body, &present); err == nil && present.Model == nil {
		req.Model = DefaultModel
	}

	return &req, nil
}

// Validate checks roles and parameter ranges.
func (r *ChatCompletionRequest) Validate() error {
	if r.Messages == nil {
		return &ValidationError{Field: "messages", Reason: "field required"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Reason: "at least one message is required"}
	}
	for i, msg := range r.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return &ValidationError{
				Field:  fmt.Sprintf("messages[%d].role", i),
				Value:  msg.Role,
				Reason: "must be one of system, user, assistant",
			}
		}
	}

	if r.MaxTokens != nil && (*r.MaxTokens < 1 || *r.MaxTokens > 4096) {
		return &ValidationError{Field: "max_tokens", Value: *r.MaxTokens, Reason: "must be between 1 and 4096"}
	}
	if err := checkFloatRange("temperature", r.Temperature, 0, 2); err != nil {
		return err
	}
	if err := checkFloatRange("top_p", r.TopP, 0, 1); err != nil {
		return err
	}
	if r.TopK != nil && *r.TopK < 1 {
		return &ValidationError{Field: "top_k", Value: *r.TopK, Reason: "must be at least 1"}
	}
	if err := checkFloatRange("frequency_penalty", r.FrequencyPenalty, -2, 2); err != nil {
		return err
	}
	if err := checkFloatRange("presence_penalty", r.PresencePenalty, -2, 2); err != nil {
		return err
	}
	if err := checkFloatRange("repetition_penalty", r.RepetitionPenalty, 0.1, 2); err != nil {
		return err
	}
	if r.N != nil && *r.N != 1 {
		return &ValidationError{Field: "n", Value: *r.N, Reason: "only a single choice is supported"}
	}

	return nil
}

func checkFloatRange(field string, v *float64, lo, hi float64) error {
	if v == nil {
		return nil
	}
	if *v < lo || *v > hi {
		return &ValidationError{
			Field:  field,
			Value:  *v,
			Reason: fmt.Sprintf("must be between %g and %g", lo, hi),
		}
	}
	return nil
}
