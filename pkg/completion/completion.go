// Package completion turns a validated chat request into a chat completion:
// it injects the default system prompt, calls the model, strips reasoning and
// accounts usage.
package completion

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localchat/chatbot/pkg/llm"
	"github.com/localchat/chatbot/pkg/model"
	"github.com/localchat/chatbot/pkg/sanitize"
)

// DefaultSystemPrompt is injected when a conversation does not start with a system message.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// Request is one completion to run.
type Request struct {
	Model    string // Name echoed back in the result
	Messages []llm.Message
	Config   llm.GenerationConfig
}

// Result is a finished completion. It is built once and never mutated.
type Result struct {
	ID           string
	Created      time.Time
	Model        string
	Content      string
	FinishReason string
	Usage        llm.Usage
}

// Response renders the result in the OpenAI chat completion shape.
func (r *Result) Response() llm.ChatCompletionResponse {
	return llm.ChatCompletionResponse{
		ID:      r.ID,
		Object:  "chat.completion",
		Created: r.Created.Unix(),
		Model:   r.Model,
		Choices: []llm.Choice{{
			Index:        0,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: r.Content},
			FinishReason: r.FinishReason,
		}},
		Usage: r.Usage,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSystemPrompt overrides DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		o.systemPrompt = prompt
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides NewCompletionID.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

// Orchestrator runs chat completions against a loaded model. It holds no
// per-request state and is safe for concurrent use.
type Orchestrator struct {
	model        *model.Handle
	logger       *zap.Logger
	systemPrompt string
	now          func() time.Time
	newID        func() string
}

// New creates an Orchestrator over the given model handle, which may be nil or unloaded.
func New(handle *model.Handle, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:        handle,
		logger:       logger,
		systemPrompt: DefaultSystemPrompt,
		now:          time.Now,
		newID:        NewCompletionID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ModelLoaded reports whether completions can be served.
func (o *Orchestrator) ModelLoaded() bool {
	return o.model.Loaded()
}

// Complete runs one completion. Errors are ErrModelUnavailable or *GenerationError.
func (o *Orchestrator) Complete(ctx context.Context, req Request) (*Result, error) {
	if !o.model.Loaded() {
		return nil, ErrModelUnavailable
	}

	messages := o.withSystemPrompt(req.Messages)

	raw, err := o.model.Generate(ctx, messages, req.Config)
	if err != nil {
		o.logger.Error("generation failed", zap.String("model", o.model.Name()), zap.Error(err))
		return nil, &GenerationError{Err: err}
	}

	content := sanitize.StripReasoning(raw)
	usage := CountUsage(messages, content)

	o.logger.Debug("completion finished",
		zap.Int("message_count", len(messages)),
		zap.Bool("had_reasoning", len(content) != len(raw)),
		zap.Int("total_tokens", usage.TotalTokens),
	)

	return &Result{
		ID:           o.newID(),
		Created:      o.now(),
		Model:        req.Model,
		Content:      content,
		FinishReason: llm.FinishReasonStop,
		Usage:        usage,
	}, nil
}

// withSystemPrompt returns messages starting with a system message. The input is never modified.
func (o *Orchestrator) withSystemPrompt(messages []llm.Message) []llm.Message {
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		return messages
	}

	o.logger.Debug("no system prompt provided, injecting default")

	out := make([]llm.Message, 0, len(messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: o.systemPrompt})
	return append(out, messages...)
}

// CountUsage approximates token usage by whitespace-separated word counts.
// The counts are approximate, not tokenizer counts.
func CountUsage(prompt []llm.Message, completion string) llm.Usage {
	promptTokens := 0
	for _, msg := range prompt {
		promptTokens += len(strings.Fields(msg.Content))
	}
	completionTokens := len(strings.Fields(completion))

	return llm.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// NewCompletionID returns "chatcmpl-" followed by 24 hex characters of a random UUID.
func NewCompletionID() string {
	id := uuid.New()
	return "chatcmpl-" + strings.ReplaceAll(id.String(), "-", "")[:24]
}
