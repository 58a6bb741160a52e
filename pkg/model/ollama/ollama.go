// Package ollama serves the chat model from a local Ollama daemon holding the
// quantized checkpoint.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/localchat/chatbot/pkg/llm"
)

// ErrModelNotFound is returned by Load when the daemon does not have the model.
var ErrModelNotFound = errors.New("model not found in ollama")

// Config configures the Ollama backend.
type Config struct {
	// BaseURL of the daemon (e.g., "http://localhost:11434")
	BaseURL string

	// Model tag to serve (e.g., "qwen3:1.7b-q4_K_M")
	Model string

	// KeepAlive is how long Ollama keeps the model resident after a request:
	// seconds ("-1" keeps it forever) or a duration with a unit ("30m").
	KeepAlive string

	// Timeout bounds a single upstream request. LLM requests can be slow, especially with thinking blocks.
	Timeout time.Duration
}

// StatusError is a non-200 answer from the daemon.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama returned %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Backend generates chat completions through Ollama's /api/chat.
type Backend struct {
	config Config
	client *fasthttp.Client
	logger *zap.Logger
}

// New creates a Backend. It does not contact the daemon until Load.
func New(config Config, logger *zap.Logger) *Backend {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}

	return &Backend{
		config: config,
		logger: logger,
		client: &fasthttp.Client{
			Name:                "chatbot",
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// Name returns the served model tag.
func (b *Backend) Name() string {
	return b.config.Model
}

// Load checks the model exists and preloads it into memory.
func (b *Backend) Load(ctx context.Context) error {
	var show ShowResponse
	err := b.post(ctx, "/api/show", ShowRequest{Model: b.config.Model}, &show)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == fasthttp.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrModelNotFound, b.config.Model)
		}
		return fmt.Errorf("show model: %w", err)
	}

	b.logger.Info("model found",
		zap.String("model", b.config.Model),
		zap.String("family", show.Details.Family),
		zap.String("parameter_size", show.Details.ParameterSize),
		zap.String("quantization", show.Details.QuantizationLevel),
	)

	// An empty conversation makes Ollama load the weights without generating.
	streaming := false
	warmup := ChatRequest{
		Model:     b.config.Model,
		Messages:  []llm.Message{},
		Stream:    &streaming,
		KeepAlive: KeepAlive(b.config.KeepAlive),
	}
	started := time.Now()
	if err := b.post(ctx, "/api/chat", warmup, nil); err != nil {
		return fmt.Errorf("warm up model: %w", err)
	}

	b.logger.Info("model loaded",
		zap.String("model", b.config.Model),
		zap.Duration("duration", time.Since(started)),
	)
	return nil
}

// Generate runs one non-streaming chat completion and returns the raw text,
// reasoning block included.
func (b *Backend) Generate(ctx context.Context, messages []llm.Message, cfg llm.GenerationConfig) (string, error) {
	streaming := false
	req := ChatRequest{
		Model:     b.config.Model,
		Messages:  messages,
		Stream:    &streaming,
		Options:   optionsFor(cfg),
		KeepAlive: KeepAlive(b.config.KeepAlive),
	}

	if ce := b.logger.Check(zap.DebugLevel, "prompt sent to model"); ce != nil {
		ce.Write(zap.Any("messages", messages), zap.Int("max_tokens", cfg.MaxTokens), zap.Bool("sample", cfg.Sample))
	}

	var resp ChatResponse
	if err := b.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}

	b.logger.Debug("raw model output",
		zap.String("content", resp.Message.Content),
		zap.Int("thinking_chars", len(resp.Message.Thinking)),
		zap.Int("prompt_eval_count", resp.PromptEvalCount),
		zap.Int("eval_count", resp.EvalCount),
		zap.Duration("duration", time.Duration(resp.TotalDuration)),
	)

	return resp.Message.Content, nil
}

// post sends a JSON request to the daemon and decodes the answer into out, when non-nil.
func (b *Backend) post(ctx context.Context, path string, payload, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(b.config.BaseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	b.logger.Debug("forwarding request to ollama",
		zap.String("url", b.config.BaseURL+path),
		zap.Int("body_size", len(body)),
	)

	if err := b.client.DoDeadline(req, resp, b.deadline(ctx)); err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// deadline is the earlier of the context deadline and the configured timeout.
func (b *Backend) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(b.config.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}
