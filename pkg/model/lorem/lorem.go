// Package lorem is an offline model backend that answers with lorem ipsum.
// It lets the service and its clients run without a model daemon.
package lorem

import (
	"context"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"go.uber.org/zap"

	"github.com/localchat/chatbot/pkg/llm"
	"github.com/localchat/chatbot/pkg/sanitize"
)

// DefaultName is the model id reported by the lorem backend.
const DefaultName = "lorem-local"

// Config configures the lorem backend.
type Config struct {
	Name string

	// Delay simulates generation latency.
	Delay time.Duration

	// MaxWords caps the reply length regardless of max_tokens.
	MaxWords int
}

// Backend is a mock model that emits a short reasoning block followed by lorem text,
// the same shape a thinking model produces.
type Backend struct {
	config Config
	logger *zap.Logger

	mu        sync.Mutex // golorem is not safe for concurrent use
	generator *loremgen.Lorem
}

// New creates a lorem backend.
func New(config Config, logger *zap.Logger) *Backend {
	if config.Name == "" {
		config.Name = DefaultName
	}
	if config.MaxWords <= 0 {
		config.MaxWords = 64
	}
	return &Backend{
		config:    config,
		logger:    logger,
		generator: loremgen.New(),
	}
}

// Name returns the configured model id.
func (b *Backend) Name() string {
	return b.config.Name
}

// Load has nothing to load.
func (b *Backend) Load(context.Context) error {
	b.logger.Warn("serving lorem ipsum instead of a real model", zap.String("model", b.config.Name))
	return nil
}

// Generate returns "<think>…</think>\n\n" followed by at most min(max_tokens, MaxWords) words.
func (b *Backend) Generate(ctx context.Context, messages []llm.Message, cfg llm.GenerationConfig) (string, error) {
	if b.config.Delay > 0 {
		select {
		case <-time.After(b.config.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	limit := max(0, min(cfg.MaxTokens, b.config.MaxWords))

	b.mu.Lock()
	thought := b.generator.Sentence(3, 8)
	var words []string
	for len(words) < limit {
		words = append(words, strings.Fields(b.generator.Sentence(5, 15))...)
	}
	b.mu.Unlock()

	reply := strings.Join(words[:limit], " ")
	raw := sanitize.ThinkOpen + thought + sanitize.ThinkClose + "\n\n" + reply

	b.logger.Debug("raw model output",
		zap.Int("message_count", len(messages)),
		zap.String("content", raw),
	)
	return raw, nil
}
