package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localchat/chatbot/pkg/completion"
	"github.com/localchat/chatbot/pkg/config"
	"github.com/localchat/chatbot/pkg/guard"
	"github.com/localchat/chatbot/pkg/logger"
	"github.com/localchat/chatbot/pkg/model"
	"github.com/localchat/chatbot/pkg/model/lorem"
	"github.com/localchat/chatbot/pkg/model/ollama"
	"github.com/localchat/chatbot/server"
)

const serveLongDesc string = `Load the model and serve the chat API.

Configuration is read from an optional TOML or YAML file, then a .env
file, then the environment (CHAT_BOT_API_KEY, FRONTEND_URLS,
CHATBOT_LISTEN, CHATBOT_MODEL_BACKEND, CHATBOT_MODEL_NAME,
CHATBOT_UPSTREAM_URL). Flags override all of them.

The model is loaded before the listener opens; if loading fails the
process exits.

Examples:
  chatbot serve
  chatbot serve --config chatbot.toml --listen :9000
  chatbot serve --backend lorem --debug`

const serveShortDesc string = "Serve the chat API"

type serveCommander struct {
	configPath string
	envFile    string
	listen     string
	backend    string
	modelName  string
	upstream   string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML or YAML config file")
	cmd.Flags().StringVar(&cmder.envFile, "env-file", ".env", "Path to a .env file, ignored when missing")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (e.g., :8000)")
	cmd.Flags().StringVar(&cmder.backend, "backend", "", "Model backend: ollama or lorem")
	cmd.Flags().StringVarP(&cmder.modelName, "model", "m", "", "Backend model name (e.g., qwen3:1.7b)")
	cmd.Flags().StringVarP(&cmder.upstream, "upstream", "u", "", "Ollama URL (e.g., http://localhost:11434)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}

	log := logger.NewLogger(c.debug)
	defer log.Sync()

	log.Info("chatbot starting",
		zap.String("listen", cfg.Server.Listen),
		zap.String("backend", cfg.Model.Backend),
		zap.String("model", cfg.Model.Name),
		zap.Bool("auth", cfg.Auth.APIKey != ""),
		zap.Strings("allowed_origins", cfg.Auth.AllowedOrigins),
	)

	backend, err := newBackend(cfg.Model, log)
	if err != nil {
		return err
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Model.LoadTimeout)
	handle, err := model.Load(loadCtx, backend)
	cancel()
	if err != nil {
		log.Fatal("failed to load model", zap.Error(err))
	}
	log.Info("model ready", zap.String("model", handle.Name()), zap.String("served_id", cfg.Model.ServedID))

	orch := completion.New(handle, log, completion.WithSystemPrompt(cfg.Server.SystemPrompt))
	g := guard.New(guard.Config{
		Token:          cfg.Auth.APIKey,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, log)

	srv := server.New(server.Config{
		ListenAddr:    cfg.Server.Listen,
		ServedModelID: cfg.Model.ServedID,
	}, g, orch, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Error("chat server failed", zap.Error(err))
		return err
	}
	return nil
}

// loadConfig layers file, .env, environment and changed flags.
func (c *serveCommander) loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("could not load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Server.Listen = c.listen
	}
	if flags.Changed("backend") {
		cfg.Model.Backend = c.backend
	}
	if flags.Changed("model") {
		cfg.Model.Name = c.modelName
	}
	if flags.Changed("upstream") {
		cfg.Model.UpstreamURL = c.upstream
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newBackend(cfg config.ModelConfig, log *zap.Logger) (model.Backend, error) {
	switch cfg.Backend {
	case config.BackendOllama:
		return ollama.New(ollama.Config{
			BaseURL:   cfg.UpstreamURL,
			Model:     cfg.Name,
			KeepAlive: cfg.KeepAlive,
			Timeout:   cfg.RequestTimeout,
		}, log), nil
	case config.BackendLorem:
		return lorem.New(lorem.Config{}, log), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}
