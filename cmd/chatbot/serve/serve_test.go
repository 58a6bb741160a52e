package servecmder

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/localchat/chatbot/pkg/config"
	"github.com/localchat/chatbot/pkg/model/lorem"
	"github.com/localchat/chatbot/pkg/model/ollama"
)

var _ = Describe("Serve Command", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chatbot-serve-test-*")
		Expect(err).NotTo(HaveOccurred())

		for _, key := range []string{
			config.EnvAPIKey, config.EnvFrontendURLs, config.EnvListen,
			config.EnvBackend, config.EnvModelName, config.EnvUpstreamURL,
		} {
			if v, ok := os.LookupEnv(key); ok {
				DeferCleanup(os.Setenv, key, v)
				Expect(os.Unsetenv(key)).To(Succeed())
			}
		}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	loadConfig := func(args ...string) (config.Config, error) {
		cmder := &serveCommander{}
		cmd := newServeCmd(cmder)
		Expect(cmd.ParseFlags(args)).To(Succeed())
		return cmder.loadConfig(cmd)
	}

	It("layers flags over the config file", func() {
		path := filepath.Join(tmpDir, "chatbot.toml")
		Expect(os.WriteFile(path, []byte("[server]\nlisten = \":9000\"\n\n[model]\nname = \"qwen3:4b\"\n"), 0o600)).To(Succeed())

		cfg, err := loadConfig(
			"--config", path,
			"--env-file", filepath.Join(tmpDir, "missing.env"),
			"--backend", "lorem",
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Listen).To(Equal(":9000"))
		Expect(cfg.Model.Name).To(Equal("qwen3:4b"))
		Expect(cfg.Model.Backend).To(Equal(config.BackendLorem))
	})

	It("reads the API key from a .env file", func() {
		envPath := filepath.Join(tmpDir, ".env")
		Expect(os.WriteFile(envPath, []byte("CHAT_BOT_API_KEY=from-dotenv\n"), 0o600)).To(Succeed())
		DeferCleanup(os.Unsetenv, config.EnvAPIKey)

		cfg, err := loadConfig("--env-file", envPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Auth.APIKey).To(Equal("from-dotenv"))
	})

	It("rejects an invalid backend flag", func() {
		_, err := loadConfig("--backend", "vllm", "--env-file", filepath.Join(tmpDir, "none.env"))
		Expect(err).To(MatchError(ContainSubstring("model.backend")))
	})

	It("builds the backend named by the config", func() {
		cfg := config.Default().Model

		backend, err := newBackend(cfg, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(backend).To(BeAssignableToTypeOf(&ollama.Backend{}))
		Expect(backend.Name()).To(Equal(cfg.Name))

		cfg.Backend = config.BackendLorem
		backend, err = newBackend(cfg, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(backend).To(BeAssignableToTypeOf(&lorem.Backend{}))

		cfg.Backend = "vllm"
		_, err = newBackend(cfg, zap.NewNop())
		Expect(err).To(HaveOccurred())
	})
})
