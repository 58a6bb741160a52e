package completion_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/localchat/chatbot/pkg/completion"
	"github.com/localchat/chatbot/pkg/llm"
	"github.com/localchat/chatbot/pkg/model"
)

// recordingCapability returns a canned reply and remembers what it was asked.
type recordingCapability struct {
	reply    string
	err      error
	messages []llm.Message
	config   llm.GenerationConfig
}

func (r *recordingCapability) Generate(_ context.Context, messages []llm.Message, cfg llm.GenerationConfig) (string, error) {
	r.messages = messages
	r.config = cfg
	return r.reply, r.err
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx        context.Context
		capability *recordingCapability
		orch       *completion.Orchestrator
		fixedTime  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		capability = &recordingCapability{reply: "<think>plan the greeting</think>\n\nHello there friend"}
		fixedTime = time.Unix(1700000000, 0)
		orch = completion.New(
			model.NewHandle("test-model", capability),
			zap.NewNop(),
			completion.WithClock(func() time.Time { return fixedTime }),
			completion.WithIDGenerator(func() string { return "chatcmpl-fixed" }),
		)
	})

	request := func(messages ...llm.Message) completion.Request {
		return completion.Request{
			Model:    "qwen-3-1.7b",
			Messages: messages,
			Config:   llm.DefaultGenerationConfig(),
		}
	}

	Describe("system prompt injection", func() {
		It("prepends the default system prompt when the first message is not system", func() {
			_, err := orch.Complete(ctx, request(llm.Message{Role: "user", Content: "Hi"}))
			Expect(err).NotTo(HaveOccurred())

			Expect(capability.messages).To(Equal([]llm.Message{
				{Role: "system", Content: completion.DefaultSystemPrompt},
				{Role: "user", Content: "Hi"},
			}))
		})

		It("prepends the system prompt to an empty conversation", func() {
			_, err := orch.Complete(ctx, request())
			Expect(err).NotTo(HaveOccurred())

			Expect(capability.messages).To(HaveLen(1))
			Expect(capability.messages[0].Role).To(Equal("system"))
		})

		It("leaves conversations that start with a system message alone", func() {
			msgs := []llm.Message{
				{Role: "system", Content: "You are terse."},
				{Role: "user", Content: "Hi"},
			}
			_, err := orch.Complete(ctx, request(msgs...))
			Expect(err).NotTo(HaveOccurred())

			Expect(capability.messages).To(Equal(msgs))
		})

		It("injects when a system message appears later but not first", func() {
			_, err := orch.Complete(ctx, request(
				llm.Message{Role: "user", Content: "Hi"},
				llm.Message{Role: "system", Content: "late"},
			))
			Expect(err).NotTo(HaveOccurred())

			Expect(capability.messages).To(HaveLen(3))
			Expect(capability.messages[0].Content).To(Equal(completion.DefaultSystemPrompt))
		})

		It("does not modify the caller's slice", func() {
			msgs := make([]llm.Message, 1, 4)
			msgs[0] = llm.Message{Role: "user", Content: "Hi"}

			_, err := orch.Complete(ctx, request(msgs...))
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs[0].Role).To(Equal("user"))
		})

		It("uses a configured system prompt", func() {
			orch = completion.New(model.NewHandle("m", capability), zap.NewNop(),
				completion.WithSystemPrompt("You are a cheerful assistant."))

			_, err := orch.Complete(ctx, request(llm.Message{Role: "user", Content: "Hi"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(capability.messages[0].Content).To(Equal("You are a cheerful assistant."))
		})
	})

	Describe("the result", func() {
		It("strips the reasoning block and fills every field", func() {
			result, err := orch.Complete(ctx, request(llm.Message{Role: "user", Content: "Hi"}))
			Expect(err).NotTo(HaveOccurred())

			Expect(result.ID).To(Equal("chatcmpl-fixed"))
			Expect(result.Created).To(Equal(fixedTime))
			Expect(result.Model).To(Equal("qwen-3-1.7b"))
			Expect(result.Content).To(Equal("Hello there friend"))
			Expect(result.FinishReason).To(Equal("stop"))
		})

		It("counts usage over the augmented prompt and the sanitized reply", func() {
			result, err := orch.Complete(ctx, request(llm.Message{Role: "user", Content: "Hi"}))
			Expect(err).NotTo(HaveOccurred())

			// "You are a helpful AI assistant." is 6 words, "Hi" is 1.
			Expect(result.Usage.PromptTokens).To(Equal(7))
			Expect(result.Usage.CompletionTokens).To(Equal(3))
			Expect(result.Usage.TotalTokens).To(Equal(10))
		})

		It("passes the generation config through", func() {
			req := request(llm.Message{Role: "user", Content: "Hi"})
			req.Config.MaxTokens = 32
			req.Config.Sample = false

			_, err := orch.Complete(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(capability.config.MaxTokens).To(Equal(32))
			Expect(capability.config.Sample).To(BeFalse())
		})

		It("renders the OpenAI response shape", func() {
			result, err := orch.Complete(ctx, request(llm.Message{Role: "user", Content: "Hi"}))
			Expect(err).NotTo(HaveOccurred())

			resp := result.Response()
			Expect(resp.Object).To(Equal("chat.completion"))
			Expect(resp.Created).To(Equal(int64(1700000000)))
			Expect(resp.Choices).To(HaveLen(1))
			Expect(resp.Choices[0].Index).To(Equal(0))
			Expect(resp.Choices[0].Message).To(Equal(llm.Message{Role: "assistant", Content: "Hello there friend"}))
			Expect(resp.Choices[0].FinishReason).To(Equal("stop"))
			Expect(resp.Usage.TotalTokens).To(Equal(resp.Usage.PromptTokens + resp.Usage.CompletionTokens))
		})
	})

	Describe("failures", func() {
		It("wraps capability errors in a GenerationError", func() {
			cause := errors.New("CUDA out of memory")
			capability.err = cause

			_, err := orch.Complete(ctx, request(llm.Message{Role: "user", Content: "Hi"}))
			Expect(err).To(HaveOccurred())

			var genErr *completion.GenerationError
			Expect(errors.As(err, &genErr)).To(BeTrue())
			Expect(err).To(MatchError(cause))
			Expect(err.Error()).To(Equal("failed to generate reply: CUDA out of memory"))
		})

		It("reports an unloaded model", func() {
			orch = completion.New(nil, zap.NewNop())

			Expect(orch.ModelLoaded()).To(BeFalse())
			_, err := orch.Complete(ctx, request(llm.Message{Role: "user", Content: "Hi"}))
			Expect(err).To(MatchError(completion.ErrModelUnavailable))
		})
	})
})

var _ = Describe("CountUsage", func() {
	DescribeTable("counts whitespace-separated words",
		func(prompt []llm.Message, reply string, wantPrompt, wantCompletion int) {
			usage := completion.CountUsage(prompt, reply)
			Expect(usage.PromptTokens).To(Equal(wantPrompt))
			Expect(usage.CompletionTokens).To(Equal(wantCompletion))
			Expect(usage.TotalTokens).To(Equal(wantPrompt + wantCompletion))
		},
		Entry("empty", []llm.Message{}, "", 0, 0),
		Entry("mixed whitespace", []llm.Message{{Content: " a\tb\nc  "}}, "one  two", 3, 2),
		Entry("unspaced text counts as one", []llm.Message{{Content: "你好世界"}}, "北京", 1, 1),
		Entry("several messages", []llm.Message{{Content: "a b"}, {Content: "c"}}, "d", 3, 1),
	)
})

var _ = Describe("NewCompletionID", func() {
	It("has the chatcmpl prefix and 24 hex characters", func() {
		Expect(completion.NewCompletionID()).To(MatchRegexp(`^chatcmpl-[0-9a-f]{24}$`))
	})

	It("is unique per call", func() {
		Expect(completion.NewCompletionID()).NotTo(Equal(completion.NewCompletionID()))
	})
})
