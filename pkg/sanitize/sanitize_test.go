package sanitize_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/localchat/chatbot/pkg/sanitize"
)

var _ = Describe("StripReasoning", func() {
	Context("when the text has no reasoning block", func() {
		DescribeTable("returns the text unchanged",
			func(text string) {
				Expect(sanitize.StripReasoning(text)).To(Equal(text))
				Expect(sanitize.HasReasoning(text)).To(BeFalse())
			},
			Entry("empty", ""),
			Entry("plain", "Hello there."),
			Entry("surrounding whitespace", "  padded answer \n"),
			Entry("unclosed block", "<think>still thinking"),
			Entry("close without open", "done</think> answer"),
		)
	})

	Context("when the text has one reasoning block", func() {
		It("removes a leading block and the whitespace after it", func() {
			Expect(sanitize.StripReasoning("<think>let me see</think>\n\nThe answer is 4.")).
				To(Equal("The answer is 4."))
		})

		It("handles blocks spanning multiple lines", func() {
			raw := "<think>\nstep one\nstep two\n</think>\nParis."
			Expect(sanitize.StripReasoning(raw)).To(Equal("Paris."))
		})

		It("removes an empty block", func() {
			Expect(sanitize.StripReasoning("<think></think>\n\nHi!")).To(Equal("Hi!"))
		})

		It("leaves the text before the block byte-identical", func() {
			raw := "Prefix  <think>hidden</think>  suffix "
			Expect(sanitize.StripReasoning(raw)).To(Equal("Prefix  suffix "))
		})

		It("does not trim whitespace that does not follow the block", func() {
			raw := "\n<think>x</think>answer\n"
			Expect(sanitize.StripReasoning(raw)).To(Equal("\nanswer\n"))
		})

		It("reports the block", func() {
			Expect(sanitize.HasReasoning("<think>x</think>y")).To(BeTrue())
		})
	})

	Context("when the text has several reasoning blocks", func() {
		It("removes only the first one", func() {
			raw := "<think>a</think> one <think>b</think> two"
			Expect(sanitize.StripReasoning(raw)).To(Equal("one <think>b</think> two"))
		})

		It("stops the first block at the nearest close marker", func() {
			raw := "<think>a</think>keep</think>"
			Expect(sanitize.StripReasoning(raw)).To(Equal("keep</think>"))
		})
	})
})
