package guard_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/localchat/chatbot/pkg/guard"
)

const trustedOrigin = "https://admin.example.com"

var _ = Describe("Guard", func() {
	newGuard := func(token string) *guard.Guard {
		return guard.New(guard.Config{
			Token:          token,
			AllowedOrigins: []string{trustedOrigin, " https://spaced.example.com "},
		}, zap.NewNop())
	}

	Context("when the origin is allow-listed", func() {
		DescribeTable("authorizes regardless of credentials",
			func(token, header string) {
				Expect(newGuard(token).Authorize(trustedOrigin, header)).To(Succeed())
			},
			Entry("no secret, no header", "", ""),
			Entry("secret, no header", "abc", ""),
			Entry("secret, wrong scheme", "abc", "Basic abc"),
			Entry("secret, wrong token", "abc", "Bearer nope"),
		)

		It("trims configured origins", func() {
			Expect(newGuard("abc").Authorize("https://spaced.example.com", "")).To(Succeed())
		})
	})

	Context("when no secret is configured", func() {
		DescribeTable("authorizes every request",
			func(origin, header string) {
				Expect(newGuard("").Authorize(origin, header)).To(Succeed())
			},
			Entry("no origin", "", ""),
			Entry("unknown origin", "https://evil.example.com", ""),
			Entry("garbage header", "", "garbage"),
		)
	})

	Context("when a secret is configured and the origin is not trusted", func() {
		DescribeTable("rejects bad credentials",
			func(origin, header string, cause error) {
				err := newGuard("abc").Authorize(origin, header)
				Expect(err).To(HaveOccurred())

				var authErr *guard.AuthorizationError
				Expect(errors.As(err, &authErr)).To(BeTrue())
				Expect(err).To(MatchError(cause))
				Expect(err.Error()).To(Equal(cause.Error()))
			},
			Entry("missing header", "", "", guard.ErrMissingCredentials),
			Entry("unknown origin, missing header", "https://evil.example.com", "", guard.ErrMissingCredentials),
			Entry("basic scheme", "", "Basic abc", guard.ErrMalformedCredentials),
			Entry("lowercase scheme", "", "bearer abc", guard.ErrMalformedCredentials),
			Entry("scheme without space", "", "Bearerabc", guard.ErrMalformedCredentials),
			Entry("wrong token", "", "Bearer abd", guard.ErrInvalidCredentials),
			Entry("token with trailing space", "", "Bearer abc ", guard.ErrInvalidCredentials),
			Entry("empty token", "", "Bearer ", guard.ErrInvalidCredentials),
			Entry("origin differing by trailing slash", trustedOrigin+"/", "", guard.ErrMissingCredentials),
		)

		It("accepts the exact token", func() {
			Expect(newGuard("abc").Authorize("", "Bearer abc")).To(Succeed())
			Expect(newGuard("abc").Authorize("https://evil.example.com", "Bearer abc")).To(Succeed())
		})
	})
})
