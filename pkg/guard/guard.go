// Package guard authorizes chat requests by trusted origin or bearer token.
package guard

import (
	"crypto/subtle"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

// Sentinel causes carried by AuthorizationError.
var (
	ErrMissingCredentials   = errors.New("missing Authorization header")
	ErrMalformedCredentials = errors.New("malformed Authorization header, expected: Bearer <token>")
	ErrInvalidCredentials   = errors.New("invalid API key")
)

// AuthorizationError rejects a request. Its message is safe to return to clients.
type AuthorizationError struct {
	Err error
}

func (e *AuthorizationError) Error() string {
	return e.Err.Error()
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// Config is the guard configuration.
type Config struct {
	// Token is the required bearer secret. Empty disables token checks.
	Token string

	// AllowedOrigins are exact Origin header values that skip token checks.
	AllowedOrigins []string
}

// Guard is a stateless request authorizer.
type Guard struct {
	token   string
	origins map[string]struct{}
	logger  *zap.Logger
}

// New creates a Guard.
func New(config Config, logger *zap.Logger) *Guard {
	origins := make(map[string]struct{}, len(config.AllowedOrigins))
	for _, origin := range config.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins[origin] = struct{}{}
		}
	}

	if config.Token == "" {
		logger.Warn("no API key configured, requests from origins outside the allow-list are not authenticated")
	}

	return &Guard{
		token:   config.Token,
		origins: origins,
		logger:  logger,
	}
}

// Authorize checks a request's Origin and Authorization header values.
// It returns nil or an *AuthorizationError.
func (g *Guard) Authorize(origin, authorization string) error {
	if origin != "" {
		if _, ok := g.origins[origin]; ok {
			g.logger.Debug("origin allow-listed, skipping token check", zap.String("origin", origin))
			return nil
		}
	}

	if g.token == "" {
		return nil
	}

	if authorization == "" {
		return &AuthorizationError{Err: ErrMissingCredentials}
	}
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return &AuthorizationError{Err: ErrMalformedCredentials}
	}

	token := authorization[len(bearerPrefix):]
	if subtle.ConstantTimeCompare([]byte(token), []byte(g.token)) != 1 {
		return &AuthorizationError{Err: ErrInvalidCredentials}
	}

	g.logger.Debug("API key accepted")
	return nil
}
