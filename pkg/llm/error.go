// Package llm provides the wire representations of the chat API: OpenAI-style
// requests and responses, message content flattening and request validation.
package llm

import "fmt"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationError reports a request body that failed decoding or range checks.
type ValidationError struct {
	Field  string // The offending field, "body" for undecodable payloads
	Value  any    // The rejected value, if any
	Reason string // Human-readable explanation
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
