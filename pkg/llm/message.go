package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var errMissingContent = errors.New("message content is required")

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // Flattened text content
}

// UnmarshalJSON accepts content either as a string or as an array of content parts.
// Text parts are concatenated in order; any other part is kept as its compact JSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	content, err := flattenContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = strings.TrimSpace(raw.Role)
	m.Content = content
	return nil
}

func flattenContent(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errMissingContent
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", errors.New("message content must be a string or an array of content parts")
	}

	var b strings.Builder
	for _, part := range parts {
		var textPart struct {
			Type string  `json:"type"`
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(part, &textPart); err == nil && textPart.Type == "text" && textPart.Text != nil {
			b.WriteString(*textPart.Text)
			continue
		}

		var compact bytes.Buffer
		if err := json.Compact(&compact, part); err != nil {
			return "", err
		}
		b.Write(compact.Bytes())
	}
	return b.String(), nil
}
