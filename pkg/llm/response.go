package llm

// FinishReasonStop is the only finish reason the service reports.
const FinishReasonStop = "stop"

// ChatCompletionResponse represents an OpenAI-style chat completion.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"` // always "chat.completion"
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single generated alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage records approximate token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelList is the response of the model listing endpoint.
type ModelList struct {
	Object string      `json:"object"` // always "list"
	Data   []ModelCard `json:"data"`
}

// ModelCard describes one served model.
type ModelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // always "model"
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// HealthStatus is the response of the health endpoint.
type HealthStatus struct {
	Status      string `json:"status"` // always "healthy"
	ModelLoaded bool   `json:"model_loaded"`
	Timestamp   int64  `json:"timestamp"`
}
