package types

// CompletionRequest is the subset of the backend's completion payload the
// gateway itself produces (warm-up traffic and the gatectl smoke check).
// Live traffic is forwarded verbatim and never unmarshalled into this type.
type CompletionRequest struct {
	// Model identifier as exposed by the backend (repo name without the org).
	// example: DeepSeek-R1-Distill-Qwen-1.5B
	Model string `json:"model,omitempty" example:"DeepSeek-R1-Distill-Qwen-1.5B"`
	// Prompt text to complete.
	Prompt string `json:"prompt"`
	// Maximum number of new tokens to generate.
	// example: 10
	MaxTokens int `json:"max_tokens,omitempty" example:"10"`
	// Sampling temperature. Warm-up uses 0 for determinism.
	Temperature float64 `json:"temperature"`
}

// CompletionChoice is a single completion result.
type CompletionChoice struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// CompletionResponse is the minimal completion response shape the smoke
// check inspects.
type CompletionResponse struct {
	ID      string             `json:"id,omitempty"`
	Choices []CompletionChoice `json:"choices"`
}

// HealthResponse is returned by the gateway's unauthenticated health path.
type HealthResponse struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	KeysLoaded int    `json:"keys_loaded"`
}

// ReloadResponse is returned by the admin key-reload path on success.
type ReloadResponse struct {
	Status     string `json:"status"`
	KeysLoaded int    `json:"keys_loaded"`
	Message    string `json:"message,omitempty"`
}

// ErrorResponse is the gateway's JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
