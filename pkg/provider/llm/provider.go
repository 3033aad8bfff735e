// Package llm defines the Provider interface for Large Language Model backends.
//
// Pageglot treats the LLM as an oracle: its output is untrusted and must be
// validated and repaired by the caller (see the segment and translate
// packages). The Provider interface therefore stays deliberately small — a
// single blocking completion call, an availability probe, and static model
// capabilities.
//
// Implementors must be safe for concurrent use. A Provider instance is
// long-lived and reused across chunks within a page session; constructing a
// fresh instance per request is explicitly avoided for latency.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable signals that the backend capability is absent or disabled —
// a first-class outcome, not a runtime failure. Callers are expected to treat
// it as "use the deterministic fallback", never to surface it to a user.
var ErrUnavailable = errors.New("llm: backend unavailable")

// Message is a single entry in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation history. Providers without a dedicated system slot prepend
	// it as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. The segmentation
	// and rewrite prompts run near 0 for repeatability.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// textual content.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the full, non-streaming model reply.
type CompletionResponse struct {
	// Content is the text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Capabilities describes static model limits. The result is assumed constant
// for the lifetime of the Provider instance.
type Capabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns [ErrUnavailable] (possibly wrapped) when the capability is
	// absent rather than transiently failing.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Available reports whether the backend can currently serve requests.
	// It must be cheap — callers probe it before every oracle-dependent
	// phase to decide between the oracle and the deterministic fallback.
	Available(ctx context.Context) bool

	// Capabilities returns static metadata about the underlying model.
	Capabilities() Capabilities
}
