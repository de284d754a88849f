// Package model defines the text-completion collaborator interface used by
// the conversation and orchestration agents, together with provider adapters
// in the subpackages. The workflow treats the model as an opaque, fallible
// single-completion service: a short ordered list of role-tagged messages in,
// one text completion out.
package model

import "context"

// Message is a role-tagged turn sent to the completion service.
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// Request carries the prompt window for one completion.
type Request struct {
	System   string
	Messages []Message
}

// Response is the result of one completion call.
type Response struct {
	Content string
	// TokensUsed is total token usage as reported by the provider, or 0
	// when the provider reports none.
	TokensUsed   int
	Model        string
	FinishReason string
}

// Model is the text-completion collaborator. Implementations must be safe
// for concurrent use; calls may be slow and must respect ctx cancellation.
type Model interface {
	// Name returns the provider/model identifier used in logs and sources.
	Name() string

	Complete(ctx context.Context, req Request) (*Response, error)
}
