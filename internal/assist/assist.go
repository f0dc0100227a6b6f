// Package assist is the boundary to the AI co-narrator. Whatever backs
// it, failures never cross this boundary as errors: callers always get
// text they can put straight into the chat.
package assist

import "context"

// Turn is one prior exchange in the conversation.
type Turn struct {
	Role string
	Text string
}

// DocumentRef is a reference document handed to the model for grounding.
type DocumentRef struct {
	Title   string
	Content string
}

// Generator produces the AI side of the narrative. Implementations must
// resolve internal failures to a user-facing apology string instead of
// returning an error; identical inputs are not guaranteed identical
// outputs.
type Generator interface {
	Generate(ctx context.Context, history []Turn, documents []DocumentRef, prompt string) string
}

// apology is returned whenever the backend fails.
const apology = "Error interacting with AI. Please check your API key or connection."

// Static is a canned-reply generator for tests and keyless setups.
type Static struct {
	Reply string
}

func (s Static) Generate(_ context.Context, _ []Turn, _ []DocumentRef, _ string) string {
	if s.Reply == "" {
		return "The AI assistant is not configured; set GEMINI_API_KEY to enable it."
	}
	return s.Reply
}
