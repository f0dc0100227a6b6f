package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

const systemInstruction = `You are an expert collaborative writing assistant.
You are helping a Lead Writer (Host) build a narrative.
You have access to a set of reference documents provided by the Host.
Use these documents to inform your responses, ensuring consistency and factual accuracy based on the provided text.

Style: Professional, articulate, and creative.
`

// Gemini calls the Google generative language REST API.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGemini builds a client for the given model id. A zero timeout
// defaults to 60 seconds.
func NewGemini(apiKey, model string, timeout time.Duration) *Gemini {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Gemini{
		apiKey:   apiKey,
		model:    model,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// WithEndpoint overrides the API base URL, for tests.
func (g *Gemini) WithEndpoint(endpoint string) *Gemini {
	g.endpoint = strings.TrimRight(endpoint, "/")
	return g
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate runs one turn. The conversation history and the reference
// documents are flattened into the prompt; callers are expected to pass
// only a recent, bounded slice of history to keep request size in check.
func (g *Gemini) Generate(ctx context.Context, history []Turn, documents []DocumentRef, prompt string) string {
	body, err := json.Marshal(generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: buildSystemInstruction(documents)}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: buildPrompt(history, prompt)}}}},
	})
	if err != nil {
		log.Printf("assist: marshal request: %v", err)
		return apology
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("assist: build request: %v", err)
		return apology
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		log.Printf("assist: request failed: %v", err)
		return apology
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("assist: backend returned %d", resp.StatusCode)
		return apology
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("assist: decode response: %v", err)
		return apology
	}

	text := extractText(parsed)
	if text == "" {
		return "No response generated."
	}
	return text
}

func buildSystemInstruction(documents []DocumentRef) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\nStart of Reference Documents:\n")
	for i, doc := range documents {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "DOCUMENT TITLE: %s\nCONTENT:\n%s", doc.Title, doc.Content)
	}
	b.WriteString("\nEnd of Reference Documents.\n")
	return b.String()
}

func buildPrompt(history []Turn, prompt string) string {
	if len(history) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString("PREVIOUS CONVERSATION CONTEXT:\n")
	for _, turn := range history {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(turn.Role), turn.Text)
	}
	b.WriteString("\nCURRENT REQUEST:\n")
	b.WriteString(prompt)
	return b.String()
}

func extractText(resp generateResponse) string {
	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

// RecentWindow returns the trailing n turns of history, the slice the
// caller should hand to Generate.
func RecentWindow(history []Turn, n int) []Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
