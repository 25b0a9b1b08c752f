// Package ai provides the LLM client used for headline synthesis and story
// summaries.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	generateTimeout = 60 * time.Second
	headlineTokens  = 100
	summaryTokens   = 200
)

// Client is an HTTP client for the Ollama API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a new Client for the given base URL and model.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: generateTimeout,
		},
	}
}

// generateRequest is the JSON body sent to POST /api/generate.
type generateRequest struct {
	Model   string           `json:"model"`
	System  string           `json:"system,omitempty"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// generateResponse is a single JSON object in the Ollama streaming
// response; each line carries a partial "response" field until done=true.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Headline asks the LLM for one replacement headline synthesized from the
// current title and the source headlines. The caller validates the result;
// this only strips label noise.
func (c *Client) Headline(ctx context.Context, current string, sourceTitles []string) (string, error) {
	systemPrompt := `You write news headlines. Your ONLY job is to output one headline.

RULES:
- 8 to 15 words, plain text
- Synthesize the most specific framing the source headlines agree on
- Prefer concrete facts (who, what, where, numbers) over vague phrasing
- Output ONLY the headline, nothing else
- No quotes, no label, no commentary, no explanations`

	var sb strings.Builder
	sb.WriteString("Current headline: ")
	sb.WriteString(current)
	sb.WriteString("\n\nSource headlines:\n")
	for _, t := range sourceTitles {
		sb.WriteString("- ")
		sb.WriteString(t)
		sb.WriteString("\n")
	}

	out, err := c.generate(ctx, systemPrompt, sb.String(), headlineTokens)
	if err != nil {
		return "", err
	}

	out = cleanResponse(out)
	for _, label := range []string{"headline:", "new headline:"} {
		if len(out) >= len(label) && strings.EqualFold(out[:len(label)], label) {
			out = strings.TrimSpace(out[len(label):])
		}
	}
	if out == "" {
		return "", fmt.Errorf("ollama headline: produced empty or invalid headline")
	}
	return out, nil
}

// Summarize asks the LLM for a 2-3 sentence summary of a story digest.
func (c *Client) Summarize(ctx context.Context, digest string) (string, error) {
	systemPrompt := `You are a news summarizer. Your ONLY job is to output a 2-3 sentence summary.

RULES:
- Summarize what the sources agree happened, most recent developments first
- Be factual and concise
- Output ONLY the summary text, nothing else
- Do NOT explain what you are doing
- Do NOT say "I cannot" or "there is no information"
- Do NOT add commentary, disclaimers, or meta-text`

	summary, err := c.generate(ctx, systemPrompt, digest, summaryTokens)
	if err != nil {
		return "", err
	}

	summary = cleanResponse(summary)
	if summary == "" {
		return "", fmt.Errorf("ollama summarize: produced empty or invalid summary")
	}
	return summary, nil
}

// generate performs a POST to /api/generate and concatenates the streamed
// response into a single string.
func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	reqBody := generateRequest{
		Model:   c.model,
		System:  systemPrompt,
		Prompt:  userPrompt,
		Stream:  true,
		Options: &generateOptions{NumPredict: maxTokens},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama generate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama generate: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, string(respBody))
	}

	// Ollama streams JSON objects, one per line. Concatenate the "response"
	// fields to build the full response.
	var sb strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for decoder.More() {
		var chunk generateResponse
		if err := decoder.Decode(&chunk); err != nil {
			// If we already have some content, return what we have.
			if sb.Len() > 0 {
				break
			}
			return "", fmt.Errorf("ollama generate: decode chunk: %w", err)
		}
		sb.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}

	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "", fmt.Errorf("ollama generate: empty response")
	}

	return result, nil
}

// garbagePatterns are substrings that indicate the model returned
// commentary instead of the requested output. Case-insensitive check.
var garbagePatterns = []string{
	"i cannot",
	"i can't",
	"i don't have",
	"i am unable",
	"i'm unable",
	"as an ai",
	"as a language model",
	"there is no information",
	"not enough information",
	"please provide",
	"based on the context",
	"here is a",
	"here's a",
	"i would suggest",
	"if i had to",
}

// cleanResponse strips garbage commentary from a response. Returns empty
// string if the response is entirely garbage.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	for _, pattern := range garbagePatterns {
		if strings.Contains(lower, pattern) {
			return ""
		}
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
