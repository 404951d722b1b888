// Package analyzer sends a post's recipe text to the Gemini generateContent
// endpoint and returns the model's reply. One outbound call, no retries.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	model          = "gemini-1.5-flash"
)

const promptTemplate = `
Here is a recipe in free-text format:
%s

Please analyze the recipe and provide - keep it short please and please write without using bold in your reply:
1. Estimated preparation time in minutes.
2. Estimated difficulty level (Easy, Medium, Hard).
3. Cuisine the recipe fits into.
4. Useful preparation tips.
If any information cannot be inferred, mention it explicitly.
`

// Client calls the text-generation API. BaseURL is overridable for tests.
type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
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

// AnalyzeRecipe wraps recipe text in the fixed prompt and returns the raw
// model reply.
func (c *Client) AnalyzeRecipe(ctx context.Context, recipe string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("analyzer: api key is not set")
	}
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, recipe)}}}},
	})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyzer: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyzer: api returned %d: %s", resp.StatusCode, b)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("analyzer: decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("analyzer: empty response from api")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
