// Package service talks to the OpenAI-compatible classification endpoint.
// Every call requests JSON mode and decodes the completion into a generic
// map; classification stages pick out the keys they own. Transport failures
// retry with exponential backoff, and malformed completions go through a
// brace-matching salvage pass before the call is declared failed.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"defrec/internal/config"
	"defrec/internal/logging"
)

const defaultSystemMessage = "You are a defense market analyst. Respond with a single JSON object and nothing else."

// minRequestSpacing keeps a floor between consecutive requests so batch runs
// do not trip provider rate limits.
const minRequestSpacing = 100 * time.Millisecond

// Client is the surface the classification stages depend on. Tests swap in
// a fake; production uses OpenAIClient.
type Client interface {
	CompleteJSON(ctx context.Context, systemMsg, userPrompt string) (map[string]any, error)
}

// OpenAIClient implements Client against a chat completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewOpenAIClient builds a client from the service configuration.
func NewOpenAIClient(cfg config.ServiceConfig) (*OpenAIClient, error) {
	timeout := 60 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid service timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxRetries: retries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// CompleteJSON sends one prompt and returns the decoded JSON object.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, systemMsg, userPrompt string) (map[string]any, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	log := logging.Get(logging.CategoryService).Sugar()
	start := time.Now()

	if strings.TrimSpace(systemMsg) == "" {
		systemMsg = defaultSystemMessage
	}

	c.throttle()

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemMsg},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:      2048,
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		content, retryable, err := c.doRequest(ctx, &reqBody)
		if err != nil {
			if !retryable {
				return nil, err
			}
			lastErr = err
			log.Debugw("service request retry", "attempt", attempt+1, "error", err)
			continue
		}

		obj, err := decodeObject(content)
		if err != nil {
			return nil, fmt.Errorf("completion is not a JSON object: %w", err)
		}
		log.Debugw("service call complete", "elapsed", time.Since(start), "keys", len(obj))
		return obj, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single round trip. The bool reports whether a failure
// is worth retrying.
func (c *OpenAIClient) doRequest(ctx context.Context, reqBody *chatRequest) (string, bool, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("rate limit exceeded (429)")
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("server error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode == http.StatusBadRequest && reqBody.ResponseFormat != nil &&
		strings.Contains(string(body), "response_format"):
		// Some providers reject JSON mode; drop it and rely on salvage.
		reqBody.ResponseFormat = nil
		return "", true, fmt.Errorf("endpoint rejected response_format")
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("service error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}

// throttle enforces the minimum spacing between requests.
func (c *OpenAIClient) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed := time.Since(c.lastRequest); elapsed < minRequestSpacing {
		time.Sleep(minRequestSpacing - elapsed)
	}
	c.lastRequest = time.Now()
}

// decodeObject parses a completion into a JSON object, salvaging embedded
// JSON when the model wrapped it in prose or code fences.
func decodeObject(content string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		return obj, nil
	}
	salvaged := extractJSON(content)
	if salvaged == "" {
		return nil, fmt.Errorf("no JSON object found in %d bytes of output", len(content))
	}
	if err := json.Unmarshal([]byte(salvaged), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// extractJSON pulls the first balanced JSON object out of text, ignoring
// braces inside string literals.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
