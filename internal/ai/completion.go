package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/domain"
)

// ChatMessage is one turn of conversation context sent to the completion
// collaborator.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the payload for one completion call.
type CompletionRequest struct {
	System    string        `json:"system,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// CompletionResult carries the generated reply and the collaborator's
// confidence signal.
type CompletionResult struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Completer is the external completion service collaborator.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	ClassifyPriority(ctx context.Context, text string) (domain.TicketPriority, error)
}

// HTTPCompleter calls the completion collaborator over HTTP, bounded by the
// configured timeout.
type HTTPCompleter struct {
	cfg    config.AIConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPCompleter builds the default completion client.
func NewHTTPCompleter(cfg config.AIConfig, logger *zap.Logger) *HTTPCompleter {
	return &HTTPCompleter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

type completionPayload struct {
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// Complete performs a single completion call.
func (c *HTTPCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if c.cfg.Endpoint == "" {
		return CompletionResult{}, errors.New("completion endpoint not configured")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	payload := completionPayload{
		Model:     c.cfg.Model,
		System:    req.System,
		Messages:  req.Messages,
		MaxTokens: maxTokens,
	}

	var result CompletionResult
	if err := c.post(ctx, c.cfg.Endpoint+"/v1/complete", payload, &result); err != nil {
		return CompletionResult{}, err
	}
	return result, nil
}

// ClassifyPriority asks the collaborator for a single-label urgency
// classification of the first customer message.
func (c *HTTPCompleter) ClassifyPriority(ctx context.Context, text string) (domain.TicketPriority, error) {
	if c.cfg.Endpoint == "" {
		return "", errors.New("completion endpoint not configured")
	}

	payload := completionPayload{
		Model: c.cfg.Model,
		System: "Classify the urgency of the following support request. " +
			"Respond with exactly one word: low, normal, high or urgent.",
		Messages:  []ChatMessage{{Role: "user", Content: text}},
		MaxTokens: 8,
	}

	var result CompletionResult
	if err := c.post(ctx, c.cfg.Endpoint+"/v1/complete", payload, &result); err != nil {
		return "", err
	}

	priority := domain.TicketPriority(strings.ToLower(strings.TrimSpace(result.Content)))
	if !domain.IsValidPriority(priority) {
		return "", fmt.Errorf("classifier returned unknown priority %q", result.Content)
	}
	return priority, nil
}

func (c *HTTPCompleter) post(ctx context.Context, url string, payload any, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("completion service returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
