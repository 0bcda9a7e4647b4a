package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/config"
)

// KnowledgeResult is one knowledge-base hit for a customer message.
type KnowledgeResult struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Searcher is the external knowledge-search collaborator. Implementations
// must degrade to an empty result set rather than failing ingest.
type Searcher interface {
	Search(ctx context.Context, query string) []KnowledgeResult
}

// KnowledgeClient searches the knowledge collaborator with a bounded result
// cache and a token-bucket rate limiter. Every failure path (timeout,
// transport error, rate limit exhaustion) returns an empty slice and logs
// internally; callers never see an error.
type KnowledgeClient struct {
	cfg     config.KnowledgeConfig
	client  *http.Client
	cache   *ResultCache
	limiter *TokenBucket
	logger  *zap.Logger
}

// NewKnowledgeClient builds the default search client with its injected
// cache and limiter.
func NewKnowledgeClient(cfg config.KnowledgeConfig, cache *ResultCache, limiter *TokenBucket, logger *zap.Logger) *KnowledgeClient {
	return &KnowledgeClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout()},
		cache:   cache,
		limiter: limiter,
		logger:  logger,
	}
}

type searchPayload struct {
	Query     string  `json:"query"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
}

type searchResponse struct {
	Results []KnowledgeResult `json:"results"`
}

// Search returns up to TopK results above the similarity threshold.
func (k *KnowledgeClient) Search(ctx context.Context, query string) []KnowledgeResult {
	if k.cfg.Endpoint == "" {
		return nil
	}
	if cached, ok := k.cache.Get(query); ok {
		return cached
	}
	if !k.limiter.Allow() {
		k.logger.Warn("knowledge search rate limited", zap.String("query", query))
		return nil
	}

	results, err := k.search(ctx, query)
	if err != nil {
		k.logger.Warn("knowledge search failed", zap.Error(err))
		return nil
	}

	filtered := make([]KnowledgeResult, 0, len(results))
	for _, result := range results {
		if result.Score >= k.cfg.SimilarityThreshold {
			filtered = append(filtered, result)
		}
	}
	k.cache.Set(query, filtered)
	return filtered
}

func (k *KnowledgeClient) search(ctx context.Context, query string) ([]KnowledgeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, k.cfg.Timeout())
	defer cancel()

	body, err := json.Marshal(searchPayload{
		Query:     query,
		TopK:      k.cfg.TopK,
		Threshold: k.cfg.SimilarityThreshold,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.cfg.Endpoint+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge service returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Results, nil
}
