// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package topic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/research-journey/internal/httputil"
	"github.com/pdiddy/research-journey/pkg/types"
)

// Recommender suggests topics for a set of interests.
type Recommender interface {
	Recommend(ctx context.Context, interests []string, n int) ([]types.Topic, error)
}

// HTTPRecommender asks an AI inference endpoint for topics.
//
// Request:  POST {"model": "...", "interests": [...], "count": n}
// Response: {"topics": [{"title": ..., "description": ..., "keywords": [...], ...}]}
type HTTPRecommender struct {
	client *httputil.Client
	url    string
	apiKey string
	model  string
}

// NewHTTPRecommender returns a recommender for cfg.RecommenderURL.
func NewHTTPRecommender(cfg types.TopicConfig, client *httputil.Client) *HTTPRecommender {
	return &HTTPRecommender{client: client, url: cfg.RecommenderURL, apiKey: cfg.APIKey, model: cfg.Model}
}

type recommendRequest struct {
	Model     string   `json:"model,omitempty"`
	Interests []string `json:"interests"`
	Count     int      `json:"count"`
}

type recommendResponse struct {
	Topics []types.Topic `json:"topics"`
}

// Recommend implements Recommender.
func (r *HTTPRecommender) Recommend(ctx context.Context, interests []string, n int) ([]types.Topic, error) {
	if n <= 0 {
		n = 5
	}
	body, err := json.Marshal(recommendRequest{Model: r.model, Interests: interests, Count: n})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating recommend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	var out recommendResponse
	if err := r.client.DoJSON(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("recommending topics: %w", err)
	}

	topics := make([]types.Topic, 0, len(out.Topics))
	for _, t := range out.Topics {
		if t.Title == "" {
			continue
		}
		if t.ID == "" {
			t.ID = "ai-" + slug(t.Title)
		}
		t.Selection = nil
		topics = append(topics, t)
		if len(topics) == n {
			break
		}
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("recommender returned no topics")
	}
	return topics, nil
}
