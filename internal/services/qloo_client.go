package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sanctuarylabs/sanctuary-backend/internal/apierr"
	"github.com/sanctuarylabs/sanctuary-backend/internal/config"
	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
)

// MediaItem is one normalized (type, name) pair extracted from the user's
// free-text comfort-media references.
type MediaItem struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// TasteItem is one entry from the taste-graph response.
type TasteItem struct {
	Name   string `json:"name"`
	Author string `json:"author,omitempty"`
	Artist string `json:"artist,omitempty"`
}

// TasteClient wraps the third-party cultural-recommendation API. Failures
// surface as a single remote-call error; the caller owns fallback policy.
type TasteClient interface {
	Recommend(ctx context.Context, seed []MediaItem, domains []string) (map[string][]TasteItem, error)
}

type qlooClient struct {
	log        *logger.Logger
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

func NewQlooClient(cfg config.Config, log *logger.Logger) (TasteClient, error) {
	if cfg.QlooAPIKey == "" {
		return nil, fmt.Errorf("missing QLOO_API_KEY")
	}
	timeout := time.Duration(cfg.QlooTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &qlooClient{
		log:        log.With("service", "QlooClient"),
		apiURL:     cfg.QlooAPIURL,
		apiKey:     cfg.QlooAPIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type qlooRequest struct {
	Seed           []MediaItem `json:"seed"`
	Domain         []string    `json:"domain"`
	LimitPerDomain int         `json:"limit_per_domain"`
	IncludeSimilar bool        `json:"include_similar"`
}

type qlooResponse struct {
	Data map[string][]TasteItem `json:"data"`
}

func (c *qlooClient) Recommend(ctx context.Context, seed []MediaItem, domains []string) (map[string][]TasteItem, error) {
	req := qlooRequest{
		Seed:           seed,
		Domain:         domains,
		LimitPerDomain: 2,
		IncludeSimilar: true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &buf)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, fmt.Errorf("qloo request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, fmt.Errorf("qloo read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed,
			fmt.Errorf("qloo http %d: %s", resp.StatusCode, string(raw)))
	}

	var decoded qlooResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, fmt.Errorf("qloo decode: %w", err))
	}
	return decoded.Data, nil
}
