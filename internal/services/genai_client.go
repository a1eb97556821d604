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

// GenAIClient is a single-shot wrapper around a hosted generative-text
// endpoint. It carries no retry or fallback logic; the pipeline owns the
// per-stage failure policy.
type GenAIClient interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

type genAIClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGenAIClient(cfg config.Config, log *logger.Logger) (GenAIClient, error) {
	if cfg.GenAIAPIKey == "" {
		return nil, fmt.Errorf("missing GENAI_API_KEY")
	}
	timeout := time.Duration(cfg.GenAITimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &genAIClient{
		log:        log.With("service", "GenAIClient"),
		baseURL:    cfg.GenAIBaseURL,
		apiKey:     cfg.GenAIAPIKey,
		model:      cfg.GenAIModel,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type generateRequest struct {
	Model    string            `json:"model"`
	Messages []generateMessage `json:"messages"`
}

type generateMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *genAIClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	req := generateRequest{
		Model: c.model,
		Messages: []generateMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return "", apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return "", apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, fmt.Errorf("genai request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, fmt.Errorf("genai read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed,
			fmt.Errorf("genai http %d: %s", resp.StatusCode, string(raw)))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, fmt.Errorf("genai decode: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return "", apierr.New(http.StatusBadGateway, apierr.CodeRemoteCallFailed, fmt.Errorf("genai: empty choices"))
	}
	return decoded.Choices[0].Message.Content, nil
}
