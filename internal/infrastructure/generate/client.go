// Package generate issues generation requests against a project's model
// endpoint and decodes the streamed response.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// Client streams model output from the project's generate endpoint.
type Client struct {
	httpClient *http.Client
	consumer   ports.StreamConsumer
	logger     ports.Logger
}

// NewClient builds a client. Generation streams stay open for the lifetime of
// the response, so a nil httpClient falls back to one without a global
// timeout; cancellation flows through the request context.
func NewClient(httpClient *http.Client, consumer ports.StreamConsumer, log ports.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, consumer: consumer, logger: log}
}

type generatePayload struct {
	Model        string  `json:"model"`
	UserPrompt   string  `json:"userPrompt"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	Temperature  float64 `json:"temperature"`
	MaxLen       int     `json:"maxLen"`
	TopP         float64 `json:"topP"`
	TopK         int     `json:"topK"`
	Stream       bool    `json:"stream"`
}

// Generate posts the request and pipes the event stream through h. The
// ingestor owns the terminal-callback guarantee; transport-level setup
// failures are returned directly without invoking handlers.
func (c *Client) Generate(ctx context.Context, project domain.Project, req ports.GenerateRequest, h ports.StreamHandlers) error {
	payload := generatePayload{
		Model:        project.ProviderID,
		UserPrompt:   req.UserPrompt,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Params.Temperature,
		MaxLen:       req.Params.MaxLen,
		TopP:         req.Params.TopP,
		TopK:         req.Params.TopK,
		Stream:       true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, project.GenerateURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("generate endpoint %s: %s", resp.Status, bytes.TrimSpace(raw))
	}

	err = c.consumer.Consume(ctx, resp.Body, h)
	if c.logger != nil {
		c.logger.Debug("generation stream finished", map[string]interface{}{
			"project":  project.Name,
			"duration": time.Since(started).String(),
		})
	}
	return err
}

var _ ports.Generator = (*Client)(nil)
