package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/matchbook/market-engine/internal/model"
)

// Client is the HTTP gateway to the consensus service. The service runs a
// prompt on several independent executors and returns an answer only after
// they agree; from here that whole machinery is a single blocking call.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a gateway client. endpoint is the consensus service
// base URL, e.g. "https://oracle.internal:9090".
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second // consensus rounds are slow
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// askRequest is the JSON envelope posted to the consensus service.
type askRequest struct {
	RequestID string `json:"request_id"`
	Prompt    string `json:"prompt"`
	Criteria  string `json:"criteria"`
}

// askResponse is the consensus service's reply envelope.
type askResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// Ask submits the prompt and blocks until the executors agree or the call
// fails. The returned string is the raw agreed answer, fences and all.
func (c *Client) Ask(ctx context.Context, prompt, criteria string) (string, error) {
	reqID := uuid.New().String()

	body, err := json.Marshal(askRequest{
		RequestID: reqID,
		Prompt:    prompt,
		Criteria:  criteria,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", model.ErrOracle, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/ask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrOracle, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request %s: %v", model.ErrOracle, reqID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: request %s: read response: %v", model.ErrOracle, reqID, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: request %s: consensus service returned %d: %s",
			model.ErrOracle, reqID, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out askResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: request %s: decode envelope: %v", model.ErrOracle, reqID, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: request %s: %s", model.ErrOracle, reqID, out.Error)
	}

	slog.Info("oracle consensus reached",
		"request_id", reqID,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out.Answer, nil
}
