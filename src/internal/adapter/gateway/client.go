package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
	"github.com/aspoi/membership-payments/src/internal/metrics"
)

const maxResponseBytes = 1 << 20

// restClient is the bearer-token JSON client shared by the REST adapters.
type restClient struct {
	provider   domain.Provider
	baseURL    string
	secretKey  string
	httpClient *http.Client
	observer   *metrics.Observer
}

func newRESTClient(provider domain.Provider, baseURL string, secretKey string, timeout time.Duration, observer *metrics.Observer) restClient {
	return restClient{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		observer:   observer,
	}
}

func (c restClient) do(ctx context.Context, op string, method string, path string, payload any) ([]byte, error) {
	start := time.Now()
	body, err := c.send(ctx, method, path, payload)
	c.observer.RecordGatewayCall(string(c.provider), op, time.Since(start), err)
	if err != nil {
		logger.Error("gateway request failed", err, logger.Fields{
			"provider":   c.provider,
			"operation":  op,
			"path":       path,
			"durationMs": time.Since(start).Milliseconds(),
		})
		return nil, &domain.GatewayError{Provider: c.provider, Op: op, Err: err}
	}

	logger.Info("gateway request success", logger.Fields{
		"provider":   c.provider,
		"operation":  op,
		"path":       path,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return body, nil
}

func (c restClient) send(ctx context.Context, method string, path string, payload any) ([]byte, error) {
	if c.secretKey == "" {
		return nil, fmt.Errorf("secret key is not configured")
	}

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet(body))
	}

	return body, nil
}

func snippet(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}

// metadataMap decodes provider metadata that may arrive as an object, a JSON
// encoded string, or an empty string.
func metadataMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err == nil {
		return out
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil && strings.TrimSpace(encoded) != "" {
		if err := json.Unmarshal([]byte(encoded), &out); err == nil {
			return out
		}
	}

	return nil
}

func metadataString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	value, ok := meta[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
