// File path: internal/assessment/client.go
package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crestlinecoaching/buildflow/internal/lead"
)

// Link is the result of minting an assessment link: the one-time login code
// and, when the API issues one, the full response URL.
type Link struct {
	LoginCode   string `json:"login_code"`
	ResponseURL string `json:"response_url"`
}

// Client mints assessment links. Called exactly once per leader, on first
// creation of their build artifact; the login code must never be
// regenerated afterwards.
type Client interface {
	CreateLink(ctx context.Context, info lead.Info) (Link, error)
}

const (
	defaultTimeout = 15 * time.Second
	maxAttempts    = 3
	retryBackoff   = 2 * time.Second
)

// HTTPClient talks to the external assessment API over a single synchronous
// POST. Transport errors and 5xx responses are retried with backoff inside
// the per-call deadline; any other failure is hard.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	backoff time.Duration
}

// New builds an HTTP-backed client.
func New(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
		backoff: retryBackoff,
	}
}

type createRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Company   string `json:"company,omitempty"`
}

// CreateLink mints a login code for the leader. A non-2xx response or a
// response missing the login code is a hard failure: the caller must not
// record the event as processed without a code.
func (c *HTTPClient) CreateLink(ctx context.Context, info lead.Info) (Link, error) {
	payload, err := json.Marshal(createRequest{
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     info.Email,
		Company:   info.Company,
	})
	if err != nil {
		return Link{}, fmt.Errorf("encode link request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return Link{}, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt-1)):
			}
		}
		link, retryable, err := c.attempt(ctx, payload)
		if err == nil {
			return link, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Link{}, lastErr
}

func (c *HTTPClient) attempt(ctx context.Context, payload []byte) (Link, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/links", bytes.NewReader(payload))
	if err != nil {
		return Link{}, false, fmt.Errorf("build link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Link{}, true, fmt.Errorf("call assessment api: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Link{}, true, fmt.Errorf("read assessment response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return Link{}, true, fmt.Errorf("assessment api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Link{}, false, fmt.Errorf("assessment api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var link Link
	if err := json.Unmarshal(body, &link); err != nil {
		return Link{}, false, fmt.Errorf("decode assessment response: %w", err)
	}
	if strings.TrimSpace(link.LoginCode) == "" {
		return Link{}, false, fmt.Errorf("assessment response missing login code")
	}
	return link, false, nil
}
