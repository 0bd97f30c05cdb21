// Package botrisk verifies bot-likelihood tokens against an external
// challenge service. The client only reports pass/reject/error; the
// fail-open/fail-closed policy on errors belongs to the caller.
package botrisk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client verifies challenge tokens over HTTP. Every call is bounded by the
// configured timeout so a slow dependency cannot stall request handling.
type Client struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

// NewClient creates a verification client for the given endpoint and shared
// secret.
func NewClient(endpoint, secret string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// scoreThreshold rejects tokens the challenge service scored as
// likely-automated even when the token itself validated.
const scoreThreshold = 0.5

// Verify checks one token. (false, nil) is a legitimate bot determination;
// a non-nil error means the service itself was unreachable or misbehaved and
// is subject to the deployment's fail policy.
func (c *Client) Verify(ctx context.Context, token, clientIP string) (bool, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if clientIP != "" {
		form.Set("remoteip", clientIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build bot-risk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("bot-risk service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("bot-risk service returned status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode bot-risk response: %w", err)
	}

	if !body.Success {
		return false, nil
	}
	if body.Score != nil && *body.Score < scoreThreshold {
		return false, nil
	}
	return true, nil
}

// AllowAll is the bypass checker used when the bot check is disabled and in
// test execution.
type AllowAll struct{}

// Verify always passes.
func (AllowAll) Verify(context.Context, string, string) (bool, error) {
	return true, nil
}
