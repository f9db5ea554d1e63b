package license

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultVerifyURL is Gumroad's license verification endpoint.
	DefaultVerifyURL = "https://api.gumroad.com/v2/licenses/verify"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// verifyResponse is the subset of Gumroad's reply we rely on.
type verifyResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// GumroadClient verifies license keys against the Gumroad API.
type GumroadClient struct {
	client   *http.Client
	endpoint string
}

// ClientOption configures a GumroadClient.
type ClientOption func(*GumroadClient)

// WithEndpoint overrides the verification URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *GumroadClient) {
		if strings.TrimSpace(endpoint) != "" {
			c.endpoint = strings.TrimSpace(endpoint)
		}
	}
}

// NewGumroadClient builds a client with the given request timeout
// (10s when timeout <= 0).
func NewGumroadClient(timeout time.Duration, opts ...ClientOption) *GumroadClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &GumroadClient{
		client:   &http.Client{Timeout: timeout},
		endpoint: DefaultVerifyURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Verify checks key against the product identified by permalink. It makes
// exactly one request and never retries.
func (c *GumroadClient) Verify(ctx context.Context, permalink, key string) Result {
	form := url.Values{}
	form.Set("product_permalink", permalink)
	form.Set("license_key", key)
	form.Set("increment_uses_count", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Kind: Transport, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Kind: Transport, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Kind: Transport, Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Kind: HTTPStatus, Status: resp.StatusCode, Message: messageFrom(body)}
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return Result{Kind: Malformed, Status: resp.StatusCode, Message: err.Error()}
	}
	if vr.Success == nil {
		return Result{Kind: Malformed, Status: resp.StatusCode, Message: errMissingSuccess.Error()}
	}
	if !*vr.Success {
		return Result{Kind: Rejected, Status: resp.StatusCode, Message: vr.Message}
	}
	return Result{Kind: Verified, Status: resp.StatusCode}
}

var errMissingSuccess = errors.New("response has no success field")

// messageFrom extracts Gumroad's message from an error body, if any.
func messageFrom(body []byte) string {
	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return ""
	}
	return vr.Message
}
