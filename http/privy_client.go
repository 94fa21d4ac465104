package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

// ============================================================================
// Privy Client
// ============================================================================

// PrivyClient talks to the custody provider's REST API.
// It holds no per-request state; one client serves the whole process.
type PrivyClient struct {
	appID      string
	appSecret  string
	apiURL     string
	authURL    string
	httpClient *http.Client
	retry      sponsor.RetryPolicy
}

// PrivyConfig configures the provider client
type PrivyConfig struct {
	// AppID and AppSecret authenticate the app with HTTP basic auth
	AppID     string
	AppSecret string

	// APIURL is the wallet API base URL (optional)
	APIURL string

	// AuthURL is the user API base URL (optional)
	AuthURL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration

	// Retry applies to lookups and authentication only; wallet creation
	// and transaction relay are never retried.
	Retry sponsor.RetryPolicy
}

// DefaultTimeout bounds every outbound provider call
const DefaultTimeout = 30 * time.Second

// NewPrivyClient creates a new provider client
func NewPrivyClient(config *PrivyConfig) *PrivyClient {
	if config == nil {
		config = &PrivyConfig{}
	}

	apiURL := strings.TrimRight(config.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	authURL := strings.TrimRight(config.AuthURL, "/")
	if authURL == "" {
		authURL = DefaultAuthURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &PrivyClient{
		appID:      config.AppID,
		appSecret:  config.AppSecret,
		apiURL:     apiURL,
		authURL:    authURL,
		httpClient: httpClient,
		retry:      config.Retry,
	}
}

// ============================================================================
// Errors
// ============================================================================

// APIError is a non-2xx reply from the provider
type APIError struct {
	StatusCode int
	// Message is the provider's own error text, when the body carried one
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("privy request failed (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("privy request failed (%d): %s", e.StatusCode, e.Body)
}

// ProviderMessage returns the provider's error text, or a status summary
// when the reply had none.
func (e *APIError) ProviderMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Body != "" {
		return e.Body
	}
	return "Unknown error"
}

// Temporary reports whether the status is worth retrying
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: strings.TrimSpace(string(body))}

	var envelope struct {
		Error   interface{} `json:"error"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch v := envelope.Error.(type) {
		case string:
			apiErr.Message = v
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok {
				apiErr.Message = msg
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = envelope.Message
		}
	}
	return apiErr
}

// ============================================================================
// Internal HTTP Methods
// ============================================================================

// call describes one provider request
type call struct {
	name      string
	url       string
	body      interface{}
	retryable bool
	headers   map[string]string
}

// do sends c and decodes a 2xx reply into out. Non-2xx replies become *APIError.
func (p *PrivyClient) do(ctx context.Context, c call, out interface{}) error {
	body, err := json.Marshal(c.body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", c.name, err)
	}

	policy := p.retry
	if !c.retryable {
		policy = sponsor.NoRetry()
	}

	var responseBody []byte
	err = policy.Do(ctx, func(attempt int) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("failed to create %s request: %w", c.name, err)
		}
		p.setHeaders(req)
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return ctx.Err() == nil, fmt.Errorf("%s request failed: %w", c.name, err)
		}

		responseBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return false, fmt.Errorf("failed to read %s response body: %w", c.name, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := newAPIError(resp.StatusCode, responseBody)
			return apiErr.Temporary(), apiErr
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}
	return nil
}

func (p *PrivyClient) setHeaders(req *http.Request) {
	credentials := base64.StdEncoding.EncodeToString([]byte(p.appID + ":" + p.appSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set(HeaderAppID, p.appID)
	req.Header.Set(headerContentType, mimeApplicationJSON)
}

// IsNotFound reports whether err is a provider 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
