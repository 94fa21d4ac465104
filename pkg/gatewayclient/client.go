// Package gatewayclient calls the sponsorship gateway over HTTP.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

// DefaultGatewayURL is where the gateway listens by default
const DefaultGatewayURL = "http://localhost:3001"

// DefaultTimeout covers a full sponsorship round trip including the relay
const DefaultTimeout = 90 * time.Second

// ErrBusy is returned when a sponsorship is already in flight on the client
var ErrBusy = errors.New("a sponsorship request is already in flight")

// SponsorResponse is the gateway's sponsorship envelope
type SponsorResponse struct {
	Success            bool   `json:"success"`
	TxHash             string `json:"txHash,omitempty"`
	Message            string `json:"message,omitempty"`
	Sponsored          bool   `json:"sponsored"`
	ServerWallet       string `json:"serverWallet,omitempty"`
	UserWallet         string `json:"userWallet,omitempty"`
	RealTransaction    bool   `json:"realTransaction,omitempty"`
	PrivyTransactionID string `json:"privyTransactionId,omitempty"`
	Error              string `json:"error,omitempty"`
	Details            string `json:"details,omitempty"`
}

// CountResponse is the gateway's counter envelope
type CountResponse struct {
	Success bool   `json:"success"`
	Count   string `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the gateway's health envelope
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// GatewayError is a success:false reply
type GatewayError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Config configures the gateway client
type Config struct {
	// URL is the gateway base URL (optional)
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to DefaultTimeout)
	Timeout time.Duration
}

// Client talks to one gateway. At most one sponsorship is in flight at a time.
type Client struct {
	url        string
	httpClient *http.Client
	inFlight   atomic.Bool
}

// New creates a gateway client
func New(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	url := strings.TrimRight(config.URL, "/")
	if url == "" {
		url = DefaultGatewayURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{url: url, httpClient: httpClient}
}

// Busy reports whether a sponsorship is in flight
func (c *Client) Busy() bool {
	return c.inFlight.Load()
}

// Sponsor requests a sponsored increment for req. A false success envelope
// comes back as *GatewayError; a concurrent call returns ErrBusy.
func (c *Client) Sponsor(ctx context.Context, req sponsor.SponsorRequest) (*SponsorResponse, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.inFlight.Store(false)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sponsor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/sponsor-transaction", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sponsor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp SponsorResponse
	status, err := c.do(httpReq, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Backend transaction failed"
		}
		return &resp, &GatewayError{StatusCode: status, Message: msg, Details: resp.Details}
	}
	return &resp, nil
}

// Count reads the contract counter through the gateway
func (c *Client) Count(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/contract-count", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create count request: %w", err)
	}

	var resp CountResponse
	status, err := c.do(httpReq, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &GatewayError{StatusCode: status, Message: resp.Error}
	}
	return resp.Count, nil
}

// Health checks that the gateway is up
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health request: %w", err)
	}

	var resp HealthResponse
	status, err := c.do(httpReq, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || resp.Status != "OK" {
		return nil, &GatewayError{StatusCode: status, Message: resp.Status}
	}
	return &resp, nil
}

// do sends req and decodes the JSON body whatever the status
func (c *Client) do(req *http.Request, out interface{}) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read gateway response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("gateway returned %d with undecodable body: %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
