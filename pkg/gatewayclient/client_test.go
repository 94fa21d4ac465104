package gatewayclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/timing"
)

var testRequest = sponsor.SponsorRequest{
	UserAddress:     "0xABCdef0000000000000000000000000000000001",
	UserAccessToken: "tok1",
	FunctionName:    "increment",
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestSponsorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sponsor-transaction", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body sponsor.SponsorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testRequest, body)

		writeJSON(w, http.StatusOK, SponsorResponse{Success: true, TxHash: "0xfeed", Sponsored: true, RealTransaction: true})
	}))
	defer server.Close()

	resp, err := New(&Config{URL: server.URL}).Sponsor(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", resp.TxHash)
	assert.True(t, resp.Sponsored)
}

func TestSponsorFailureEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, SponsorResponse{Success: false, Error: "User address is required"})
	}))
	defer server.Close()

	resp, err := New(&Config{URL: server.URL}).Sponsor(context.Background(), sponsor.SponsorRequest{})
	require.NotNil(t, resp)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "User address is required", gwErr.Message)
}

func TestSponsorSingleInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		writeJSON(w, http.StatusOK, SponsorResponse{Success: true, TxHash: "0xfeed", Sponsored: true})
	}))
	defer server.Close()

	client := New(&Config{URL: server.URL})

	done := make(chan error, 1)
	go func() {
		_, err := client.Sponsor(context.Background(), testRequest)
		done <- err
	}()

	<-entered
	assert.True(t, client.Busy())
	_, err := client.Sponsor(context.Background(), testRequest)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, client.Busy())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCountAndHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/contract-count":
			writeJSON(w, http.StatusOK, CountResponse{Success: true, Count: "42"})
		case "/health":
			writeJSON(w, http.StatusOK, HealthResponse{Status: "OK", Message: "Privy Sponsored Transaction Backend"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(&Config{URL: server.URL + "/"})

	count, err := client.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", count)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", health.Status)
}

func TestCountFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, CountResponse{Success: false, Error: "rpc unreachable"})
	}))
	defer server.Close()

	_, err := New(&Config{URL: server.URL}).Count(context.Background())
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "rpc unreachable", gwErr.Message)
}

func TestRunBench(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			writeJSON(w, http.StatusInternalServerError, SponsorResponse{Success: false, Error: "Failed to authenticate with Privy: Invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, SponsorResponse{Success: true, TxHash: "0xfeed", Sponsored: true})
	}))
	defer server.Close()

	rec := timing.NewRecorder()
	var seen []timing.Status
	err := RunBench(context.Background(), New(&Config{URL: server.URL}), rec, BenchConfig{
		Request:  testRequest,
		Runs:     3,
		Interval: time.Millisecond,
		OnSample: func(s timing.Sample) { seen = append(seen, s.Status) },
	})
	require.NoError(t, err)

	assert.Equal(t, []timing.Status{timing.StatusSuccess, timing.StatusError, timing.StatusSuccess}, seen)

	summary := rec.Summary()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	samples := rec.Samples()
	assert.Equal(t, "Failed to authenticate with Privy: Invalid JWT", samples[1].Error)
}

func TestRunBenchStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SponsorResponse{Success: true, TxHash: "0xfeed", Sponsored: true})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := timing.NewRecorder()
	err := RunBench(ctx, New(&Config{URL: server.URL}), rec, BenchConfig{
		Request:  testRequest,
		Runs:     5,
		Interval: time.Hour,
		OnSample: func(timing.Sample) { cancel() },
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.Samples(), 1)
}
