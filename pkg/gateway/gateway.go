// Package gateway serves the sponsorship HTTP API for the browser client.
package gateway

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/metrics"
)

// Sponsorer runs a sponsorship for one request
type Sponsorer interface {
	Sponsor(ctx context.Context, req sponsor.SponsorRequest) (*sponsor.SponsorResult, error)
}

// CounterReader reads the contract counter
type CounterReader interface {
	GetCount(ctx context.Context) (*big.Int, error)
}

// Response messages
const (
	HealthMessage      = "Privy Sponsored Transaction Backend"
	SponsoredMessage   = "REAL transaction sponsored successfully via Privy SDK"
	MsgInvalidBody     = "Invalid request body"
	MsgInternalError   = "Internal server error"
	DefaultCORSOrigin  = "http://localhost:5173"
	DefaultReadTimeout = 30 * time.Second
)

// DefaultRequestTimeout bounds the work done for one request
const DefaultRequestTimeout = 60 * time.Second

// MaxBodyBytes caps the sponsor request body
const MaxBodyBytes = 100 << 10

// Gateway holds the HTTP surface's collaborators
type Gateway struct {
	sponsorer      Sponsorer
	counter        CounterReader
	logger         *zap.Logger
	metrics        *metrics.Metrics
	corsOrigin     string
	requestTimeout time.Duration
	now            func() time.Time
}

// Option configures a Gateway
type Option func(*Gateway)

// WithLogger sets the access and error logger
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics enables request metrics and the /metrics endpoint
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithCORSOrigin sets the single allowed browser origin; "*" allows any
func WithCORSOrigin(origin string) Option {
	return func(g *Gateway) {
		g.corsOrigin = origin
	}
}

// WithRequestTimeout bounds each request's upstream work
func WithRequestTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.requestTimeout = d
	}
}

// WithClock replaces time.Now for the health timestamp
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New creates a gateway over the sponsorship pipeline and the counter reader
func New(s Sponsorer, counter CounterReader, opts ...Option) *Gateway {
	g := &Gateway{
		sponsorer:      s,
		counter:        counter,
		logger:         zap.NewNop(),
		corsOrigin:     DefaultCORSOrigin,
		requestTimeout: DefaultRequestTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Router builds the gin engine with middleware and routes
func (g *Gateway) Router() *gin.Engine {
	r := gin.New()
	r.Use(
		g.recovery(),
		requestID(),
		g.accessLog(),
		g.cors(),
	)

	r.GET("/health", g.health)

	api := r.Group("/api")
	api.GET("/contract-count", g.contractCount)
	api.POST("/sponsor-transaction", g.sponsorTransaction)

	if g.metrics != nil {
		r.GET("/metrics", gin.WrapH(g.metrics.Handler()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
	})
	return r
}

// requestContext detaches ctx from client cancellation, so a disconnect does
// not abort a half-finished relay, and bounds it with the request timeout.
func (g *Gateway) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), g.requestTimeout)
}
