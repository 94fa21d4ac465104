package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

// isoMillis matches the browser's Date.toISOString
const isoMillis = "2006-01-02T15:04:05.000Z"

// sponsorRequestSchema checks field types only; presence is the pipeline's job
const sponsorRequestSchema = `{
	"type": "object",
	"properties": {
		"userAddress": {"type": ["string", "null"]},
		"userAccessToken": {"type": ["string", "null"]},
		"functionName": {"type": ["string", "null"]}
	}
}`

var sponsorRequestSchemaLoader = gojsonschema.NewStringLoader(sponsorRequestSchema)

func (g *Gateway) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"message":   HealthMessage,
		"timestamp": g.now().UTC().Format(isoMillis),
	})
}

func (g *Gateway) contractCount(c *gin.Context) {
	ctx, cancel := g.requestContext(c.Request.Context())
	defer cancel()

	count, err := g.counter.GetCount(ctx)
	if g.metrics != nil {
		g.metrics.ObserveCountRead(err)
	}
	if err != nil {
		g.logger.Error("error reading contract", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   count.String(),
	})
}

func (g *Gateway) sponsorTransaction(c *gin.Context) {
	req, violations, err := bindSponsorRequest(c)
	if err != nil {
		details := err.Error()
		if len(violations) > 0 {
			details = strings.Join(violations, "; ")
		}
		g.logger.Warn("unreadable sponsor request", zap.Error(err), zap.String("details", details))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     MsgInvalidBody,
			"details":   details,
			"sponsored": false,
		})
		return
	}

	g.logger.Debug("sponsor request received",
		zap.String("userAddress", req.UserAddress),
		zap.Bool("accessToken", req.UserAccessToken != ""),
		zap.String("functionName", req.FunctionName),
		zap.String("requestId", c.GetString(requestIDKey)))

	if g.metrics != nil {
		defer g.metrics.TrackInFlight()()
	}

	ctx, cancel := g.requestContext(c.Request.Context())
	defer cancel()

	result, err := g.sponsorer.Sponsor(ctx, req)
	if err != nil {
		serr := sponsor.AsSponsorError(err)
		if serr.StatusCode() == http.StatusBadRequest {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   serr.Message,
			})
			return
		}
		c.JSON(serr.StatusCode(), gin.H{
			"success":   false,
			"error":     serr.Message,
			"details":   serr.Error(),
			"sponsored": false,
		})
		return
	}

	serverWallet := ""
	if result.ServerWallet != nil {
		serverWallet = result.ServerWallet.Address
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"txHash":             result.Transaction.Hash,
		"message":            SponsoredMessage,
		"sponsored":          result.Transaction.Sponsored,
		"serverWallet":       serverWallet,
		"userWallet":         result.UserWallet.Address,
		"realTransaction":    true,
		"privyTransactionId": result.Transaction.TransactionID,
	})
}

// bindSponsorRequest decodes a body of at most MaxBodyBytes. An empty body is
// an empty request, so a missing address still reports as such.
func bindSponsorRequest(c *gin.Context) (sponsor.SponsorRequest, []string, error) {
	var req sponsor.SponsorRequest

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	raw, err := c.GetRawData()
	if err != nil {
		return req, nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return req, nil, nil
	}

	if !json.Valid(raw) {
		return req, nil, errInvalidJSON
	}

	result, err := gojsonschema.Validate(sponsorRequestSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return req, nil, err
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.Field()+": "+desc.Description())
		}
		return req, violations, errSchemaViolation
	}

	if err := json.Unmarshal(raw, &req); err != nil {
		return req, nil, err
	}
	return req, nil, nil
}
