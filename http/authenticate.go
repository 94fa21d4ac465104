package http

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

// authenticateResponseSchema is the minimum shape of a session grant
const authenticateResponseSchema = `{
	"type": "object",
	"required": ["authorization_key", "wallets"],
	"properties": {
		"authorization_key": {"type": "string", "minLength": 1},
		"expires_at": {"type": "number"},
		"wallets": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": "string"},
					"address": {"type": "string"},
					"chain_type": {"type": "string"}
				}
			}
		}
	}
}`

var authenticateSchemaLoader = gojsonschema.NewStringLoader(authenticateResponseSchema)

// AuthenticateResponse is the provider's reply to a user token exchange
type AuthenticateResponse struct {
	AuthorizationKey string   `json:"authorization_key"`
	ExpiresAt        int64    `json:"expires_at"`
	Wallets          []Wallet `json:"wallets"`
}

// Authenticate exchanges the user's session token for a delegated signing
// grant. Every call is a fresh round trip.
func (p *PrivyClient) Authenticate(ctx context.Context, userToken string) (sponsor.SessionGrant, error) {
	var raw json.RawMessage
	err := p.do(ctx, call{
		name:      "authenticate",
		url:       p.apiURL + pathAuthenticate,
		body:      map[string]string{"user_jwt": userToken},
		retryable: true,
	}, &raw)
	if err != nil {
		return sponsor.SessionGrant{}, err
	}

	if err := validateDocument(authenticateSchemaLoader, raw); err != nil {
		return sponsor.SessionGrant{}, fmt.Errorf("unexpected authenticate response: %w", err)
	}

	var resp AuthenticateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return sponsor.SessionGrant{}, fmt.Errorf("failed to decode authenticate response: %w", err)
	}

	grant := sponsor.SessionGrant{
		AuthorizationKey: resp.AuthorizationKey,
		Wallets:          make([]sponsor.SessionWallet, 0, len(resp.Wallets)),
	}
	if resp.ExpiresAt > 0 {
		grant.ExpiresAt = time.UnixMilli(resp.ExpiresAt)
	}
	for _, w := range resp.Wallets {
		grant.Wallets = append(grant.Wallets, sponsor.SessionWallet{
			ID:        w.ID,
			Address:   w.Address,
			ChainType: w.ChainType,
		})
	}
	return grant, nil
}

// validateDocument checks doc against schema and joins every violation
func validateDocument(schema gojsonschema.JSONLoader, doc []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return fmt.Errorf("%s", strings.Join(violations, "; "))
}
