package sponsor

import (
	"strings"
	"time"
)

// DefaultFunctionName is the only contract function the gateway relays.
const DefaultFunctionName = "increment"

// SponsorRequest is the client payload for a sponsored transaction
type SponsorRequest struct {
	UserAddress     string `json:"userAddress"`
	UserAccessToken string `json:"userAccessToken"`
	FunctionName    string `json:"functionName,omitempty"`
}

// ServerWallet is a provider-held wallet created to back a sponsored request
type ServerWallet struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// ResolvedWallet is the user's linked wallet matching the requested address
type ResolvedWallet struct {
	WalletID string `json:"walletId"`
	Address  string `json:"address"`
	// Matches counts every linked account that matched the address.
	Matches int `json:"-"`
}

// SessionWallet is a wallet covered by an authenticated session
type SessionWallet struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chain_type"`
}

// SessionGrant is what the provider returns when a user token is exchanged
type SessionGrant struct {
	AuthorizationKey string
	ExpiresAt        time.Time
	Wallets          []SessionWallet
}

// Covers reports whether the grant authorizes signing for walletID
func (g SessionGrant) Covers(walletID string) bool {
	for _, w := range g.Wallets {
		if w.ID == walletID {
			return true
		}
	}
	return false
}

// DelegatedSession is a grant narrowed to the one wallet it will sign for.
// It is used for a single submission and then dropped.
type DelegatedSession struct {
	AuthorizationKey string
	ExpiresAt        time.Time
	WalletID         string
}

// Expired reports whether the session is unusable at now, allowing skew
func (s DelegatedSession) Expired(now time.Time, skew time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.ExpiresAt)
}

// SponsoredTransaction is the fixed contract call relayed for the user
type SponsoredTransaction struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
	ChainID int64  `json:"chain_id"`
	// CAIP2 is the chain identifier the relay API expects, e.g. "eip155:84532".
	CAIP2 string `json:"-"`
}

// TransactionResult is the provider's answer to a relayed transaction
type TransactionResult struct {
	Hash          string `json:"hash"`
	TransactionID string `json:"transactionId"`
	CAIP2         string `json:"caip2,omitempty"`
	Sponsored     bool   `json:"sponsored"`
}

// SponsorResult is the outcome of a fully successful sponsorship
type SponsorResult struct {
	Transaction  TransactionResult
	UserWallet   ResolvedWallet
	ServerWallet *ServerWallet
	Duration     time.Duration
}

// normalizeFunctionName applies the default function name
func normalizeFunctionName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultFunctionName
	}
	return name
}
