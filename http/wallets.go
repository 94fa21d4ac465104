package http

import (
	"context"
	"fmt"
	"strings"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

// LinkedAccount is one identity or wallet attached to a provider user
type LinkedAccount struct {
	Type             string `json:"type"`
	ID               string `json:"id,omitempty"`
	Address          string `json:"address,omitempty"`
	ChainType        string `json:"chain_type,omitempty"`
	WalletClientType string `json:"wallet_client_type,omitempty"`
}

// User is the provider's account record
type User struct {
	ID             string          `json:"id"`
	CreatedAt      int64           `json:"created_at,omitempty"`
	LinkedAccounts []LinkedAccount `json:"linked_accounts"`
}

// Wallet is a provider-held wallet
type Wallet struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chain_type"`
}

// CreateServerWallet creates a new ethereum wallet held by the app
func (p *PrivyClient) CreateServerWallet(ctx context.Context) (sponsor.ServerWallet, error) {
	var wallet Wallet
	err := p.do(ctx, call{
		name: "create wallet",
		url:  p.apiURL + pathWallets,
		body: map[string]string{"chain_type": "ethereum"},
	}, &wallet)
	if err != nil {
		return sponsor.ServerWallet{}, err
	}
	if wallet.ID == "" || wallet.Address == "" {
		return sponsor.ServerWallet{}, fmt.Errorf("create wallet response missing id or address")
	}
	return sponsor.ServerWallet{ID: wallet.ID, Address: wallet.Address}, nil
}

// GetUserByWalletAddress fetches the user that owns address.
// A provider 404 is reported as sponsor.ErrUserNotFound.
func (p *PrivyClient) GetUserByWalletAddress(ctx context.Context, address string) (*User, error) {
	var user User
	err := p.do(ctx, call{
		name:      "user lookup",
		url:       p.authURL + pathUserByWallet,
		body:      map[string]string{"address": address},
		retryable: true,
	}, &user)
	if IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", sponsor.ErrUserNotFound, address)
	}
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: %s", sponsor.ErrUserNotFound, address)
	}
	return &user, nil
}

// ResolveWallet looks the user up and returns the first linked wallet
// whose address matches, ignoring case.
func (p *PrivyClient) ResolveWallet(ctx context.Context, address string) (sponsor.ResolvedWallet, error) {
	user, err := p.GetUserByWalletAddress(ctx, address)
	if err != nil {
		return sponsor.ResolvedWallet{}, err
	}
	return MatchLinkedWallet(user.LinkedAccounts, address)
}

// MatchLinkedWallet scans accounts for wallets matching address
func MatchLinkedWallet(accounts []LinkedAccount, address string) (sponsor.ResolvedWallet, error) {
	var (
		found   sponsor.ResolvedWallet
		matches int
	)
	for _, account := range accounts {
		if account.Type != linkedAccountWallet || !strings.EqualFold(account.Address, address) {
			continue
		}
		if matches == 0 {
			found = sponsor.ResolvedWallet{WalletID: account.ID, Address: account.Address}
		}
		matches++
	}

	if matches == 0 {
		return sponsor.ResolvedWallet{}, fmt.Errorf("%w: %s", sponsor.ErrWalletNotFound, address)
	}
	found.Matches = matches
	return found, nil
}
