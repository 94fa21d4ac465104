// Package http provides the HTTP client for the wallet-custody provider.
// It implements the provisioning, wallet resolution, session authentication
// and transaction relay collaborators of the sponsorship pipeline.
package http

import (
	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

// Provider endpoints and headers
const (
	DefaultAPIURL  = "https://api.privy.io"
	DefaultAuthURL = "https://auth.privy.io"

	HeaderAppID                  = "privy-app-id"
	HeaderAuthorizationSignature = "privy-authorization-signature"

	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"

	pathWallets          = "/v1/wallets"
	pathAuthenticate     = "/v1/wallets/authenticate"
	pathUserByWallet     = "/api/v1/users/wallet/address"
	rpcMethodSendTx      = "eth_sendTransaction"
	linkedAccountWallet  = "wallet"
	authSignatureVersion = 1
)

var (
	_ sponsor.WalletProvisioner    = (*PrivyClient)(nil)
	_ sponsor.WalletResolver       = (*PrivyClient)(nil)
	_ sponsor.SessionAuthenticator = (*PrivyClient)(nil)
	_ sponsor.TransactionSubmitter = (*PrivyClient)(nil)
	_ sponsor.ProviderError        = (*APIError)(nil)
)
