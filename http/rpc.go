package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

// RPCTransaction is the transaction object inside an eth_sendTransaction call
type RPCTransaction struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
	ChainID int64  `json:"chain_id"`
}

// RPCParams wraps the transaction
type RPCParams struct {
	Transaction RPCTransaction `json:"transaction"`
}

// RPCRequest is the wallet rpc body
type RPCRequest struct {
	Method    string    `json:"method"`
	CAIP2     string    `json:"caip2"`
	ChainType string    `json:"chain_type"`
	Sponsor   bool      `json:"sponsor"`
	Params    RPCParams `json:"params"`
}

// RPCResponse is the provider's reply to eth_sendTransaction
type RPCResponse struct {
	Method string `json:"method"`
	Data   struct {
		Hash          string `json:"hash"`
		CAIP2         string `json:"caip2"`
		TransactionID string `json:"transaction_id"`
	} `json:"data"`
}

// NewSponsoredRPCRequest builds the gas-sponsored eth_sendTransaction body for tx
func NewSponsoredRPCRequest(tx sponsor.SponsoredTransaction) RPCRequest {
	caip2 := tx.CAIP2
	if caip2 == "" {
		caip2 = fmt.Sprintf("eip155:%d", tx.ChainID)
	}
	return RPCRequest{
		Method:    rpcMethodSendTx,
		CAIP2:     caip2,
		ChainType: "ethereum",
		Sponsor:   true,
		Params: RPCParams{
			Transaction: RPCTransaction{
				To:      tx.To,
				Data:    tx.Data,
				Value:   tx.Value,
				ChainID: tx.ChainID,
			},
		},
	}
}

// WalletRPCURL is the rpc endpoint for walletID under apiURL
func WalletRPCURL(apiURL, walletID string) string {
	return apiURL + pathWallets + "/" + url.PathEscape(walletID) + "/rpc"
}

// SendTransaction relays tx from the session's wallet with gas sponsorship.
// The request is signed with the session's authorization key and is never
// retried.
func (p *PrivyClient) SendTransaction(ctx context.Context, session sponsor.DelegatedSession, tx sponsor.SponsoredTransaction) (sponsor.TransactionResult, error) {
	if session.WalletID == "" {
		return sponsor.TransactionResult{}, fmt.Errorf("session has no wallet")
	}

	priv, err := ParseAuthorizationKey(session.AuthorizationKey)
	if err != nil {
		return sponsor.TransactionResult{}, err
	}

	body := NewSponsoredRPCRequest(tx)
	endpoint := WalletRPCURL(p.apiURL, session.WalletID)

	signature, err := SignRequest(priv, SignaturePayload{
		Version: authSignatureVersion,
		Method:  http.MethodPost,
		URL:     endpoint,
		Body:    body,
		Headers: map[string]string{HeaderAppID: p.appID},
	})
	if err != nil {
		return sponsor.TransactionResult{}, err
	}

	var resp RPCResponse
	err = p.do(ctx, call{
		name:    "send transaction",
		url:     endpoint,
		body:    body,
		headers: map[string]string{HeaderAuthorizationSignature: signature},
	}, &resp)
	if err != nil {
		return sponsor.TransactionResult{}, err
	}

	if resp.Data.Hash == "" {
		return sponsor.TransactionResult{}, fmt.Errorf("send transaction response missing hash")
	}

	return sponsor.TransactionResult{
		Hash:          resp.Data.Hash,
		TransactionID: resp.Data.TransactionID,
		CAIP2:         resp.Data.CAIP2,
		Sponsored:     true,
	}, nil
}
