package sponsor

import "context"

// WalletProvisioner creates the server wallet that backs a sponsored request
type WalletProvisioner interface {
	CreateServerWallet(ctx context.Context) (ServerWallet, error)
}

// WalletResolver finds the user's linked wallet for an address.
//
// Implementations return ErrUserNotFound when the provider has no user for
// the address and ErrWalletNotFound when none of the user's linked wallets
// match it (case-insensitive). When several match, the first one wins and
// Matches reports how many did.
type WalletResolver interface {
	ResolveWallet(ctx context.Context, address string) (ResolvedWallet, error)
}

// SessionAuthenticator exchanges a user's session token for a delegated
// signing grant. It performs one round trip per call and never caches.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, userToken string) (SessionGrant, error)
}

// TransactionSubmitter relays a transaction through the provider, signed
// with the delegated session and paid for by the sponsor.
type TransactionSubmitter interface {
	SendTransaction(ctx context.Context, session DelegatedSession, tx SponsoredTransaction) (TransactionResult, error)
}

// ProviderError is implemented by errors that carry the provider's own
// error message, which is surfaced to clients verbatim.
type ProviderError interface {
	error
	ProviderMessage() string
}
