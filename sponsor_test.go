package sponsor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xABCdef0000000000000000000000000000000001"

// Mock collaborators for testing
type mockResolver struct {
	calls   int
	resolve func(ctx context.Context, address string) (ResolvedWallet, error)
}

func (m *mockResolver) ResolveWallet(ctx context.Context, address string) (ResolvedWallet, error) {
	m.calls++
	if m.resolve != nil {
		return m.resolve(ctx, address)
	}
	return ResolvedWallet{WalletID: "wallet-1", Address: address, Matches: 1}, nil
}

type mockAuthenticator struct {
	calls        int
	authenticate func(ctx context.Context, token string) (SessionGrant, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (SessionGrant, error) {
	m.calls++
	if m.authenticate != nil {
		return m.authenticate(ctx, token)
	}
	return SessionGrant{
		AuthorizationKey: "key",
		ExpiresAt:        time.Now().Add(time.Hour),
		Wallets:          []SessionWallet{{ID: "wallet-1", Address: testAddress}},
	}, nil
}

type mockSubmitter struct {
	calls   int
	session DelegatedSession
	tx      SponsoredTransaction
	send    func(ctx context.Context, session DelegatedSession, tx SponsoredTransaction) (TransactionResult, error)
}

func (m *mockSubmitter) SendTransaction(ctx context.Context, session DelegatedSession, tx SponsoredTransaction) (TransactionResult, error) {
	m.calls++
	m.session = session
	m.tx = tx
	if m.send != nil {
		return m.send(ctx, session, tx)
	}
	return TransactionResult{Hash: "0xfeed", TransactionID: "tx-1", Sponsored: true}, nil
}

type mockProvisioner struct {
	calls int
	err   error
}

func (m *mockProvisioner) CreateServerWallet(ctx context.Context) (ServerWallet, error) {
	m.calls++
	if m.err != nil {
		return ServerWallet{}, m.err
	}
	return ServerWallet{ID: "server-1", Address: "0x00000000000000000000000000000000000000aa"}, nil
}

type providerErr struct{ msg string }

func (e *providerErr) Error() string           { return "privy request failed: " + e.msg }
func (e *providerErr) ProviderMessage() string { return e.msg }

var testTx = SponsoredTransaction{
	To:      "0xDc89dA1e7Ca49b7CcDC8fDB897A32d564Abb8E42",
	Data:    "0xd09de08a",
	Value:   "0x0",
	ChainID: 84532,
	CAIP2:   "eip155:84532",
}

type fixture struct {
	resolver      *mockResolver
	authenticator *mockAuthenticator
	submitter     *mockSubmitter
}

func newFixture() *fixture {
	return &fixture{
		resolver:      &mockResolver{},
		authenticator: &mockAuthenticator{},
		submitter:     &mockSubmitter{},
	}
}

func (f *fixture) sponsor(opts ...SponsorOption) *TransactionSponsor {
	return NewTransactionSponsor(f.resolver, f.authenticator, f.submitter, testTx, opts...)
}

func requireSponsorError(t *testing.T, err error, code string, stage Stage) *SponsorError {
	t.Helper()
	require.Error(t, err)
	var serr *SponsorError
	require.True(t, errors.As(err, &serr), "expected *SponsorError, got %T", err)
	assert.Equal(t, code, serr.Code)
	assert.Equal(t, stage, serr.Stage)
	return serr
}

func TestSponsorSuccess(t *testing.T) {
	f := newFixture()

	result, err := f.sponsor().Sponsor(context.Background(), SponsorRequest{
		UserAddress:     testAddress,
		UserAccessToken: "tok1",
	})
	require.NoError(t, err)

	assert.Equal(t, "0xfeed", result.Transaction.Hash)
	assert.Equal(t, "tx-1", result.Transaction.TransactionID)
	assert.True(t, result.Transaction.Sponsored)
	assert.Equal(t, "wallet-1", result.UserWallet.WalletID)
	assert.Nil(t, result.ServerWallet)

	assert.Equal(t, 1, f.authenticator.calls)
	assert.Equal(t, 1, f.submitter.calls)
	assert.Equal(t, "wallet-1", f.submitter.session.WalletID)
	assert.Equal(t, "key", f.submitter.session.AuthorizationKey)
	assert.Equal(t, testTx, f.submitter.tx)
}

func TestSponsorMissingAddressNeverContactsProvider(t *testing.T) {
	f := newFixture()
	provisioner := &mockProvisioner{}

	_, err := f.sponsor(WithProvisioner(provisioner)).Sponsor(context.Background(), SponsorRequest{UserAccessToken: "tok1"})
	serr := requireSponsorError(t, err, ErrCodeInvalidRequest, StageValidating)

	assert.Equal(t, MsgUserAddressRequired, serr.Message)
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode())
	assert.Zero(t, provisioner.calls)
	assert.Zero(t, f.resolver.calls)
	assert.Zero(t, f.authenticator.calls)
	assert.Zero(t, f.submitter.calls)
}

func TestSponsorMalformedAddress(t *testing.T) {
	for _, address := range []string{"0x1234", "not-an-address", "   "} {
		t.Run(address, func(t *testing.T) {
			f := newFixture()

			_, err := f.sponsor().Sponsor(context.Background(), SponsorRequest{UserAddress: address, UserAccessToken: "tok1"})
			serr := requireSponsorError(t, err, ErrCodeInvalidAddress, StageValidating)
			assert.Equal(t, MsgInvalidUserAddress, serr.Message)
			assert.Equal(t, http.StatusInternalServerError, serr.StatusCode())
			assert.Zero(t, f.resolver.calls)
		})
	}
}

func TestSponsorResolutionFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{"user not found", ErrUserNotFound, ErrCodeUserNotFound, MsgUserNotFound},
		{"wallet not found", ErrWalletNotFound, ErrCodeWalletNotFound, MsgWalletNotFound},
		{"provider error", &providerErr{msg: "boom"}, ErrCodeResolutionFailed, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.resolver.resolve = func(ctx context.Context, address string) (ResolvedWallet, error) {
				return ResolvedWallet{}, tt.err
			}

			_, err := f.sponsor().Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
			serr := requireSponsorError(t, err, tt.code, StageResolving)

			assert.Equal(t, tt.message, serr.Message)
			assert.Equal(t, http.StatusInternalServerError, serr.StatusCode())
			assert.Zero(t, f.authenticator.calls, "authentication must not start")
			assert.Zero(t, f.submitter.calls)
		})
	}
}

func TestSponsorMissingTokenFailsAtAuthentication(t *testing.T) {
	f := newFixture()

	_, err := f.sponsor().Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress})
	serr := requireSponsorError(t, err, ErrCodeAccessTokenMissing, StageAuthenticating)

	assert.Equal(t, MsgAccessTokenRequired, serr.Message)
	assert.Equal(t, 1, f.resolver.calls)
	assert.Zero(t, f.authenticator.calls)
}

func TestSponsorAuthenticationFailurePropagatesProviderMessage(t *testing.T) {
	f := newFixture()
	f.authenticator.authenticate = func(ctx context.Context, token string) (SessionGrant, error) {
		return SessionGrant{}, &providerErr{msg: "Invalid JWT token provided"}
	}

	_, err := f.sponsor().Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "bad"})
	serr := requireSponsorError(t, err, ErrCodeAuthenticationFailed, StageAuthenticating)

	assert.Equal(t, "Failed to authenticate with Privy: Invalid JWT token provided", serr.Message)
	assert.Zero(t, f.submitter.calls)
}

func TestSponsorWalletAbsentFromSession(t *testing.T) {
	f := newFixture()
	f.authenticator.authenticate = func(ctx context.Context, token string) (SessionGrant, error) {
		return SessionGrant{
			AuthorizationKey: "key",
			Wallets:          []SessionWallet{{ID: "other-wallet"}},
		}, nil
	}

	_, err := f.sponsor().Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	serr := requireSponsorError(t, err, ErrCodeWalletNotAuthorized, StageAuthenticating)

	assert.Equal(t, "Wallet wallet-1 not found in authenticated wallets", serr.Message)
	assert.Zero(t, f.submitter.calls, "submission must be aborted")
}

func TestSponsorExpiredSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture()
	f.authenticator.authenticate = func(ctx context.Context, token string) (SessionGrant, error) {
		return SessionGrant{
			AuthorizationKey: "key",
			ExpiresAt:        now.Add(2 * time.Second),
			Wallets:          []SessionWallet{{ID: "wallet-1"}},
		}, nil
	}

	_, err := f.sponsor(WithClock(func() time.Time { return now })).Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	requireSponsorError(t, err, ErrCodeSessionExpired, StageAuthenticating)
	assert.Zero(t, f.submitter.calls)

	// without skew the same session is still fresh
	_, err = f.sponsor(WithClock(func() time.Time { return now }), WithSessionSkew(0)).Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	require.NoError(t, err)
}

func TestSponsorSubmissionFailure(t *testing.T) {
	f := newFixture()
	f.submitter.send = func(ctx context.Context, session DelegatedSession, tx SponsoredTransaction) (TransactionResult, error) {
		return TransactionResult{}, &providerErr{msg: "insufficient sponsor balance"}
	}

	_, err := f.sponsor().Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	serr := requireSponsorError(t, err, ErrCodeSubmissionFailed, StageSubmitting)

	assert.Equal(t, "insufficient sponsor balance", serr.Message)
	assert.Contains(t, serr.Error(), "privy request failed: insufficient sponsor balance")
}

func TestSponsorProvisioning(t *testing.T) {
	f := newFixture()
	provisioner := &mockProvisioner{}

	result, err := f.sponsor(WithProvisioner(provisioner)).Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	require.NoError(t, err)
	require.NotNil(t, result.ServerWallet)
	assert.Equal(t, "server-1", result.ServerWallet.ID)
	assert.Equal(t, 1, provisioner.calls)

	failing := &mockProvisioner{err: errors.New("wallet quota exceeded")}
	_, err = newFixture().sponsor(WithProvisioner(failing)).Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	serr := requireSponsorError(t, err, ErrCodeProvisioningFailed, StageProvisioning)
	assert.Equal(t, "wallet quota exceeded", serr.Message)
}

func TestSponsorHooks(t *testing.T) {
	f := newFixture()
	s := f.sponsor(WithProvisioner(&mockProvisioner{}))

	var stages []Stage
	var after, failed int
	s.OnStageComplete(func(ctx StageContext) {
		stages = append(stages, ctx.Stage)
	})
	s.OnAfterSponsor(func(ctx SponsorResultContext) error {
		after++
		assert.Equal(t, DefaultFunctionName, ctx.Request.FunctionName)
		return errors.New("ignored")
	})
	s.OnSponsorFailure(func(ctx SponsorFailureContext) {
		failed++
	})

	_, err := s.Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageValidating, StageProvisioning, StageResolving, StageAuthenticating, StageSubmitting}, stages)
	assert.Equal(t, 1, after)
	assert.Zero(t, failed)
}

func TestSponsorBeforeHookAbort(t *testing.T) {
	f := newFixture()
	s := f.sponsor()

	var failure *SponsorError
	s.OnBeforeSponsor(func(ctx SponsorContext) (*BeforeHookResult, error) {
		return &BeforeHookResult{Abort: true, Reason: "blocked"}, nil
	})
	s.OnSponsorFailure(func(ctx SponsorFailureContext) {
		failure = ctx.Error
	})

	_, err := s.Sponsor(context.Background(), SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	requireSponsorError(t, err, ErrCodeInvalidRequest, StageValidating)
	require.NotNil(t, failure)
	assert.Equal(t, "blocked", failure.Message)
	assert.Zero(t, f.resolver.calls)
}

func TestSponsorCancelledContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sponsor().Sponsor(ctx, SponsorRequest{UserAddress: testAddress, UserAccessToken: "tok1"})
	requireSponsorError(t, err, ErrCodeInternal, StageValidating)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsSponsorError(t *testing.T) {
	assert.Nil(t, AsSponsorError(nil))

	serr := AsSponsorError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternal, serr.Code)
	assert.Equal(t, "boom", serr.Message)

	wrapped := AsSponsorError(errors.Join(errors.New("outer"), NewSponsorError(ErrCodeUserNotFound, StageResolving, MsgUserNotFound, nil)))
	assert.Equal(t, ErrCodeUserNotFound, wrapped.Code)
}
