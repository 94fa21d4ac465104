package sponsor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Stage names one step of the sponsorship pipeline
type Stage string

const (
	StageValidating     Stage = "validating"
	StageProvisioning   Stage = "provisioning"
	StageResolving      Stage = "resolving"
	StageAuthenticating Stage = "authenticating"
	StageSubmitting     Stage = "submitting"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// Terminal reports whether no further stage follows
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// DefaultSessionSkew is the margin applied when checking session expiry
const DefaultSessionSkew = 5 * time.Second

// TransactionSponsor runs the sponsorship pipeline:
// Validating -> [Provisioning] -> Resolving -> Authenticating -> Submitting -> Done.
// Any stage may move the flow to Failed. It holds no per-request state and is
// safe for concurrent use.
type TransactionSponsor struct {
	mu sync.RWMutex

	provisioner   WalletProvisioner
	resolver      WalletResolver
	authenticator SessionAuthenticator
	submitter     TransactionSubmitter
	transaction   SponsoredTransaction

	sessionSkew time.Duration
	now         func() time.Time
	logger      *zap.Logger

	// Lifecycle hooks
	beforeSponsorHooks    []BeforeSponsorHook
	afterSponsorHooks     []AfterSponsorHook
	onSponsorFailureHooks []OnSponsorFailureHook
	onStageCompleteHooks  []OnStageCompleteHook
}

// SponsorOption configures a TransactionSponsor
type SponsorOption func(*TransactionSponsor)

// WithProvisioner enables the server wallet provisioning stage
func WithProvisioner(p WalletProvisioner) SponsorOption {
	return func(s *TransactionSponsor) {
		s.provisioner = p
	}
}

// WithSessionSkew sets the freshness margin for delegated session expiry
func WithSessionSkew(skew time.Duration) SponsorOption {
	return func(s *TransactionSponsor) {
		s.sessionSkew = skew
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) SponsorOption {
	return func(s *TransactionSponsor) {
		s.now = now
	}
}

// WithLogger sets the logger used for stage transitions
func WithLogger(logger *zap.Logger) SponsorOption {
	return func(s *TransactionSponsor) {
		s.logger = logger
	}
}

// NewTransactionSponsor wires the pipeline to its provider collaborators.
// tx is the fixed transaction relayed for every request.
func NewTransactionSponsor(
	resolver WalletResolver,
	authenticator SessionAuthenticator,
	submitter TransactionSubmitter,
	tx SponsoredTransaction,
	opts ...SponsorOption,
) *TransactionSponsor {
	s := &TransactionSponsor{
		resolver:      resolver,
		authenticator: authenticator,
		submitter:     submitter,
		transaction:   tx,
		sessionSkew:   DefaultSessionSkew,
		now:           time.Now,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (s *TransactionSponsor) OnBeforeSponsor(hook BeforeSponsorHook) *TransactionSponsor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeSponsorHooks = append(s.beforeSponsorHooks, hook)
	return s
}

func (s *TransactionSponsor) OnAfterSponsor(hook AfterSponsorHook) *TransactionSponsor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterSponsorHooks = append(s.afterSponsorHooks, hook)
	return s
}

func (s *TransactionSponsor) OnSponsorFailure(hook OnSponsorFailureHook) *TransactionSponsor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSponsorFailureHooks = append(s.onSponsorFailureHooks, hook)
	return s
}

func (s *TransactionSponsor) OnStageComplete(hook OnStageCompleteHook) *TransactionSponsor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStageCompleteHooks = append(s.onStageCompleteHooks, hook)
	return s
}

// ============================================================================
// Pipeline
// ============================================================================

// sponsorFlow is the short-lived state of one request moving through the stages
type sponsorFlow struct {
	req          SponsorRequest
	stage        Stage
	serverWallet *ServerWallet
	wallet       ResolvedWallet
	session      DelegatedSession
	result       TransactionResult
}

// Sponsor validates req and relays the sponsored transaction on the user's
// behalf. Failures are always *SponsorError.
func (s *TransactionSponsor) Sponsor(ctx context.Context, req SponsorRequest) (*SponsorResult, error) {
	s.mu.RLock()
	beforeHooks := s.beforeSponsorHooks
	afterHooks := s.afterSponsorHooks
	failureHooks := s.onSponsorFailureHooks
	stageHooks := s.onStageCompleteHooks
	s.mu.RUnlock()

	start := s.now()
	req.FunctionName = normalizeFunctionName(req.FunctionName)
	hookCtx := SponsorContext{Ctx: ctx, Request: req, Timestamp: start}

	fail := func(serr *SponsorError) (*SponsorResult, error) {
		failureCtx := SponsorFailureContext{SponsorContext: hookCtx, Error: serr, Duration: s.now().Sub(start)}
		for _, hook := range failureHooks {
			hook(failureCtx)
		}
		s.logger.Error("sponsorship failed",
			zap.String("stage", string(serr.Stage)),
			zap.String("code", serr.Code),
			zap.Error(serr))
		return nil, serr
	}

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return fail(NewSponsorError(ErrCodeInternal, StageValidating, err.Error(), err))
		}
		if result != nil && result.Abort {
			return fail(NewSponsorError(ErrCodeInvalidRequest, StageValidating, result.Reason, nil))
		}
	}

	flow := &sponsorFlow{req: req, stage: StageValidating}
	for !flow.stage.Terminal() {
		current := flow.stage
		stageStart := s.now()

		next, serr := s.step(ctx, flow)

		stageCtx := StageContext{SponsorContext: hookCtx, Stage: current, Error: serr, Duration: s.now().Sub(stageStart)}
		for _, hook := range stageHooks {
			hook(stageCtx)
		}

		if serr != nil {
			flow.stage = StageFailed
			return fail(serr)
		}

		s.logger.Debug("sponsorship stage complete",
			zap.String("stage", string(current)),
			zap.String("next", string(next)),
			zap.Duration("duration", stageCtx.Duration))
		flow.stage = next
	}

	result := SponsorResult{
		Transaction:  flow.result,
		UserWallet:   flow.wallet,
		ServerWallet: flow.serverWallet,
		Duration:     s.now().Sub(start),
	}

	s.logger.Info("sponsored transaction sent",
		zap.String("txHash", result.Transaction.Hash),
		zap.String("transactionId", result.Transaction.TransactionID),
		zap.String("walletId", result.UserWallet.WalletID),
		zap.Duration("duration", result.Duration))

	resultCtx := SponsorResultContext{SponsorContext: hookCtx, Result: result, Duration: result.Duration}
	for _, hook := range afterHooks {
		if err := hook(resultCtx); err != nil {
			s.logger.Warn("after sponsor hook failed", zap.Error(err))
		}
	}

	return &result, nil
}

// step runs the flow's current stage and returns the stage that follows it
func (s *TransactionSponsor) step(ctx context.Context, flow *sponsorFlow) (Stage, *SponsorError) {
	if err := ctx.Err(); err != nil {
		return StageFailed, NewSponsorError(ErrCodeInternal, flow.stage, err.Error(), err)
	}

	switch flow.stage {
	case StageValidating:
		return s.validate(flow)
	case StageProvisioning:
		return s.provision(ctx, flow)
	case StageResolving:
		return s.resolve(ctx, flow)
	case StageAuthenticating:
		return s.authenticate(ctx, flow)
	case StageSubmitting:
		return s.submit(ctx, flow)
	default:
		return StageFailed, NewSponsorError(ErrCodeInternal, flow.stage, fmt.Sprintf("unknown stage %q", flow.stage), nil)
	}
}

func (s *TransactionSponsor) validate(flow *sponsorFlow) (Stage, *SponsorError) {
	if err := ValidateSponsorRequest(flow.req); err != nil {
		return StageFailed, err
	}
	if s.provisioner != nil {
		return StageProvisioning, nil
	}
	return StageResolving, nil
}

func (s *TransactionSponsor) provision(ctx context.Context, flow *sponsorFlow) (Stage, *SponsorError) {
	wallet, err := s.provisioner.CreateServerWallet(ctx)
	if err != nil {
		return StageFailed, NewSponsorError(ErrCodeProvisioningFailed, StageProvisioning, providerMessage(err), err)
	}
	flow.serverWallet = &wallet
	return StageResolving, nil
}

func (s *TransactionSponsor) resolve(ctx context.Context, flow *sponsorFlow) (Stage, *SponsorError) {
	wallet, err := s.resolver.ResolveWallet(ctx, flow.req.UserAddress)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return StageFailed, NewSponsorError(ErrCodeUserNotFound, StageResolving, MsgUserNotFound, err)
	case errors.Is(err, ErrWalletNotFound):
		return StageFailed, NewSponsorError(ErrCodeWalletNotFound, StageResolving, MsgWalletNotFound, err)
	case err != nil:
		return StageFailed, NewSponsorError(ErrCodeResolutionFailed, StageResolving, providerMessage(err), err)
	}

	if wallet.Matches > 1 {
		s.logger.Warn("several linked wallets match address, using the first",
			zap.String("address", flow.req.UserAddress),
			zap.Int("matches", wallet.Matches),
			zap.String("walletId", wallet.WalletID))
	}
	flow.wallet = wallet
	return StageAuthenticating, nil
}

func (s *TransactionSponsor) authenticate(ctx context.Context, flow *sponsorFlow) (Stage, *SponsorError) {
	if strings.TrimSpace(flow.req.UserAccessToken) == "" {
		return StageFailed, NewSponsorError(ErrCodeAccessTokenMissing, StageAuthenticating, MsgAccessTokenRequired, nil)
	}

	grant, err := s.authenticator.Authenticate(ctx, flow.req.UserAccessToken)
	if err != nil {
		msg := fmt.Sprintf("Failed to authenticate with Privy: %s", providerMessage(err))
		return StageFailed, NewSponsorError(ErrCodeAuthenticationFailed, StageAuthenticating, msg, err)
	}

	if !grant.Covers(flow.wallet.WalletID) {
		msg := fmt.Sprintf("Wallet %s not found in authenticated wallets", flow.wallet.WalletID)
		return StageFailed, NewSponsorError(ErrCodeWalletNotAuthorized, StageAuthenticating, msg, nil)
	}

	session := DelegatedSession{
		AuthorizationKey: grant.AuthorizationKey,
		ExpiresAt:        grant.ExpiresAt,
		WalletID:         flow.wallet.WalletID,
	}
	if session.Expired(s.now(), s.sessionSkew) {
		msg := fmt.Sprintf("Delegated session expired at %s", session.ExpiresAt.UTC().Format(time.RFC3339))
		return StageFailed, NewSponsorError(ErrCodeSessionExpired, StageAuthenticating, msg, nil)
	}

	flow.session = session
	return StageSubmitting, nil
}

func (s *TransactionSponsor) submit(ctx context.Context, flow *sponsorFlow) (Stage, *SponsorError) {
	result, err := s.submitter.SendTransaction(ctx, flow.session, s.transaction)
	// the session is single use
	flow.session = DelegatedSession{}
	if err != nil {
		return StageFailed, NewSponsorError(ErrCodeSubmissionFailed, StageSubmitting, providerMessage(err), err)
	}
	flow.result = result
	return StageDone, nil
}

// ValidateSponsorRequest performs the up-front checks on a request. Only an
// absent or empty address is a client error (400); a present address that is
// not a hex address fails like any other pipeline error. The session token is
// checked later, at the authentication stage.
func ValidateSponsorRequest(req SponsorRequest) *SponsorError {
	if req.UserAddress == "" {
		return NewSponsorError(ErrCodeInvalidRequest, StageValidating, MsgUserAddressRequired, nil)
	}
	if !common.IsHexAddress(req.UserAddress) {
		return NewSponsorError(ErrCodeInvalidAddress, StageValidating, MsgInvalidUserAddress, nil)
	}
	return nil
}

func providerMessage(err error) string {
	var perr ProviderError
	if errors.As(err, &perr) {
		return perr.ProviderMessage()
	}
	return err.Error()
}
