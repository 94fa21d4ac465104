package sponsor

import (
	"context"
	"time"
)

// ============================================================================
// Hook Context Types
// ============================================================================

// SponsorContext contains information passed to sponsorship hooks
type SponsorContext struct {
	Ctx       context.Context
	Request   SponsorRequest
	Timestamp time.Time
}

// SponsorResultContext contains a successful sponsorship and its context
type SponsorResultContext struct {
	SponsorContext
	Result   SponsorResult
	Duration time.Duration
}

// SponsorFailureContext contains a failed sponsorship and its context
type SponsorFailureContext struct {
	SponsorContext
	Error    *SponsorError
	Duration time.Duration
}

// StageContext describes one finished pipeline stage
type StageContext struct {
	SponsorContext
	Stage    Stage
	Error    *SponsorError
	Duration time.Duration
}

// ============================================================================
// Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook.
// If Abort is true, the sponsorship is rejected with the given Reason.
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Hook Function Types
// ============================================================================

// BeforeSponsorHook is called before the pipeline starts.
// Returning a result with Abort=true fails the request as an invalid request.
type BeforeSponsorHook func(SponsorContext) (*BeforeHookResult, error)

// AfterSponsorHook is called after a successful sponsorship.
// Any error returned is logged and does not affect the result.
type AfterSponsorHook func(SponsorResultContext) error

// OnSponsorFailureHook is called when the pipeline fails at any stage.
type OnSponsorFailureHook func(SponsorFailureContext)

// OnStageCompleteHook is called after every stage, successful or not.
type OnStageCompleteHook func(StageContext)
