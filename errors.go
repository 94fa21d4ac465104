package sponsor

import (
	"errors"
	"fmt"
	"net/http"
)

// SponsorError is returned by every failing sponsorship stage
type SponsorError struct {
	Code    string `json:"code"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *SponsorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SponsorError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error to the HTTP status the gateway responds with.
// Only client input errors are distinguished; everything else is a 500.
func (e *SponsorError) StatusCode() int {
	if e.Code == ErrCodeInvalidRequest {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Common error codes
const (
	ErrCodeInvalidRequest       = "invalid_request"
	ErrCodeInvalidAddress       = "invalid_address"
	ErrCodeProvisioningFailed   = "provisioning_failed"
	ErrCodeUserNotFound         = "user_not_found"
	ErrCodeResolutionFailed     = "resolution_failed"
	ErrCodeWalletNotFound       = "wallet_not_found"
	ErrCodeAccessTokenMissing   = "access_token_missing"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeWalletNotAuthorized  = "wallet_not_authorized"
	ErrCodeSessionExpired       = "session_expired"
	ErrCodeSubmissionFailed     = "submission_failed"
	ErrCodeInternal             = "internal_error"
)

// Fixed client-facing messages
const (
	MsgUserAddressRequired = "User address is required"
	MsgInvalidUserAddress  = "Invalid user address"
	MsgUserNotFound        = "User wallet not found"
	MsgWalletNotFound      = "Target wallet not found in linked accounts"
	MsgAccessTokenRequired = "User access token is required for authorization"
)

// ErrUserNotFound is returned by resolvers when the provider has no user
// record for the address.
var ErrUserNotFound = errors.New("user not found")

// ErrWalletNotFound is returned by resolvers when no linked wallet matches.
var ErrWalletNotFound = errors.New("target wallet not found")

// NewSponsorError creates a new sponsorship error
func NewSponsorError(code string, stage Stage, message string, err error) *SponsorError {
	return &SponsorError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// AsSponsorError unwraps err into a SponsorError, classifying anything else
// as an internal error.
func AsSponsorError(err error) *SponsorError {
	if err == nil {
		return nil
	}
	var se *SponsorError
	if errors.As(err, &se) {
		return se
	}
	return NewSponsorError(ErrCodeInternal, StageFailed, err.Error(), err)
}
