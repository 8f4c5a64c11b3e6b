package sources

import (
	"errors"
	"fmt"
)

var (
	ErrNotShopify        = errors.New("not a shopify source")
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidSourceType = errors.New("invalid source type")
)

// ErrorCode identifies the step of the connection flow that failed.
type ErrorCode string

const (
	CodeMissingParams    ErrorCode = "missing_params"
	CodeInvalidShop      ErrorCode = "invalid_shop"
	CodeInvalidSignature ErrorCode = "invalid_signature"
	CodeInvalidState     ErrorCode = "invalid_state"
	CodeTokenExchange    ErrorCode = "token_exchange_failed"
	CodeNoAccessToken    ErrorCode = "no_access_token"
	CodeShopInfo         ErrorCode = "shop_info_failed"
	CodeUnauthenticated  ErrorCode = "unauthenticated"
	CodeUpdateFailed     ErrorCode = "update_failed"
	CodeInsertFailed     ErrorCode = "insert_failed"
	CodeUnexpected       ErrorCode = "unexpected"
)

var codeMessages = map[ErrorCode]string{
	CodeMissingParams:    "Missing required parameters",
	CodeInvalidShop:      "Invalid shop domain",
	CodeInvalidSignature: "Invalid signature",
	CodeInvalidState:     "Invalid state",
	CodeTokenExchange:    "Token exchange failed",
	CodeNoAccessToken:    "No access token received",
	CodeShopInfo:         "Failed to fetch shop details",
	CodeUnauthenticated:  "Authentication required",
	CodeUpdateFailed:     "Database update failed",
	CodeInsertFailed:     "Database insert failed",
	CodeUnexpected:       "Unexpected error",
}

// Message is the human-readable text shown to the user for the code.
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return codeMessages[CodeUnexpected]
}

// ConnectError is returned by every step of the Shopify connection flow.
type ConnectError struct {
	Code ErrorCode
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the code from err, or CodeUnexpected for foreign errors.
func CodeOf(err error) ErrorCode {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnexpected
}
