package service

import "errors"

// Error kinds. API handlers map these to status codes with errors.Is.
var (
	ErrUnauthenticated    = errors.New("User not found")
	ErrTokenMissing       = errors.New("Token not found")
	ErrTokenExpired       = errors.New("Token expired")
	ErrTokenInvalid       = errors.New("Invalid token")
	ErrForbidden          = errors.New("Access denied: admin only")
	ErrNotFound           = errors.New("Not found")
	ErrInvalidRequest     = errors.New("Invalid request")
	ErrAlreadyFinalized   = errors.New("Checkout already finalized")
	ErrPaymentRequired    = errors.New("Checkout is not paid")
	ErrUserExists         = errors.New("User already exists")
	ErrInvalidCredentials = errors.New("Invalid Credentials")
	ErrAlreadySubscribed  = errors.New("Email is already subscribed")
	ErrPaymentRejected    = errors.New("Payment could not be verified")
	ErrPaymentUnavailable = errors.New("Payment provider unavailable")
	ErrRequestInProgress  = errors.New("A request with this Idempotency-Key is in progress")

	ErrRefreshTokenMissing = errors.New("No refresh token provided")
	ErrRefreshTokenInvalid = errors.New("Invalid refresh token")
	ErrRefreshTokenExpired = errors.New("Refresh token expired or invalid")
)

var (
	ErrCheckoutNotFound = kindError(ErrNotFound, "Checkout not found")
	ErrOrderNotFound    = kindError(ErrNotFound, "Order not found")
	ErrProductNotFound  = kindError(ErrNotFound, "Product not found")
	ErrUserNotFound     = kindError(ErrNotFound, "User not found")
	ErrCartNotFound     = kindError(ErrNotFound, "Cart not found")

	ErrInvalidPaymentStatus = kindError(ErrInvalidRequest, "Invalid Payment Status")
)

// domainError carries a client-facing message and unwraps to its kind
type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }

func (e *domainError) Unwrap() error { return e.kind }

func kindError(kind error, msg string) error {
	return &domainError{kind: kind, msg: msg}
}

func invalidRequest(msg string) error {
	return kindError(ErrInvalidRequest, msg)
}
