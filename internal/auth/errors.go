package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrInvalidCredentials is the uniform login failure. It never reveals
	// whether the email exists or the password was wrong.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")

	// ErrEmailTaken indicates a signup against an already registered email.
	ErrEmailTaken = errors.New("auth: email is already registered")

	ErrTokenExpired     = errors.New("auth: token expired")
	ErrTokenMalformed   = errors.New("auth: token malformed")
	ErrTokenUnsupported = errors.New("auth: token signing algorithm unsupported")

	// ErrPrincipalNotFound means the token was valid but its subject no
	// longer resolves to an active identity.
	ErrPrincipalNotFound = errors.New("auth: principal not found")

	ErrInsufficientRole  = errors.New("auth: insufficient role")
	ErrInvalidAssignment = errors.New("auth: invalid assignment")

	// ErrStoreUnavailable wraps identity store failures that are not
	// lookup misses, including cancellation and timeouts. The core never
	// retries; callers decide whether to retry the whole request.
	ErrStoreUnavailable = errors.New("auth: identity store unavailable")
)
