// ABOUTME: Business outcomes returned by ledger operations and the fatal caller errors
// ABOUTME: Outcomes are values callers branch on; fatal errors reject the whole call

package ledger

import "errors"

// Outcome is the result variant of a mutating ledger operation. Exactly one
// variant is returned per call; only Success commits.
type Outcome string

const (
	Success              Outcome = "success"
	CategoryEmpty        Outcome = "categoryEmpty"
	PaymentMethodEmpty   Outcome = "paymentMethodEmpty"
	InvalidTxn           Outcome = "invalidTxn"
	InvalidCategory      Outcome = "invalidCategory"
	CategoryExists       Outcome = "categoryExists"
	MethodExists         Outcome = "methodExists"
	InvalidMethod        Outcome = "invalidMethod"
	InvalidAmount        Outcome = "invalidAmount"
	InvalidToken         Outcome = "invalidToken"
	AlreadyUsedToken     Outcome = "alreadyUsedToken"
	ExpiredToken         Outcome = "expiredToken"
	ShortUsername        Outcome = "shortUsername"
	AlreadyRegistered    Outcome = "alreadyRegistered"
	InvalidUser          Outcome = "invalidUser"
	UnauthorizedActivity Outcome = "unauthorizedActivity"
	Failed               Outcome = "failed"
)

// OK reports whether the outcome is Success.
func (o Outcome) OK() bool { return o == Success }

func (o Outcome) String() string { return string(o) }

// Rejected calls. These abort the call without any state change and are
// never mixed up with business outcomes.
var (
	ErrUnauthenticated = errors.New("caller is not authenticated")
	ErrNotRegistered   = errors.New("caller is not registered")
	ErrAccessRevoked   = errors.New("caller access has been revoked")
	ErrUnauthorized    = errors.New("caller lacks the required role")
)

// IsRejection reports whether err is one of the fatal caller errors.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrAccessRevoked) ||
		errors.Is(err, ErrUnauthorized)
}
