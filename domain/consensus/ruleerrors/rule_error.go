package ruleerrors

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

// These constants are used to identify a specific RuleError.
var (
	// ErrInvalidAncestorHeader indicates that one of the header's
	// ancestors has failed validation.
	ErrInvalidAncestorHeader = newRuleError("ErrInvalidAncestorHeader")

	// ErrTimeTooOld indicates the time is either before the median time of
	// the last several headers per the chain consensus rules.
	ErrTimeTooOld = newRuleError("ErrTimeTooOld")

	// ErrTimeTooMuchInTheFuture indicates that the header timestamp is too
	// much in the future.
	ErrTimeTooMuchInTheFuture = newRuleError("ErrTimeTooMuchInTheFuture")

	// ErrUnexpectedDifficulty indicates specified bits do not align with
	// the expected value either because it doesn't match the calculated
	// value based on difficulty retarget rules.
	ErrUnexpectedDifficulty = newRuleError("ErrUnexpectedDifficulty")

	// ErrTargetTooHigh indicates specified bits do not align with
	// the expected value either because it is above the valid
	// range.
	ErrTargetTooHigh = newRuleError("ErrTargetTooHigh")

	// ErrNegativeTarget indicates specified bits do not align with
	// the expected value either because it is negative.
	ErrNegativeTarget = newRuleError("ErrNegativeTarget")

	// ErrInvalidPoW indicates that the header proof-of-work is invalid.
	ErrInvalidPoW = newRuleError("ErrInvalidPoW")

	// ErrInsufficientChainWork indicates a reorganization was requested
	// towards a chain that does not carry more work than the current one.
	ErrInsufficientChainWork = newRuleError("ErrInsufficientChainWork")

	// ErrKnownInvalid indicates a header that was already marked as
	// invalid.
	ErrKnownInvalid = newRuleError("ErrKnownInvalid")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a header failed due to one of the many validation rules.
// The caller can use type assertions to determine if a failure was
// specifically due to a rule violation.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// ErrMissingPreviousHeader indicates that the previous header of a header
// is not known.
type ErrMissingPreviousHeader struct {
	PreviousHash chainhash.Hash
}

func (e ErrMissingPreviousHeader) Error() string {
	return fmt.Sprintf("missing previous header %s", e.PreviousHash)
}

// NewErrMissingPreviousHeader creates a new ErrMissingPreviousHeader error
// wrapped in a RuleError
func NewErrMissingPreviousHeader(previousHash *chainhash.Hash) error {
	return errors.WithStack(RuleError{
		message: "ErrMissingPreviousHeader",
		inner:   ErrMissingPreviousHeader{PreviousHash: *previousHash},
	})
}

// IsRuleError returns whether err carries a RuleError anywhere in its chain.
func IsRuleError(err error) bool {
	var ruleError RuleError
	return errors.As(err, &ruleError)
}
