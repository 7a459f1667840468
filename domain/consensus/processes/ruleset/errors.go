package ruleset

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// These errors identify why a set of rules cannot be ordered.
var (
	// ErrMissingRequiredRule indicates a rule requires another rule that
	// is not registered.
	ErrMissingRequiredRule = errors.New("ErrMissingRequiredRule")

	// ErrCircularRuleDependency indicates rules that, directly or not,
	// must execute after themselves.
	ErrCircularRuleDependency = errors.New("ErrCircularRuleDependency")

	// ErrDuplicateRule indicates two rules share the same ID.
	ErrDuplicateRule = errors.New("ErrDuplicateRule")
)

// ConfigurationError is returned when a rule set cannot be built. RuleIDs
// holds the offending rule IDs, sorted.
type ConfigurationError struct {
	kind    error
	RuleIDs []string
	details string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s [%s]", e.kind, e.details, strings.Join(e.RuleIDs, ", "))
}

// Unwrap satisfies the errors.Unwrap interface
func (e ConfigurationError) Unwrap() error {
	return e.kind
}

func newConfigurationError(kind error, ruleIDs []string, format string, args ...interface{}) error {
	return errors.WithStack(ConfigurationError{
		kind:    kind,
		RuleIDs: ruleIDs,
		details: fmt.Sprintf(format, args...),
	})
}
