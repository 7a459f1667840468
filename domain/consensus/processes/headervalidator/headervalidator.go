package headervalidator

import (
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/domain/consensus/processes/ruleset"
	"github.com/lightningnetwork/lnd/clock"
)

// HeaderRule is a single header validation rule.
type HeaderRule interface {
	ruleset.Rule
	Validate(validationContext *model.HeaderValidationContext) error
}

// headerValidator runs header rules in the order given by their
// descriptors
type headerValidator struct {
	rules *ruleset.RuleSet[HeaderRule]
}

// New instantiates a new HeaderValidator running the built-in header rules
// followed, in dependency order, by extraRules
func New(difficultyManager model.DifficultyManager, clock clock.Clock,
	extraRules ...HeaderRule) (model.HeaderValidator, error) {

	rules := append([]HeaderRule{
		&previousHeaderRule{},
		&proofOfWorkRule{difficultyManager: difficultyManager},
		&timestampRule{clock: clock},
		&difficultyRule{difficultyManager: difficultyManager},
	}, extraRules...)

	ruleSet, err := ruleset.New(rules...)
	if err != nil {
		return nil, err
	}
	return &headerValidator{rules: ruleSet}, nil
}

// ValidateHeader runs every rule and returns the first violation
func (hv *headerValidator) ValidateHeader(validationContext *model.HeaderValidationContext) error {
	for _, rule := range hv.rules.Rules() {
		err := rule.Validate(validationContext)
		if err != nil {
			log.Debugf("Header %s failed rule %s: %s", validationContext.Hash, rule.Descriptor().ID, err)
			return err
		}
	}
	return nil
}
