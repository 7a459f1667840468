package headervalidator

import (
	"time"

	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/domain/consensus/processes/ruleset"
	"github.com/kaspanet/chaincore/domain/consensus/ruleerrors"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
)

// Rule IDs of the built-in header rules.
const (
	PreviousHeaderRuleID = "PreviousHeader"
	ProofOfWorkRuleID    = "ProofOfWork"
	TimestampRuleID      = "Timestamp"
	DifficultyRuleID     = "Difficulty"
)

// maxTimeOffset is how far in the future a header timestamp may be,
// compared to the local clock.
const maxTimeOffset = 2 * time.Hour

type previousHeaderRule struct{}

func (r *previousHeaderRule) Descriptor() ruleset.RuleDescriptor {
	return ruleset.RuleDescriptor{ID: PreviousHeaderRuleID, PreferredOrder: 0}
}

func (r *previousHeaderRule) Validate(validationContext *model.HeaderValidationContext) error {
	if validationContext.Previous == nil {
		return ruleerrors.NewErrMissingPreviousHeader(&validationContext.Header.PrevBlock)
	}
	if validationContext.Previous.IsFailed() {
		return errors.Wrapf(ruleerrors.ErrInvalidAncestorHeader, "previous header %s of %s is invalid",
			validationContext.Previous, validationContext.Hash)
	}
	return nil
}

type proofOfWorkRule struct {
	difficultyManager model.DifficultyManager
}

func (r *proofOfWorkRule) Descriptor() ruleset.RuleDescriptor {
	return ruleset.RuleDescriptor{ID: ProofOfWorkRuleID, PreferredOrder: 1}
}

func (r *proofOfWorkRule) Validate(validationContext *model.HeaderValidationContext) error {
	return r.difficultyManager.CheckProofOfWork(&validationContext.Hash, validationContext.Header.Bits)
}

type timestampRule struct {
	clock clock.Clock
}

func (r *timestampRule) Descriptor() ruleset.RuleDescriptor {
	return ruleset.RuleDescriptor{
		ID:             TimestampRuleID,
		Requires:       []string{PreviousHeaderRuleID},
		PreferredOrder: 2,
	}
}

func (r *timestampRule) Validate(validationContext *model.HeaderValidationContext) error {
	timestamp := validationContext.Header.Timestamp
	pastMedianTime := validationContext.Previous.CalcPastMedianTime()
	if !timestamp.After(pastMedianTime) {
		return errors.Wrapf(ruleerrors.ErrTimeTooOld, "header timestamp of %s is not after the past "+
			"median time of %s", timestamp, pastMedianTime)
	}

	maxTimestamp := r.clock.Now().Add(maxTimeOffset)
	if timestamp.After(maxTimestamp) {
		return errors.Wrapf(ruleerrors.ErrTimeTooMuchInTheFuture, "header timestamp of %s is too far in "+
			"the future, the maximum allowed is %s", timestamp, maxTimestamp)
	}
	return nil
}

type difficultyRule struct {
	difficultyManager model.DifficultyManager
}

func (r *difficultyRule) Descriptor() ruleset.RuleDescriptor {
	return ruleset.RuleDescriptor{
		ID:             DifficultyRuleID,
		Requires:       []string{PreviousHeaderRuleID},
		ExecuteAfter:   []string{ProofOfWorkRuleID},
		PreferredOrder: 3,
	}
}

func (r *difficultyRule) Validate(validationContext *model.HeaderValidationContext) error {
	expectedBits, err := r.difficultyManager.NextWorkRequired(validationContext.Previous, validationContext.Header)
	if err != nil {
		return err
	}
	if validationContext.Header.Bits != expectedBits {
		return errors.Wrapf(ruleerrors.ErrUnexpectedDifficulty, "header difficulty of %08x is not the "+
			"expected value of %08x", validationContext.Header.Bits, expectedBits)
	}
	return nil
}
