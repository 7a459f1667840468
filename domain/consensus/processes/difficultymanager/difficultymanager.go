// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package difficultymanager

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/domain/consensus/ruleerrors"
	"github.com/kaspanet/chaincore/domain/consensus/utils/target"
	"github.com/pkg/errors"
)

// difficultyManager computes the proof of work every header must carry
type difficultyManager struct {
	params *chainparams.Params
}

// New instantiates a new DifficultyManager
func New(params *chainparams.Params) model.DifficultyManager {
	return &difficultyManager{params: params}
}

// NextWorkRequired returns the bits the header following previous must
// carry. candidate is only used for its timestamp.
func (dm *difficultyManager) NextWorkRequired(previous *headertree.HeaderNode,
	candidate *wire.BlockHeader) (uint32, error) {

	if previous == nil {
		return dm.params.PowLimitBits, nil
	}

	interval := dm.params.DifficultyAdjustmentInterval()
	if int64(previous.Height()+1)%interval != 0 {
		if dm.params.PowAllowMinDifficultyBlocks {
			// A block arriving more than twice the target spacing
			// after its previous block may use the minimum
			// difficulty.
			allowMinDifficultyAfter := previous.Timestamp().Add(dm.params.PowTargetSpacing * 2)
			if candidate.Timestamp.After(allowMinDifficultyAfter) {
				return dm.params.PowLimitBits, nil
			}
			return dm.findPreviousNonMinDifficultyBits(previous), nil
		}
		return previous.Bits(), nil
	}

	distance := int32(interval - 1)
	first := previous.RelativeAncestor(distance)
	if first == nil {
		return 0, ruleerrors.NewErrIndexCorruption("ancestor of %s %d blocks back is missing", previous, distance)
	}
	return dm.calculateNextWorkRequired(previous, first.Timestamp()), nil
}

// findPreviousNonMinDifficultyBits returns the bits of the last block that
// did not use the minimum difficulty rule, stopping at retarget heights.
func (dm *difficultyManager) findPreviousNonMinDifficultyBits(startNode *headertree.HeaderNode) uint32 {
	interval := dm.params.DifficultyAdjustmentInterval()
	iterNode := startNode
	for iterNode.Previous() != nil &&
		int64(iterNode.Height())%interval != 0 &&
		iterNode.Bits() == dm.params.PowLimitBits {

		iterNode = iterNode.Previous()
	}
	return iterNode.Bits()
}

func (dm *difficultyManager) calculateNextWorkRequired(previous *headertree.HeaderNode,
	firstBlockTime time.Time) uint32 {

	if dm.params.PowNoRetargeting {
		return previous.Bits()
	}

	// Limit the amount of adjustment that can occur to the previous
	// difficulty.
	targetTimespan := int64(dm.params.PowTargetTimespan / time.Second)
	actualTimespan := previous.UnixTimestamp() - firstBlockTime.Unix()
	if actualTimespan < targetTimespan/4 {
		actualTimespan = targetTimespan / 4
	}
	if actualTimespan > targetTimespan*4 {
		actualTimespan = targetTimespan * 4
	}

	// new target = previous target * actual timespan / target timespan
	previousTarget, _, _ := target.FromCompact(previous.Bits())
	newTarget, isOverflow := previousTarget.MulDivUint64(uint64(actualTimespan), uint64(targetTimespan))
	if isOverflow || newTarget.GreaterThan(dm.params.PowLimit) {
		newTarget = dm.params.PowLimit
	}

	newBits := newTarget.Compact()
	log.Debugf("Difficulty retarget at height %d: actual timespan %ds, target timespan %ds, "+
		"bits %08x -> %08x", previous.Height()+1, actualTimespan, targetTimespan, previous.Bits(), newBits)
	return newBits
}

// CheckProofOfWork ensures bits encode a valid target within the network
// limit and that hash satisfies it.
func (dm *difficultyManager) CheckProofOfWork(hash *chainhash.Hash, bits uint32) error {
	headerTarget, isNegative, isOverflow := target.FromCompact(bits)
	if isNegative {
		return errors.Wrapf(ruleerrors.ErrNegativeTarget, "header target difficulty of %08x is negative", bits)
	}
	if headerTarget.IsZero() {
		return errors.Wrapf(ruleerrors.ErrNegativeTarget, "header target difficulty of %08x is too low", bits)
	}
	if isOverflow || headerTarget.GreaterThan(dm.params.PowLimit) {
		return errors.Wrapf(ruleerrors.ErrTargetTooHigh, "header target difficulty of %08x is higher than "+
			"max of %s", bits, dm.params.PowLimit)
	}

	if target.FromHash(hash).GreaterThan(headerTarget) {
		return errors.Wrapf(ruleerrors.ErrInvalidPoW, "header hash of %s is higher than expected max of %s",
			hash, headerTarget)
	}
	return nil
}
