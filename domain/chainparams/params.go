// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainparams

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/consensus/utils/target"
	"github.com/pkg/errors"
)

// Params defines the consensus parameters of a network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net wire.BitcoinNet

	// GenesisHeader defines the first header of the chain.
	GenesisHeader wire.BlockHeader

	// GenesisHash is the hash of GenesisHeader.
	GenesisHash chainhash.Hash

	// PowLimit defines the highest allowed proof of work target.
	PowLimit target.Target

	// PowLimitBits defines the highest allowed proof of work target in
	// compact form.
	PowLimitBits uint32

	// PowTargetTimespan is the desired amount of time between two
	// difficulty retargets.
	PowTargetTimespan time.Duration

	// PowTargetSpacing is the desired amount of time to generate each
	// block.
	PowTargetSpacing time.Duration

	// PowAllowMinDifficultyBlocks allows a block to use the minimum
	// difficulty when it arrives more than twice the target spacing after
	// its previous block.
	PowAllowMinDifficultyBlocks bool

	// PowNoRetargeting disables difficulty retargets altogether.
	PowNoRetargeting bool

	// SegwitHeight is the height from which blocks may carry witness data.
	SegwitHeight int32

	// MinimumChainWork is the amount of work a header chain needs before
	// the node considers itself out of initial header download.
	MinimumChainWork target.Target
}

// DifficultyAdjustmentInterval returns the number of blocks between two
// difficulty retargets.
func (p *Params) DifficultyAdjustmentInterval() int64 {
	return int64(p.PowTargetTimespan / p.PowTargetSpacing)
}

// Validate returns an error if the parameters cannot drive the consensus
// rules.
func (p *Params) Validate() error {
	if p.PowTargetSpacing <= 0 {
		return errors.Errorf("%s: target spacing must be positive, got %s", p.Name, p.PowTargetSpacing)
	}
	if p.PowTargetTimespan < p.PowTargetSpacing {
		return errors.Errorf("%s: target timespan %s is shorter than the target spacing %s",
			p.Name, p.PowTargetTimespan, p.PowTargetSpacing)
	}
	if p.PowLimit.IsZero() {
		return errors.Errorf("%s: proof of work limit cannot be zero", p.Name)
	}
	powLimitFromBits, isNegative, isOverflow := target.FromCompact(p.PowLimitBits)
	if isNegative || isOverflow || powLimitFromBits.IsZero() {
		return errors.Errorf("%s: proof of work limit bits %08x do not encode a valid target",
			p.Name, p.PowLimitBits)
	}
	if powLimitFromBits.GreaterThan(p.PowLimit) {
		return errors.Errorf("%s: proof of work limit bits %08x exceed the proof of work limit %s",
			p.Name, p.PowLimitBits, p.PowLimit)
	}
	if p.GenesisHeader.BlockHash() != p.GenesisHash {
		return errors.Errorf("%s: genesis hash %s does not match the genesis header hash %s",
			p.Name, p.GenesisHash, p.GenesisHeader.BlockHash())
	}
	return nil
}

// WithMinimumChainWork returns a copy of p that requires the given amount
// of chain work, given as a hexadecimal number.
func (p *Params) WithMinimumChainWork(minimumChainWorkHex string) (*Params, error) {
	minimumChainWork, err := target.FromHex(minimumChainWorkHex)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid minimum chain work")
	}
	params := *p
	params.MinimumChainWork = minimumChainWork
	return &params, nil
}

// FromChainConfig derives the consensus parameters from a btcd network
// definition.
func FromChainConfig(chainConfig *chaincfg.Params, segwitHeight int32) (*Params, error) {
	powLimit, err := target.FromBig(chainConfig.PowLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid proof of work limit for %s", chainConfig.Name)
	}
	params := &Params{
		Name:                        chainConfig.Name,
		Net:                         chainConfig.Net,
		GenesisHeader:               chainConfig.GenesisBlock.Header,
		GenesisHash:                 *chainConfig.GenesisHash,
		PowLimit:                    powLimit,
		PowLimitBits:                chainConfig.PowLimitBits,
		PowTargetTimespan:           chainConfig.TargetTimespan,
		PowTargetSpacing:            chainConfig.TargetTimePerBlock,
		PowAllowMinDifficultyBlocks: chainConfig.ReduceMinDifficulty,
		PowNoRetargeting:            chainConfig.PoWNoRetargeting,
		SegwitHeight:                segwitHeight,
	}
	err = params.Validate()
	if err != nil {
		return nil, err
	}
	return params, nil
}

func mustFromChainConfig(chainConfig *chaincfg.Params, segwitHeight int32) *Params {
	params, err := FromChainConfig(chainConfig, segwitHeight)
	if err != nil {
		panic(err)
	}
	return params
}

// MainNetParams defines the consensus parameters of the main network.
var MainNetParams = mustFromChainConfig(&chaincfg.MainNetParams, 481824)

// TestNet3Params defines the consensus parameters of the test network
// (version 3).
var TestNet3Params = mustFromChainConfig(&chaincfg.TestNet3Params, 834624)

// RegressionNetParams defines the consensus parameters of the regression
// test network.
var RegressionNetParams = mustFromChainConfig(&chaincfg.RegressionNetParams, 0)

// SimNetParams defines the consensus parameters of the simulation test
// network.
var SimNetParams = mustFromChainConfig(&chaincfg.SimNetParams, 0)
