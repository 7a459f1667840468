package consensus

import (
	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headerstore"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/domain/consensus/processes/chainstate"
	"github.com/kaspanet/chaincore/domain/consensus/processes/difficultymanager"
	"github.com/kaspanet/chaincore/domain/consensus/processes/headervalidator"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
)

// Config holds the collaborators of a Consensus
type Config struct {
	Params *chainparams.Params

	// Repository stores accepted headers. An in-memory store is used
	// when it is nil.
	Repository model.HeaderRepository

	// Clock is the time source of the timestamp rule. The wall clock is
	// used when it is nil.
	Clock clock.Clock

	// ExtraRules are validated after the built-in header rules
	ExtraRules []headervalidator.HeaderRule
}

// Factory instantiates new Consensuses
type Factory interface {
	NewConsensus(cfg *Config) (Consensus, error)
}

type factory struct{}

// NewFactory creates a new Consensus factory
func NewFactory() Factory {
	return &factory{}
}

// NewConsensus instantiates a new Consensus
func (f *factory) NewConsensus(cfg *Config) (Consensus, error) {
	if cfg.Params == nil {
		return nil, errors.New("consensus parameters are required")
	}
	err := cfg.Params.Validate()
	if err != nil {
		return nil, err
	}

	repository := cfg.Repository
	if repository == nil {
		repository = headerstore.NewMemoryStore()
	}
	timeSource := cfg.Clock
	if timeSource == nil {
		timeSource = clock.NewDefaultClock()
	}

	// Processes
	chainState := chainstate.New(cfg.Params)
	difficultyManager := difficultymanager.New(cfg.Params)
	headerValidator, err := headervalidator.New(difficultyManager, timeSource, cfg.ExtraRules...)
	if err != nil {
		return nil, err
	}

	_, err = repository.TryAdd(&cfg.Params.GenesisHeader)
	if err != nil {
		return nil, err
	}

	return &consensus{
		params:            cfg.Params,
		repository:        repository,
		chainState:        chainState,
		difficultyManager: difficultyManager,
		headerValidator:   headerValidator,
	}, nil
}
