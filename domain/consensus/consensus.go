package consensus

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/domain/consensus/ruleerrors"
	"github.com/kaspanet/chaincore/infrastructure/logger"
	"github.com/pkg/errors"
)

// MaxHeadersPerLocate is the maximum number of headers LocateHeaders
// returns.
const MaxHeadersPerLocate = 2000

// Consensus maintains the header chain of the node
type Consensus interface {
	ValidateAndInsertHeaders(headers []*wire.BlockHeader) (*HeadersInsertionResult, error)
	OnBlockDataReceived(hash *chainhash.Hash, txCount uint64, hasWitness bool) (*headertree.HeaderNode, error)
	InvalidateBlock(hash *chainhash.Hash) (*headertree.ChainChange, error)

	GetHeader(hash *chainhash.Hash) (*wire.BlockHeader, bool, error)
	LocateHeaders(locator []chainhash.Hash, hashStop *chainhash.Hash, maxHeaders int) ([]*wire.BlockHeader, error)

	SetOnNewHeadersValidatedHandler(handler model.OnNewHeadersValidatedHandler)

	Params() *chainparams.Params
	ChainState() model.ChainState
	DifficultyManager() model.DifficultyManager
}

// HeadersInsertionResult describes what a batch of headers changed
type HeadersInsertionResult struct {
	// LastNode is the node of the last header of the batch that was
	// accepted or already known. It is nil if no header was.
	LastNode *headertree.HeaderNode

	// NewHeadersCount is the number of headers added to the header tree
	NewHeadersCount int

	// ChainChange is the change of the best chain, nil if the tip did not
	// move.
	ChainChange *headertree.ChainChange
}

type consensus struct {
	params     *chainparams.Params
	repository model.HeaderRepository

	chainState        model.ChainState
	difficultyManager model.DifficultyManager
	headerValidator   model.HeaderValidator

	// insertionLock serializes header batches
	insertionLock sync.Mutex

	// hadMinimumChainWork is whether the best header carried the minimum
	// chain work after the previous batch. Protected by insertionLock.
	hadMinimumChainWork bool

	handlerLock           sync.RWMutex
	onNewHeadersValidated model.OnNewHeadersValidatedHandler
}

// ValidateAndInsertHeaders validates the given headers in order and adds
// the valid ones to the header tree. The tip moves to the best header if it
// carries more work. Processing stops at the first invalid header, whose
// error is returned along with the result of the headers before it.
func (c *consensus) ValidateAndInsertHeaders(headers []*wire.BlockHeader) (*HeadersInsertionResult, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "ValidateAndInsertHeaders")
	defer onEnd()

	c.insertionLock.Lock()
	defer c.insertionLock.Unlock()

	result := &HeadersInsertionResult{}
	insertErr := c.insertHeaders(headers, result)
	if ruleerrors.IsIndexCorruption(insertErr) {
		log.Criticalf("Header tree corrupted while inserting headers: %s", insertErr)
		return result, insertErr
	}

	chainChange, err := c.updateTip()
	if err != nil {
		if ruleerrors.IsIndexCorruption(err) {
			log.Criticalf("Header tree corrupted while moving the tip: %s", err)
		}
		return result, err
	}
	result.ChainChange = chainChange

	c.logMinimumChainWorkNoLock()
	c.notifyNewHeadersValidated(result)
	return result, insertErr
}

// logMinimumChainWorkNoLock logs when the best header first carries the
// minimum chain work of the network.
//
// This function MUST be called with the insertion lock held.
func (c *consensus) logMinimumChainWorkNoLock() {
	hasMinimumChainWork := c.chainState.HasMinimumChainWork()
	if hasMinimumChainWork && !c.hadMinimumChainWork {
		log.Infof("Best header %s reached the minimum chain work %s", c.chainState.BestHeader(),
			c.params.MinimumChainWork)
	}
	c.hadMinimumChainWork = hasMinimumChainWork
}

func (c *consensus) insertHeaders(headers []*wire.BlockHeader, result *HeadersInsertionResult) error {
	for _, header := range headers {
		hash := header.BlockHash()
		if node, ok := c.chainState.TryGetNode(&hash); ok {
			if node.IsFailed() {
				return errors.Wrapf(ruleerrors.ErrKnownInvalid, "header %s is known to be invalid", node)
			}
			result.LastNode = node
			continue
		}

		previous, _ := c.chainState.TryGetNode(&header.PrevBlock)
		err := c.headerValidator.ValidateHeader(&model.HeaderValidationContext{
			Header:   header,
			Hash:     hash,
			Previous: previous,
		})
		if err != nil {
			return err
		}

		node, err := c.chainState.AddToBlockIndex(header)
		if err != nil {
			return err
		}
		_, err = c.repository.TryAdd(header)
		if err != nil {
			return err
		}

		result.LastNode = node
		result.NewHeadersCount++
	}
	return nil
}

// updateTip moves the tip to the best header if it carries more work than
// the current tip.
func (c *consensus) updateTip() (*headertree.ChainChange, error) {
	bestHeader := c.chainState.BestHeader()
	tip := c.chainState.Tip()
	if bestHeader == tip || !bestHeader.ChainWork().GreaterThan(tip.ChainWork()) || bestHeader.IsFailed() {
		return nil, nil
	}
	return c.chainState.SetTip(bestHeader)
}

// notifyNewHeadersValidated publishes the headers that are new to the best
// chain. After a reorganization these are all the connected nodes, not only
// the ones of the batch.
func (c *consensus) notifyNewHeadersValidated(result *HeadersInsertionResult) {
	if c.notifyChainChange(result.ChainChange) || result.NewHeadersCount == 0 {
		return
	}
	c.publish(&model.NewHeadersValidatedEvent{
		LastValidatedHeaderNode: result.LastNode,
		NewHeadersFoundCount:    result.NewHeadersCount,
	})
}

// notifyChainChange publishes the nodes connected to the best chain by
// change. It returns false if change connected nothing.
func (c *consensus) notifyChainChange(change *headertree.ChainChange) bool {
	if change == nil || len(change.Connected) == 0 {
		return false
	}
	c.publish(&model.NewHeadersValidatedEvent{
		LastValidatedHeaderNode: change.Connected[len(change.Connected)-1],
		NewHeadersFoundCount:    len(change.Connected),
	})
	return true
}

func (c *consensus) publish(event *model.NewHeadersValidatedEvent) {
	c.handlerLock.RLock()
	handler := c.onNewHeadersValidated
	c.handlerLock.RUnlock()
	if handler != nil {
		handler(event)
	}
}

// SetOnNewHeadersValidatedHandler sets the handler called after every batch
// that added headers or moved the tip
func (c *consensus) SetOnNewHeadersValidatedHandler(handler model.OnNewHeadersValidatedHandler) {
	c.handlerLock.Lock()
	defer c.handlerLock.Unlock()

	c.onNewHeadersValidated = handler
}

// OnBlockDataReceived records that the data of the given block arrived
func (c *consensus) OnBlockDataReceived(hash *chainhash.Hash, txCount uint64,
	hasWitness bool) (*headertree.HeaderNode, error) {

	return c.chainState.MarkBlockDataReceived(hash, txCount, hasWitness)
}

// InvalidateBlock marks the given block and its descendants as failed.
// When the best chain moves to another branch, its nodes are published like
// newly validated headers.
func (c *consensus) InvalidateBlock(hash *chainhash.Hash) (*headertree.ChainChange, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "InvalidateBlock")
	defer onEnd()

	c.insertionLock.Lock()
	defer c.insertionLock.Unlock()

	change, err := c.chainState.InvalidateBlock(hash)
	if err != nil {
		return nil, err
	}
	c.logMinimumChainWorkNoLock()
	c.notifyChainChange(change)
	return change, nil
}

// GetHeader returns the stored header of the given hash
func (c *consensus) GetHeader(hash *chainhash.Hash) (*wire.BlockHeader, bool, error) {
	return c.repository.TryGet(hash)
}

// LocateHeaders returns the best chain headers following the fork point of
// locator, up to and including hashStop, and at most maxHeaders of them.
func (c *consensus) LocateHeaders(locator []chainhash.Hash, hashStop *chainhash.Hash,
	maxHeaders int) ([]*wire.BlockHeader, error) {

	if maxHeaders <= 0 || maxHeaders > MaxHeadersPerLocate {
		maxHeaders = MaxHeadersPerLocate
	}

	nodes := c.chainState.BestChainAfter(locator, hashStop, maxHeaders)
	headers := make([]*wire.BlockHeader, 0, len(nodes))
	for _, node := range nodes {
		hash := node.Hash()
		header, found, err := c.repository.TryGet(&hash)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ruleerrors.NewErrIndexCorruption("header %s is in the best chain but not stored", node)
		}
		headers = append(headers, header)
	}
	return headers, nil
}

// Params returns the consensus parameters
func (c *consensus) Params() *chainparams.Params {
	return c.params
}

// ChainState returns the chain state
func (c *consensus) ChainState() model.ChainState {
	return c.chainState
}

// DifficultyManager returns the difficulty manager
func (c *consensus) DifficultyManager() model.DifficultyManager {
	return c.difficultyManager
}
