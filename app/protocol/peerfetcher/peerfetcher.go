package peerfetcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
	"github.com/pkg/errors"
)

const (
	defaultReputation    = 100
	defaultEligibleBonus = 1
	defaultMaxStalls     = 3
	defaultStallPenalty  = 20
)

// BlockRequester sends block requests to a remote peer.
type BlockRequester interface {
	RequestBlock(ctx context.Context, hash *chainhash.Hash) error
}

// Config holds the settings of a PeerFetcher. Zero values select the
// defaults.
type Config struct {
	// ID names the peer in logs
	ID string

	SupportsWitness bool
	SegwitHeight    int32

	InitialReputation uint32
	EligibleBonus     uint32

	// MaxStalls is the number of stalled downloads after which
	// OnMisbehaving is called
	MaxStalls    uint32
	StallPenalty uint32

	OnMisbehaving func(fetcher *PeerFetcher)
}

// PeerFetcher downloads blocks from a single connected peer.
type PeerFetcher struct {
	requester BlockRequester
	cfg       Config

	reputation   uint32
	stalls       uint32
	misbehaving  uint32
	requestCount uint64

	bestKnownHeaderLock sync.RWMutex
	bestKnownHeader     *headertree.HeaderNode
}

// New creates a PeerFetcher sending its requests through requester
func New(requester BlockRequester, cfg Config) *PeerFetcher {
	if cfg.InitialReputation == 0 {
		cfg.InitialReputation = defaultReputation
	}
	if cfg.EligibleBonus == 0 {
		cfg.EligibleBonus = defaultEligibleBonus
	}
	if cfg.MaxStalls == 0 {
		cfg.MaxStalls = defaultMaxStalls
	}
	if cfg.StallPenalty == 0 {
		cfg.StallPenalty = defaultStallPenalty
	}
	return &PeerFetcher{
		requester:  requester,
		cfg:        cfg,
		reputation: cfg.InitialReputation,
	}
}

// Score returns the reputation of the peer
func (pf *PeerFetcher) Score() uint32 {
	return atomic.LoadUint32(&pf.reputation)
}

// BestKnownHeader returns the best header the peer is known to have
func (pf *PeerFetcher) BestKnownHeader() *headertree.HeaderNode {
	pf.bestKnownHeaderLock.RLock()
	defer pf.bestKnownHeaderLock.RUnlock()

	return pf.bestKnownHeader
}

// UpdateBestKnownHeader records that the peer has node. It is ignored
// unless node carries more work than the current best known header.
func (pf *PeerFetcher) UpdateBestKnownHeader(node *headertree.HeaderNode) {
	pf.bestKnownHeaderLock.Lock()
	defer pf.bestKnownHeaderLock.Unlock()

	if pf.bestKnownHeader != nil && !node.ChainWork().GreaterThan(pf.bestKnownHeader.ChainWork()) {
		return
	}
	pf.bestKnownHeader = node
}

// FetchBlockScore returns zero when the peer cannot serve the block of
// node: the block needs witness data the peer does not provide, or node
// is not an ancestor of the best header of the peer.
func (pf *PeerFetcher) FetchBlockScore(node *headertree.HeaderNode) uint32 {
	if !pf.cfg.SupportsWitness && node.Height() >= pf.cfg.SegwitHeight {
		return 0
	}
	bestKnownHeader := pf.BestKnownHeader()
	if bestKnownHeader == nil || bestKnownHeader.Ancestor(node.Height()) != node {
		return 0
	}

	score := uint64(pf.Score()) + uint64(pf.cfg.EligibleBonus)
	if score > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(score)
}

// TryFetch requests the block of node from the peer, unless its score for
// the block dropped below minimumScore
func (pf *PeerFetcher) TryFetch(ctx context.Context, node *headertree.HeaderNode, minimumScore uint32) (bool, error) {
	score := pf.FetchBlockScore(node)
	if score == 0 || score < minimumScore {
		return false, nil
	}

	hash := node.Hash()
	err := pf.requester.RequestBlock(ctx, &hash)
	if err != nil {
		return false, errors.Wrapf(err, "could not request block %s from %s", node, pf)
	}
	atomic.AddUint64(&pf.requestCount, 1)
	return true, nil
}

// OnFetchStalled lowers the reputation of the peer. Once the peer stalled
// MaxStalls times it is reported as misbehaving, once.
func (pf *PeerFetcher) OnFetchStalled(node *headertree.HeaderNode) {
	log.Debugf("Peer %s stalled on block %s", pf, node)
	pf.subtractReputation(pf.cfg.StallPenalty)

	stalls := atomic.AddUint32(&pf.stalls, 1)
	if stalls < pf.cfg.MaxStalls {
		return
	}
	if !atomic.CompareAndSwapUint32(&pf.misbehaving, 0, 1) {
		return
	}
	log.Infof("Peer %s stalled %d times", pf, stalls)
	if pf.cfg.OnMisbehaving != nil {
		pf.cfg.OnMisbehaving(pf)
	}
}

func (pf *PeerFetcher) subtractReputation(penalty uint32) {
	for {
		reputation := atomic.LoadUint32(&pf.reputation)
		updated := uint32(0)
		if reputation > penalty {
			updated = reputation - penalty
		}
		if atomic.CompareAndSwapUint32(&pf.reputation, reputation, updated) {
			return
		}
	}
}

// StallCount returns the number of stalled downloads of the peer
func (pf *PeerFetcher) StallCount() uint32 {
	return atomic.LoadUint32(&pf.stalls)
}

// RequestCount returns the number of blocks requested from the peer
func (pf *PeerFetcher) RequestCount() uint64 {
	return atomic.LoadUint64(&pf.requestCount)
}

func (pf *PeerFetcher) String() string {
	if pf.cfg.ID == "" {
		return fmt.Sprintf("%p", pf)
	}
	return pf.cfg.ID
}
