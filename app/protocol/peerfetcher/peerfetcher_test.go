package peerfetcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/domain/consensus/utils/testutils"
	"github.com/pkg/errors"
)

var _ model.StallAwareFetcher = (*PeerFetcher)(nil)

type fakeRequester struct {
	lock      sync.Mutex
	requested []chainhash.Hash
	err       error
}

func (r *fakeRequester) RequestBlock(_ context.Context, hash *chainhash.Hash) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.err != nil {
		return r.err
	}
	r.requested = append(r.requested, *hash)
	return nil
}

// buildBranches returns a main branch of 10 nodes above genesis and a side
// branch of 3 nodes forking at height 5.
func buildBranches() (mainBranch, sideBranch []*headertree.HeaderNode) {
	params := chainparams.RegressionNetParams
	genesis := headertree.NewHeaderNode(&params.GenesisHeader, nil)

	build := func(start *headertree.HeaderNode, count int, branchID uint32) []*headertree.HeaderNode {
		nodes := make([]*headertree.HeaderNode, 0, count)
		previous := start
		for _, header := range testutils.HeaderChain(start.Header(), count, 10*time.Minute, params.PowLimitBits, branchID) {
			previous = headertree.NewHeaderNode(header, previous)
			nodes = append(nodes, previous)
		}
		return nodes
	}
	mainBranch = append([]*headertree.HeaderNode{genesis}, build(genesis, 10, 0)...)
	sideBranch = build(mainBranch[5], 3, 1)
	return mainBranch, sideBranch
}

func TestFetchBlockScore(t *testing.T) {
	mainBranch, sideBranch := buildBranches()

	tests := []struct {
		name            string
		cfg             Config
		bestKnownHeader *headertree.HeaderNode
		node            *headertree.HeaderNode
		expected        uint32
	}{
		{
			name:     "unknown best header",
			cfg:      Config{SupportsWitness: true},
			node:     mainBranch[3],
			expected: 0,
		},
		{
			name:            "ancestor of the best header",
			cfg:             Config{SupportsWitness: true, InitialReputation: 50, EligibleBonus: 7},
			bestKnownHeader: mainBranch[10],
			node:            mainBranch[3],
			expected:        57,
		},
		{
			name:            "best header itself",
			cfg:             Config{SupportsWitness: true},
			bestKnownHeader: mainBranch[10],
			node:            mainBranch[10],
			expected:        defaultReputation + defaultEligibleBonus,
		},
		{
			name:            "above the best header",
			cfg:             Config{SupportsWitness: true},
			bestKnownHeader: mainBranch[4],
			node:            mainBranch[6],
			expected:        0,
		},
		{
			name:            "other branch",
			cfg:             Config{SupportsWitness: true},
			bestKnownHeader: mainBranch[10],
			node:            sideBranch[1],
			expected:        0,
		},
		{
			name:            "witness required",
			cfg:             Config{SupportsWitness: false, SegwitHeight: 5},
			bestKnownHeader: mainBranch[10],
			node:            mainBranch[5],
			expected:        0,
		},
		{
			name:            "below the segwit height",
			cfg:             Config{SupportsWitness: false, SegwitHeight: 5},
			bestKnownHeader: mainBranch[10],
			node:            mainBranch[4],
			expected:        defaultReputation + defaultEligibleBonus,
		},
	}
	for _, test := range tests {
		fetcher := New(&fakeRequester{}, test.cfg)
		if test.bestKnownHeader != nil {
			fetcher.UpdateBestKnownHeader(test.bestKnownHeader)
		}
		score := fetcher.FetchBlockScore(test.node)
		if score != test.expected {
			t.Fatalf("TestFetchBlockScore: %s: expected %d, got %d", test.name, test.expected, score)
		}
	}
}

func TestUpdateBestKnownHeader(t *testing.T) {
	mainBranch, sideBranch := buildBranches()
	fetcher := New(&fakeRequester{}, Config{SupportsWitness: true})

	fetcher.UpdateBestKnownHeader(mainBranch[8])
	fetcher.UpdateBestKnownHeader(mainBranch[6])
	if fetcher.BestKnownHeader() != mainBranch[8] {
		t.Fatalf("TestUpdateBestKnownHeader: the best known header moved back")
	}
	fetcher.UpdateBestKnownHeader(sideBranch[2])
	if fetcher.BestKnownHeader() != mainBranch[8] {
		t.Fatalf("TestUpdateBestKnownHeader: a header with less work replaced the best known header")
	}
}

func TestTryFetch(t *testing.T) {
	mainBranch, _ := buildBranches()
	requester := &fakeRequester{}
	fetcher := New(requester, Config{ID: "peer", SupportsWitness: true})
	fetcher.UpdateBestKnownHeader(mainBranch[10])

	score := fetcher.FetchBlockScore(mainBranch[2])
	sent, err := fetcher.TryFetch(context.Background(), mainBranch[2], score)
	if err != nil || !sent {
		t.Fatalf("TestTryFetch: expected the request to be sent, got %t, %v", sent, err)
	}
	if len(requester.requested) != 1 || requester.requested[0] != mainBranch[2].Hash() {
		t.Fatalf("TestTryFetch: the block was not requested")
	}

	// The score dropped below the one the fetcher was selected with.
	sent, err = fetcher.TryFetch(context.Background(), mainBranch[3], score+1)
	if err != nil || sent {
		t.Fatalf("TestTryFetch: expected the request to be refused, got %t, %v", sent, err)
	}

	requester.err = errors.New("connection closed")
	sent, err = fetcher.TryFetch(context.Background(), mainBranch[4], score)
	if err == nil || sent {
		t.Fatalf("TestTryFetch: expected a request error, got %t, %v", sent, err)
	}
	if fetcher.RequestCount() != 1 {
		t.Fatalf("TestTryFetch: expected 1 request, got %d", fetcher.RequestCount())
	}
}

func TestOnFetchStalled(t *testing.T) {
	mainBranch, _ := buildBranches()
	misbehavingCalls := 0
	fetcher := New(&fakeRequester{}, Config{
		SupportsWitness:   true,
		InitialReputation: 50,
		StallPenalty:      20,
		MaxStalls:         3,
		OnMisbehaving: func(*PeerFetcher) {
			misbehavingCalls++
		},
	})

	expectedScores := []uint32{30, 10, 0, 0}
	for i, expectedScore := range expectedScores {
		fetcher.OnFetchStalled(mainBranch[1])
		if fetcher.Score() != expectedScore {
			t.Fatalf("TestOnFetchStalled: after %d stalls expected score %d, got %d",
				i+1, expectedScore, fetcher.Score())
		}
	}
	if fetcher.StallCount() != 4 {
		t.Fatalf("TestOnFetchStalled: expected 4 stalls, got %d", fetcher.StallCount())
	}
	if misbehavingCalls != 1 {
		t.Fatalf("TestOnFetchStalled: expected one misbehaving report, got %d", misbehavingCalls)
	}

	// A zero reputation keeps the peer eligible thanks to the bonus.
	fetcher.UpdateBestKnownHeader(mainBranch[10])
	if score := fetcher.FetchBlockScore(mainBranch[1]); score != defaultEligibleBonus {
		t.Fatalf("TestOnFetchStalled: expected the eligibility bonus alone, got %d", score)
	}
}
