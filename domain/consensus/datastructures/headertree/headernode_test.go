package headertree

import (
	"fmt"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/kaspanet/chaincore/domain/consensus/utils/target"
	"github.com/kaspanet/chaincore/domain/consensus/utils/testutils"
	"pgregory.net/rapid"
)

func newGenesisNode() *HeaderNode {
	return NewHeaderNode(&chainparams.RegressionNetParams.GenesisHeader, nil)
}

// buildBranch appends count nodes to start.
func buildBranch(start *HeaderNode, count int, branchID uint32) []*HeaderNode {
	headers := testutils.HeaderChain(start.Header(), count, 10*time.Minute, 0x207fffff, branchID)
	nodes := make([]*HeaderNode, 0, count)
	previous := start
	for _, header := range headers {
		node := NewHeaderNode(header, previous)
		nodes = append(nodes, node)
		previous = node
	}
	return nodes
}

func TestNewHeaderNode(t *testing.T) {
	genesis := newGenesisNode()
	if genesis.Height() != 0 || !genesis.ChainWork().IsZero() || genesis.Previous() != nil {
		t.Fatalf("TestNewHeaderNode: unexpected genesis node %s", spew.Sdump(genesis))
	}
	if genesis.Hash() != chainparams.RegressionNetParams.GenesisHash {
		t.Fatalf("TestNewHeaderNode: expected genesis hash %s, got %s",
			chainparams.RegressionNetParams.GenesisHash, genesis.Hash())
	}

	nodes := buildBranch(genesis, 5, 0)
	previous := genesis
	for _, node := range nodes {
		if node.Height() != previous.Height()+1 {
			t.Fatalf("TestNewHeaderNode: expected height %d, got %d", previous.Height()+1, node.Height())
		}
		expectedWork := previous.ChainWork().Add(target.Work(node.Bits()))
		if !node.ChainWork().Equal(expectedWork) {
			t.Fatalf("TestNewHeaderNode: expected chain work %s, got %s", expectedWork, node.ChainWork())
		}
		if node.PreviousHash() != previous.Hash() {
			t.Fatalf("TestNewHeaderNode: unexpected previous hash")
		}
		if node.Header().BlockHash() != node.Hash() {
			t.Fatalf("TestNewHeaderNode: reconstructed header hashes to %s, expected %s",
				node.Header().BlockHash(), node.Hash())
		}
		previous = node
	}
}

func TestSkipHeight(t *testing.T) {
	tests := []struct {
		height   int32
		expected int32
	}{
		{0, 0}, {1, 0}, {2, 0}, {3, 1}, {4, 0}, {5, 1}, {6, 4}, {7, 1}, {8, 0},
		{12, 8}, {13, 1}, {100, 96}, {101, 65},
	}
	for _, test := range tests {
		if SkipHeight(test.height) != test.expected {
			t.Fatalf("TestSkipHeight: SkipHeight(%d): expected %d, got %d", test.height,
				test.expected, SkipHeight(test.height))
		}
	}
	for height := int32(2); height < 1<<14; height++ {
		if SkipHeight(height) >= height {
			t.Fatalf("TestSkipHeight: SkipHeight(%d) = %d is not below the height", height, SkipHeight(height))
		}
	}
}

func TestAncestor(t *testing.T) {
	genesis := newGenesisNode()
	nodes := append([]*HeaderNode{genesis}, buildBranch(genesis, 2100, 0)...)
	tip := nodes[len(nodes)-1]

	for height, expected := range nodes {
		if tip.Ancestor(int32(height)) != expected {
			t.Fatalf("TestAncestor: wrong ancestor at height %d", height)
		}
	}
	if tip.Ancestor(-1) != nil || tip.Ancestor(tip.Height()+1) != nil {
		t.Fatalf("TestAncestor: out of range ancestors are expected to be nil")
	}
	for _, node := range nodes[2:] {
		if node.Skip() == nil || node.Skip().Height() != SkipHeight(node.Height()) {
			t.Fatalf("TestAncestor: node %s has a wrong skip pointer", node)
		}
	}
	if tip.RelativeAncestor(10) != nodes[len(nodes)-11] {
		t.Fatalf("TestAncestor: wrong relative ancestor")
	}
}

func TestAncestorProperty(t *testing.T) {
	genesis := newGenesisNode()
	nodes := append([]*HeaderNode{genesis}, buildBranch(genesis, 3000, 0)...)

	rapid.Check(t, func(t *rapid.T) {
		from := rapid.IntRange(0, len(nodes)-1).Draw(t, "from")
		height := rapid.IntRange(0, from).Draw(t, "height")
		expected := nodes[from]
		for expected.Height() > int32(height) {
			expected = expected.Previous()
		}
		if nodes[from].Ancestor(int32(height)) != expected {
			t.Fatalf("Ancestor(%d) of %s differs from a linear walk", height, nodes[from])
		}
	})
}

func TestLastCommonAncestor(t *testing.T) {
	genesis := newGenesisNode()
	trunk := buildBranch(genesis, 50, 0)
	forkPoint := trunk[29]
	branch := buildBranch(forkPoint, 40, 1)

	tests := []struct {
		name     string
		a, b     *HeaderNode
		expected *HeaderNode
	}{
		{"fork", trunk[len(trunk)-1], branch[len(branch)-1], forkPoint},
		{"fork reversed", branch[len(branch)-1], trunk[len(trunk)-1], forkPoint},
		{"ancestor", trunk[40], trunk[10], trunk[10]},
		{"same", trunk[3], trunk[3], trunk[3]},
		{"genesis", genesis, branch[0], genesis},
		{"nil", nil, branch[0], nil},
	}
	for _, test := range tests {
		if LastCommonAncestor(test.a, test.b) != test.expected {
			t.Fatalf("TestLastCommonAncestor: %s: unexpected result", test.name)
		}
	}

	otherGenesis := NewHeaderNode(&chainparams.MainNetParams.GenesisHeader, nil)
	if LastCommonAncestor(otherGenesis, trunk[0]) != nil {
		t.Fatalf("TestLastCommonAncestor: nodes of different trees have no common ancestor")
	}
}

func TestStatus(t *testing.T) {
	node := buildBranch(newGenesisNode(), 1, 0)[0]
	if node.Status() != StatusValidUnknown {
		t.Fatalf("TestStatus: expected a new node to have no status, got %s", node.Status())
	}
	if !node.RaiseValidity(StatusValidTree) {
		t.Fatalf("TestStatus: expected RaiseValidity to succeed")
	}
	if node.RaiseValidity(StatusValidHeader) {
		t.Fatalf("TestStatus: validity is not expected to decrease")
	}
	if !node.IsValid(StatusValidHeader) || !node.IsValid(StatusValidTree) || node.IsValid(StatusValidTransactions) {
		t.Fatalf("TestStatus: unexpected validity %s", node.Status())
	}

	status := node.AddStatusFlags(StatusHasBlockData | StatusOptWitness)
	if !status.HasFlags(StatusHasBlockData|StatusOptWitness) || !node.HasBlockData() {
		t.Fatalf("TestStatus: flags were not set: %s", status)
	}
	if status.Validity() != StatusValidTree {
		t.Fatalf("TestStatus: AddStatusFlags changed the validity: %s", status)
	}

	node.AddStatusFlags(StatusFailedChild)
	if !node.IsFailed() || node.IsValid(StatusValidHeader) {
		t.Fatalf("TestStatus: a failed node is never valid: %s", node.Status())
	}
	if node.RaiseValidity(StatusValidScripts) {
		t.Fatalf("TestStatus: a failed node cannot be raised")
	}
	if node.Status().String() != "ValidTree|HasBlockData|FailedChild|OptWitness" {
		t.Fatalf("TestStatus: unexpected string %s", node.Status())
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("TestStatus: adding a validity level as a flag is expected to panic")
		}
	}()
	node.AddStatusFlags(StatusValidChain)
}

func TestCalcPastMedianTime(t *testing.T) {
	genesis := newGenesisNode()
	nodes := buildBranch(genesis, 20, 0)
	// Timestamps are genesis + 10 minutes per height, so the median of the
	// last 11 is five heights back.
	tip := nodes[len(nodes)-1]
	expected := tip.Ancestor(tip.Height() - 5).Timestamp()
	if !tip.CalcPastMedianTime().Equal(expected) {
		t.Fatalf("TestCalcPastMedianTime: expected %s, got %s", expected, tip.CalcPastMedianTime())
	}
	if !genesis.CalcPastMedianTime().Equal(genesis.Timestamp()) {
		t.Fatalf("TestCalcPastMedianTime: the median of genesis alone is its timestamp")
	}
}

func TestAncestorStepCount(t *testing.T) {
	if testing.Short() {
		t.Skip("TestAncestorStepCount builds a chain of 2^18 headers")
	}

	const chainLength = 1 << 18
	const maxSteps = 110

	genesis := newGenesisNode()
	nodes := append([]*HeaderNode{genesis}, buildBranch(genesis, chainLength, 0)...)

	checkSteps := func(from int, height int) string {
		ancestor, steps := nodes[from].ancestorWithSteps(int32(height))
		if ancestor != nodes[height] {
			return fmt.Sprintf("ancestorWithSteps(%d) of height %d returned the wrong node", height, from)
		}
		if steps > maxSteps {
			return fmt.Sprintf("going from height %d to %d took %d steps, more than %d", from, height, steps, maxSteps)
		}
		return ""
	}

	tip := len(nodes) - 1
	for height := 0; height <= tip; height += 37 {
		if failure := checkSteps(tip, height); failure != "" {
			t.Fatalf("TestAncestorStepCount: %s", failure)
		}
	}

	rapid.Check(t, func(t *rapid.T) {
		from := rapid.IntRange(0, tip).Draw(t, "from")
		height := rapid.IntRange(0, from).Draw(t, "height")
		if failure := checkSteps(from, height); failure != "" {
			t.Fatalf("%s", failure)
		}
	})
}
