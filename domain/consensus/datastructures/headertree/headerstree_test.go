package headertree

import (
	"math"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"pgregory.net/rapid"
)

func addAll(tree *HeadersTree, nodes []*HeaderNode) {
	for _, node := range nodes {
		tree.Add(node)
	}
}

func checkBestChain(t *testing.T, tree *HeadersTree) {
	for height := int32(0); height <= tree.Height(); height++ {
		node, ok := tree.TryGetAtHeight(height)
		if !ok || node.Height() != height {
			t.Fatalf("checkBestChain: best chain entry %d is at height %d", height, node.Height())
		}
		if height > 0 {
			previous, _ := tree.TryGetAtHeight(height - 1)
			if node.Previous() != previous {
				t.Fatalf("checkBestChain: best chain is not linked at height %d", height)
			}
		}
	}
}

func TestHeadersTreeSetTip(t *testing.T) {
	genesis := newGenesisNode()
	tree := NewHeadersTree(genesis)
	if tree.Tip() != genesis || tree.Height() != 0 || tree.Count() != 1 {
		t.Fatalf("TestHeadersTreeSetTip: unexpected initial tree")
	}

	trunk := buildBranch(genesis, 20, 0)
	addAll(tree, trunk)
	if tree.Tip() != genesis {
		t.Fatalf("TestHeadersTreeSetTip: Add is not expected to move the tip")
	}
	if tree.Add(trunk[0]) {
		t.Fatalf("TestHeadersTreeSetTip: adding a known node is expected to return false")
	}

	change, err := tree.SetTip(trunk[len(trunk)-1])
	if err != nil {
		t.Fatalf("TestHeadersTreeSetTip: SetTip: %s", err)
	}
	if change.ForkPoint != genesis || len(change.Disconnected) != 0 || len(change.Connected) != 20 {
		t.Fatalf("TestHeadersTreeSetTip: unexpected change when extending")
	}
	checkBestChain(t, tree)

	branch := buildBranch(trunk[9], 15, 1)
	addAll(tree, branch)
	change, err = tree.SetTip(branch[len(branch)-1])
	if err != nil {
		t.Fatalf("TestHeadersTreeSetTip: SetTip: %s", err)
	}
	if change.ForkPoint != trunk[9] || !change.IsReorganization() {
		t.Fatalf("TestHeadersTreeSetTip: expected a reorganization from %s", trunk[9])
	}
	if len(change.Disconnected) != 10 || change.Disconnected[0] != trunk[19] || change.Disconnected[9] != trunk[10] {
		t.Fatalf("TestHeadersTreeSetTip: unexpected disconnected nodes")
	}
	if len(change.Connected) != 15 || change.Connected[0] != branch[0] || change.Connected[14] != branch[14] {
		t.Fatalf("TestHeadersTreeSetTip: unexpected connected nodes")
	}
	checkBestChain(t, tree)

	if tree.IsInBestChain(trunk[15]) || !tree.IsInBestChain(trunk[5]) || !tree.IsInBestChain(branch[3]) {
		t.Fatalf("TestHeadersTreeSetTip: IsInBestChain is inconsistent")
	}
	next, ok := tree.TryGetNext(trunk[9])
	if !ok || next != branch[0] {
		t.Fatalf("TestHeadersTreeSetTip: expected the branch to follow the fork point")
	}
	if _, ok := tree.TryGetNext(trunk[15]); ok {
		t.Fatalf("TestHeadersTreeSetTip: nodes outside the best chain have no next node")
	}
	if _, ok := tree.TryGetNext(tree.Tip()); ok {
		t.Fatalf("TestHeadersTreeSetTip: the tip has no next node")
	}

	// Moving back to an ancestor only disconnects.
	change, err = tree.SetTip(branch[4])
	if err != nil {
		t.Fatalf("TestHeadersTreeSetTip: SetTip: %s", err)
	}
	if len(change.Connected) != 0 || len(change.Disconnected) != 10 || tree.Tip() != branch[4] {
		t.Fatalf("TestHeadersTreeSetTip: unexpected change when rewinding")
	}

	unknown := buildBranch(branch[4], 1, 7)[0]
	if _, err := tree.SetTip(unknown); err == nil {
		t.Fatalf("TestHeadersTreeSetTip: expected an error for an unknown node")
	}
}

func TestHeadersTreeChildren(t *testing.T) {
	genesis := newGenesisNode()
	tree := NewHeadersTree(genesis)
	trunk := buildBranch(genesis, 5, 0)
	branch := buildBranch(trunk[1], 3, 1)
	addAll(tree, trunk)
	addAll(tree, branch)

	trunkHash := trunk[1].Hash()
	children := tree.Children(&trunkHash)
	if len(children) != 2 {
		t.Fatalf("TestHeadersTreeChildren: expected 2 children, got %d", len(children))
	}
	var descendants []*HeaderNode
	tree.ForEachDescendant(trunk[1], func(descendant *HeaderNode) {
		descendants = append(descendants, descendant)
	})
	if len(descendants) != 6 {
		t.Fatalf("TestHeadersTreeChildren: expected 6 descendants, got %d", len(descendants))
	}
	seen := make(map[chainhash.Hash]bool)
	for _, descendant := range descendants {
		if descendant.Previous() != trunk[1] && !seen[descendant.PreviousHash()] {
			t.Fatalf("TestHeadersTreeChildren: %s was visited before its parent", descendant)
		}
		seen[descendant.Hash()] = true
	}
}

func TestBuildLocator(t *testing.T) {
	genesis := newGenesisNode()
	nodes := append([]*HeaderNode{genesis}, buildBranch(genesis, 1000, 0)...)

	locator := BuildLocator(genesis)
	if len(locator) != 1 || locator[0] != genesis.Hash() {
		t.Fatalf("TestBuildLocator: the genesis locator is genesis alone")
	}

	tip := nodes[len(nodes)-1]
	locator = BuildLocator(tip)
	for i := 0; i < 10; i++ {
		if locator[i] != nodes[1000-i].Hash() {
			t.Fatalf("TestBuildLocator: entry %d is expected to be at height %d", i, 1000-i)
		}
	}
	// After ten linear entries the step doubles.
	if locator[10] != nodes[1000-10].Hash() || locator[11] != nodes[1000-12].Hash() || locator[12] != nodes[1000-16].Hash() {
		t.Fatalf("TestBuildLocator: unexpected entries after the linear part")
	}
	if locator[len(locator)-1] != genesis.Hash() {
		t.Fatalf("TestBuildLocator: the locator must end with genesis")
	}

	rapid.Check(t, func(t *rapid.T) {
		height := rapid.IntRange(1, len(nodes)-1).Draw(t, "height")
		locator := BuildLocator(nodes[height])
		bound := 10 + int(math.Ceil(math.Log2(float64(height))))
		if len(locator) > bound {
			t.Fatalf("locator of height %d has %d entries, bound is %d", height, len(locator), bound)
		}
		if locator[0] != nodes[height].Hash() || locator[len(locator)-1] != genesis.Hash() {
			t.Fatalf("locator of height %d does not start at the node and end at genesis", height)
		}
		previousHeight := height + 1
		for _, hash := range locator {
			found := -1
			for h := 0; h < previousHeight; h++ {
				if nodes[h].Hash() == hash {
					found = h
				}
			}
			if found < 0 {
				t.Fatalf("locator of height %d is not strictly descending", height)
			}
			previousHeight = found
		}
	})
}
