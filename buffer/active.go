package buffer

import "github.com/almoore/ged/interrupt"

// The active set marks the lines a global command will visit.
// Membership is a per-node flag, so delete and move can drop unlinked
// nodes from the set in O(1); the queue built by SetActiveNode
// preserves list order for iteration.

// ClearActiveList empties the active set.
func (b *Buffer) ClearActiveList() {
	interrupt.Disable()
	for _, lp := range b.activeList {
		lp.active = false
	}
	b.activeList = b.activeList[:0]
	b.activeNdx = 0
	interrupt.Enable()
}

// SetActiveNode appends lp to the active set.
func (b *Buffer) SetActiveNode(lp *Node) {
	interrupt.Disable()
	lp.active = true
	b.activeList = append(b.activeList, lp)
	interrupt.Enable()
}

// NextActiveNode returns the next node of the set and removes it, or
// nil when the set is exhausted. Nodes whose flag was cleared by an
// intervening delete or move are skipped.
func (b *Buffer) NextActiveNode() *Node {
	interrupt.Disable()
	defer interrupt.Enable()
	for b.activeNdx < len(b.activeList) {
		lp := b.activeList[b.activeNdx]
		b.activeNdx++
		if lp.active {
			lp.active = false
			return lp
		}
	}
	b.activeList = b.activeList[:0]
	b.activeNdx = 0
	return nil
}

// unsetActiveNodes clears the active flag of the nodes [bp, ep), which
// are about to be unlinked.
func (b *Buffer) unsetActiveNodes(bp, ep *Node) {
	for lp := bp; lp != ep; lp = lp.forw {
		lp.active = false
	}
}
