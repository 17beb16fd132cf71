package buffer

import "github.com/almoore/ged/interrupt"

// Undo atom kinds. UADD and UDEL are inverses, as are UMOV and VMOV;
// Undo flips each atom's kind after reversing it, so a second Undo
// redoes the change.
const (
	UADD = iota // the run [head, tail] was inserted; undoing unlinks it
	UDEL        // the run [head, tail] was detached; undoing relinks it
	UMOV        // with its pair atom, records a splice to be reversed
	VMOV
)

// An UndoAtom records one structural edit as the inclusive run of
// nodes it touched. DEL atoms own their detached run: the nodes stay
// alive, referenced only by the atom, until the stack is cleared.
type undoAtom struct {
	kind       int
	head, tail *Node
}

// UndoAtom is the caller-visible handle to a pushed atom. Commands
// that insert several lines push one atom for the first line and grow
// its tail over the rest, so one atom spans one contiguous insertion.
type UndoAtom struct {
	b *Buffer
	i int
}

// SetTail extends the atom to end at lp.
func (u *UndoAtom) SetTail(lp *Node) { u.b.undoStack[u.i].tail = lp }

// ExtendTail extends the atom to end at the node at addr.
func (u *UndoAtom) ExtendTail(addr int) { u.SetTail(u.b.SearchNode(addr)) }

// PushUndoAtom appends an atom of the given kind spanning the nodes at
// from and to; an address of -1 means the current address.
func (b *Buffer) PushUndoAtom(kind, from, to int) *UndoAtom {
	interrupt.Disable()
	if to < 0 {
		to = b.currentAddr
	}
	if from < 0 {
		from = b.currentAddr
	}
	b.undoStack = append(b.undoStack, undoAtom{
		kind: kind,
		tail: b.SearchNode(to),
		head: b.SearchNode(from),
	})
	interrupt.Enable()
	return &UndoAtom{b: b, i: len(b.undoStack) - 1}
}

// Undo reverses every atom on the stack, newest first, then flips each
// atom's kind and reverses the stack so that Undo is its own inverse.
// The stored (current, last, modified) snapshot is swapped with the
// live values.
func (b *Buffer) Undo(isGlobal bool) error {
	if len(b.undoStack) == 0 || b.uCurrentAddr < 0 || b.uLastAddr < 0 {
		return ErrNothingToUndo
	}
	oCurrent, oLast, oModified := b.currentAddr, b.lastAddr, b.modified

	b.SearchNode(0) // reset cached node before re-splicing
	interrupt.Disable()
	u := b.undoStack
	for n := len(u) - 1; n >= 0; n-- {
		switch u[n].kind {
		case UADD:
			linkNodes(u[n].head.back, u[n].tail.forw)
		case UDEL:
			linkNodes(u[n].head.back, u[n].head)
			linkNodes(u[n].tail, u[n].tail.forw)
		case UMOV, VMOV:
			linkNodes(u[n-1].head, u[n].head.forw)
			linkNodes(u[n].tail.back, u[n-1].tail)
			linkNodes(u[n].head, u[n].tail)
			n--
		}
		u[n].kind ^= 1
	}
	for n := 0; 2*n < len(u)-1; n++ {
		u[n], u[len(u)-1-n] = u[len(u)-1-n], u[n]
	}
	if isGlobal {
		b.ClearActiveList()
	}
	b.currentAddr, b.uCurrentAddr = b.uCurrentAddr, oCurrent
	b.lastAddr, b.uLastAddr = b.uLastAddr, oLast
	b.modified, b.uModified = b.uModified, oModified
	interrupt.Enable()
	return nil
}

// ClearUndoStack empties the stack and snapshots the present state as
// the new undo baseline. The detached runs owned by DEL atoms are
// released: their marks are invalidated and the nodes become garbage.
func (b *Buffer) ClearUndoStack() {
	interrupt.Disable()
	for n := len(b.undoStack) - 1; n >= 0; n-- {
		if b.undoStack[n].kind != UDEL {
			continue
		}
		ep := b.undoStack[n].tail.forw
		for lp := b.undoStack[n].head; lp != ep; lp = lp.forw {
			b.unmarkNode(lp)
		}
	}
	b.undoStack = b.undoStack[:0]
	b.uCurrentAddr = b.currentAddr
	b.uLastAddr = b.lastAddr
	b.uModified = b.modified
	interrupt.Enable()
}

// ResetUndoState clears the stack and disables undo until the next
// clear, so that e and E cannot be undone.
func (b *Buffer) ResetUndoState() {
	b.ClearUndoStack()
	b.uCurrentAddr, b.uLastAddr = -1, -1
	b.uModified = false
}
