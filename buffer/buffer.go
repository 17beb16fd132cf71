// Package buffer provides the line buffer of the editor: a circular
// doubly-linked list of line nodes whose text is paged to an
// append-only scratch file.
//
// A node carries only the (pos, len) of its text within the scratch
// file; the text bytes are written once and never rewritten. A
// sentinel node is part of the list and represents address 0, the
// empty position before the first line. Addresses 1..LastAddr refer to
// real lines in order.
//
// The buffer also owns the yank buffer, the undo stack, the line
// marks, and the active set used by global commands, because all of
// them hold references to line nodes and must be consulted when nodes
// are released.
package buffer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/almoore/ged/interrupt"
)

var (
	// ErrInvalidAddress is returned for an address outside the buffer.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrLineTooLong is returned when a line exceeds the maximum length.
	ErrLineTooLong = errors.New("line too long")

	// ErrNothingToPut is returned by Put when the yank buffer is empty.
	ErrNothingToPut = errors.New("nothing to put")

	// ErrNothingToUndo is returned by Undo when the stack is empty or
	// undo is disabled.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrInvalidMarkChar is returned for a mark outside 'a'..'z'.
	ErrInvalidMarkChar = errors.New("invalid mark character")
)

// maxLineLen bounds the length of a single line's text.
const maxLineLen = 1<<31 - 2

// A Node is one line of the buffer. Its text is the byte range
// [pos, pos+len) of the scratch file, excluding the newline.
type Node struct {
	forw, back *Node
	pos        int64
	len        int
	active     bool
}

// Len returns the length of the line's text in bytes.
func (lp *Node) Len() int { return lp.len }

// Forw returns the next node in the circular list.
func (lp *Node) Forw() *Node { return lp.forw }

// Back returns the previous node in the circular list.
func (lp *Node) Back() *Node { return lp.back }

// A Buffer is an editable sequence of lines backed by a scratch file.
type Buffer struct {
	sfp   *os.File // scratch file, created by New and Reopen
	sfpos int64    // scratch file position
	// seekWrite forces a seek to the end before the next write,
	// because a read has moved the file position.
	seekWrite bool

	head     Node // sentinel of the line list; represents address 0
	yankHead Node // sentinel of the yank list

	currentAddr  int
	lastAddr     int
	modified     bool
	binary       bool
	newlineAdded bool

	// One-node lookup cache for SearchNode.
	cachedNode *Node
	cachedAddr int

	marks   [26]*Node
	markCnt int

	// Active set for global commands: the nodes flagged active, queued
	// in list order at the time the set was built.
	activeList []*Node
	activeNdx  int

	// Undo state. See undo.go.
	undoStack    []undoAtom
	uCurrentAddr int // if < 0, undo disabled
	uLastAddr    int // if < 0, undo disabled
	uModified    bool

	lineBuf []byte // reused by GetLine
}

// New returns an empty Buffer with its scratch file open.
func New() (*Buffer, error) {
	b := &Buffer{uCurrentAddr: -1, uLastAddr: -1}
	b.head.forw, b.head.back = &b.head, &b.head
	b.yankHead.forw, b.yankHead.back = &b.yankHead, &b.yankHead
	b.cachedNode = &b.head
	if err := b.openScratch(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) openScratch() error {
	b.binary = false
	b.newlineAdded = false
	f, err := os.CreateTemp("", "ged")
	if err != nil {
		return fmt.Errorf("cannot open temp file: %w", err)
	}
	// Unlink immediately so the scratch file disappears with the
	// process, however it exits.
	os.Remove(f.Name())
	b.sfp = f
	b.sfpos = 0
	b.seekWrite = false
	return nil
}

// Close releases the scratch file, the yank buffer and the undo stack.
func (b *Buffer) Close() error {
	b.clearYank()
	b.ClearUndoStack()
	if b.sfp == nil {
		return nil
	}
	err := b.sfp.Close()
	b.sfp = nil
	if err != nil {
		return fmt.Errorf("cannot close temp file: %w", err)
	}
	return nil
}

// Reopen discards the scratch file and starts over with an empty one.
// The line list must already be empty. Used by the e and E commands.
func (b *Buffer) Reopen() error {
	if err := b.Close(); err != nil {
		return err
	}
	return b.openScratch()
}

// CurrentAddr returns the address the next command defaults to.
func (b *Buffer) CurrentAddr() int { return b.currentAddr }

// SetCurrentAddr sets the current address.
func (b *Buffer) SetCurrentAddr(addr int) { b.currentAddr = addr }

// IncCurrentAddr advances the current address, clamped to the last.
func (b *Buffer) IncCurrentAddr() int {
	b.currentAddr++
	if b.currentAddr > b.lastAddr {
		b.currentAddr = b.lastAddr
	}
	return b.currentAddr
}

// LastAddr returns the address of the last line.
func (b *Buffer) LastAddr() int { return b.lastAddr }

// Modified reports whether the buffer has changed since the last write.
func (b *Buffer) Modified() bool { return b.modified }

// SetModified sets the modified flag.
func (b *Buffer) SetModified(m bool) { b.modified = m }

// Binary reports whether a NUL byte has been read into the buffer.
func (b *Buffer) Binary() bool { return b.binary }

// SetBinary marks the buffer as containing NUL bytes.
func (b *Buffer) SetBinary() { b.binary = true }

// NewlineAdded reports whether a newline was synthesized on input.
func (b *Buffer) NewlineAdded() bool { return b.newlineAdded }

// SetNewlineAdded records that a newline was synthesized on input.
func (b *Buffer) SetNewlineAdded() { b.newlineAdded = true }

// IncAddr returns addr+1, wrapping past the last line to the sentinel.
func (b *Buffer) IncAddr(addr int) int {
	if addr++; addr > b.lastAddr {
		addr = 0
	}
	return addr
}

// DecAddr returns addr-1, wrapping past the sentinel to the last line.
func (b *Buffer) DecAddr(addr int) int {
	if addr--; addr < 0 {
		addr = b.lastAddr
	}
	return addr
}

// linkNodes makes next follow prev. All structural mutation of the
// list is composed of such pair updates inside critical sections.
func linkNodes(prev, next *Node) {
	prev.forw = next
	next.back = prev
}

// insertNode splices node into the list after prev.
func insertNode(node, prev *Node) {
	linkNodes(node, prev.forw)
	linkNodes(prev, node)
}

// addNode inserts lp after the line at addr and grows the buffer.
func (b *Buffer) addNode(lp *Node, addr int) {
	insertNode(lp, b.SearchNode(addr))
	b.lastAddr++
}

// dupNode returns a copy of lp's descriptor. The text is shared; both
// nodes reference the same scratch-file range.
func dupNode(lp *Node) *Node {
	return &Node{pos: lp.pos, len: lp.len}
}

// SearchNode returns the node at the given address. It keeps a
// one-node cache and walks from the nearest of the cache, the head, or
// the tail, so sequential scans cost one link per call.
func (b *Buffer) SearchNode(addr int) *Node {
	interrupt.Disable()
	lp, oAddr := b.cachedNode, b.cachedAddr
	if oAddr < addr {
		if oAddr+b.lastAddr >= 2*addr {
			for oAddr < addr {
				oAddr++
				lp = lp.forw
			}
		} else {
			lp, oAddr = b.head.back, b.lastAddr
			for oAddr > addr {
				oAddr--
				lp = lp.back
			}
		}
	} else if oAddr <= 2*addr {
		for oAddr > addr {
			oAddr--
			lp = lp.back
		}
	} else {
		lp, oAddr = &b.head, 0
		for oAddr < addr {
			oAddr++
			lp = lp.forw
		}
	}
	b.cachedNode, b.cachedAddr = lp, oAddr
	interrupt.Enable()
	return lp
}

// NodeAddr returns the address of lp, or an error if lp is no longer
// in the list.
func (b *Buffer) NodeAddr(lp *Node) (int, error) {
	cp := &b.head
	addr := 0
	for cp != lp {
		if cp = cp.forw; cp == &b.head {
			break
		}
		addr++
	}
	if addr > 0 && cp == &b.head {
		return -1, ErrInvalidAddress
	}
	return addr, nil
}

// GetLine returns the text of lp from the scratch file. The returned
// slice is valid until the next GetLine call. The sentinel yields nil.
// The length is authoritative: the text may contain embedded NULs.
func (b *Buffer) GetLine(lp *Node) ([]byte, error) {
	if lp == &b.head {
		return nil, nil
	}
	b.seekWrite = true // force seek on next write
	if b.sfpos != lp.pos {
		b.sfpos = lp.pos
		if _, err := b.sfp.Seek(b.sfpos, io.SeekStart); err != nil {
			return nil, fmt.Errorf("cannot seek temp file: %w", err)
		}
	}
	if cap(b.lineBuf) < lp.len+1 {
		b.lineBuf = make([]byte, 0, lp.len+512)
	}
	buf := b.lineBuf[:lp.len]
	if _, err := io.ReadFull(b.sfp, buf); err != nil {
		return nil, fmt.Errorf("cannot read temp file: %w", err)
	}
	b.sfpos += int64(lp.len)
	return buf, nil
}

// PutLine writes the first line of the newline-terminated text to the
// scratch file, splices a new node after addr, and returns the text
// following the newline. The caller must hold interrupts disabled.
func (b *Buffer) PutLine(text []byte, addr int) ([]byte, error) {
	n := 0
	for text[n] != '\n' { // text is '\n' terminated
		n++
	}
	if n >= maxLineLen {
		return nil, ErrLineTooLong
	}
	if b.seekWrite {
		pos, err := b.sfp.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("cannot seek temp file: %w", err)
		}
		b.sfpos = pos
		b.seekWrite = false
	}
	if _, err := b.sfp.Write(text[:n]); err != nil {
		b.sfpos = -1
		return nil, fmt.Errorf("cannot write temp file: %w", err)
	}
	lp := &Node{pos: b.sfpos, len: n}
	b.addNode(lp, addr)
	b.currentAddr++
	b.sfpos += int64(n)
	return text[n+1:], nil
}

// Delete removes the lines [from, to]. The removed run is retained by
// a DEL undo atom and also copied to the yank buffer.
func (b *Buffer) Delete(from, to int, isGlobal bool) error {
	if err := b.Yank(from, to); err != nil {
		return err
	}
	interrupt.Disable()
	b.PushUndoAtom(UDEL, from, to)
	n := b.SearchNode(b.IncAddr(to))
	p := b.SearchNode(from - 1) // this SearchNode last!
	if isGlobal {
		b.unsetActiveNodes(p.forw, n)
	}
	linkNodes(p, n)
	b.lastAddr -= to - from + 1
	if b.currentAddr = from; b.currentAddr > b.lastAddr {
		b.currentAddr = b.lastAddr
	}
	b.modified = true
	interrupt.Enable()
	return nil
}

// Copy duplicates the lines [first, second] after addr. The copies
// share text with the originals. If addr lies inside the source range
// the copy is made in two passes so the new lines are not re-copied.
func (b *Buffer) Copy(first, second, addr int) error {
	np := b.SearchNode(first)
	var up *UndoAtom
	n := second - first + 1
	m := 0

	b.currentAddr = addr
	if addr >= first && addr < second {
		n = addr - first + 1
		m = second - addr
	}
	for ; n > 0; n, m, np = m, 0, b.SearchNode(b.currentAddr+1) {
		for ; n > 0; n, np = n-1, np.forw {
			interrupt.Disable()
			lp := dupNode(np)
			b.addNode(lp, b.currentAddr)
			b.currentAddr++
			if up != nil {
				up.SetTail(lp)
			} else {
				up = b.PushUndoAtom(UADD, -1, -1)
			}
			b.modified = true
			interrupt.Enable()
		}
	}
	return nil
}

// Move relocates the lines [first, second] to after addr. The caller
// must have rejected addr within [first-1, second].
func (b *Buffer) Move(first, second, addr int, isGlobal bool) error {
	var b1, a1, b2, a2 *Node
	n := b.IncAddr(second)
	p := first - 1

	interrupt.Disable()
	if addr == first-1 || addr == second {
		a2 = b.SearchNode(n)
		b2 = b.SearchNode(p)
		b.currentAddr = second
	} else {
		b.PushUndoAtom(UMOV, p, n)
		b.PushUndoAtom(UMOV, addr, b.IncAddr(addr))
		a1 = b.SearchNode(n)
		if addr < first {
			b1 = b.SearchNode(p)
			b2 = b.SearchNode(addr) // this SearchNode last!
		} else {
			b2 = b.SearchNode(addr)
			b1 = b.SearchNode(p) // this SearchNode last!
		}
		a2 = b2.forw
		linkNodes(b2, b1.forw)
		linkNodes(a1.back, a2)
		linkNodes(b1, a1)
		if addr < first {
			b.currentAddr = addr + (second - first + 1)
		} else {
			b.currentAddr = addr
		}
	}
	if isGlobal {
		b.unsetActiveNodes(b2.forw, a2)
	}
	b.modified = true
	interrupt.Enable()
	return nil
}

// Join replaces the lines [from, to] with their concatenated text.
func (b *Buffer) Join(from, to int, isGlobal bool) error {
	ep := b.SearchNode(b.IncAddr(to))
	bp := b.SearchNode(from)
	var joined []byte

	for bp != ep {
		s, err := b.GetLine(bp)
		if err != nil {
			return err
		}
		joined = append(joined, s...)
		bp = bp.forw
	}
	joined = append(joined, '\n')
	if err := b.Delete(from, to, isGlobal); err != nil {
		return err
	}
	b.currentAddr = from - 1
	interrupt.Disable()
	defer interrupt.Enable()
	if _, err := b.PutLine(joined, b.currentAddr); err != nil {
		return err
	}
	b.PushUndoAtom(UADD, -1, -1)
	b.modified = true
	return nil
}

// Yank replaces the yank buffer with copies of the lines [from, to].
func (b *Buffer) Yank(from, to int) error {
	ep := b.SearchNode(b.IncAddr(to))
	bp := b.SearchNode(from)
	lp := &b.yankHead

	b.clearYank()
	for bp != ep {
		interrupt.Disable()
		cp := dupNode(bp)
		insertNode(cp, lp)
		bp, lp = bp.forw, cp
		interrupt.Enable()
	}
	return nil
}

// Put appends copies of the yanked lines after addr.
func (b *Buffer) Put(addr int) error {
	lp := b.yankHead.forw
	if lp == &b.yankHead {
		return ErrNothingToPut
	}
	b.currentAddr = addr
	var up *UndoAtom
	for lp != &b.yankHead {
		interrupt.Disable()
		cp := dupNode(lp)
		b.addNode(cp, b.currentAddr)
		b.currentAddr++
		if up != nil {
			up.SetTail(cp)
		} else {
			up = b.PushUndoAtom(UADD, -1, -1)
		}
		b.modified = true
		lp = lp.forw
		interrupt.Enable()
	}
	return nil
}

func (b *Buffer) clearYank() {
	interrupt.Disable()
	linkNodes(&b.yankHead, &b.yankHead)
	interrupt.Enable()
}

// MarkNode sets mark c to lp. Marks are 'a'..'z'.
func (b *Buffer) MarkNode(lp *Node, c byte) error {
	if c < 'a' || c > 'z' {
		return ErrInvalidMarkChar
	}
	if b.marks[c-'a'] == nil {
		b.markCnt++
	}
	b.marks[c-'a'] = lp
	return nil
}

// MarkedAddr returns the address of the line holding mark c.
func (b *Buffer) MarkedAddr(c byte) (int, error) {
	if c < 'a' || c > 'z' {
		return -1, ErrInvalidMarkChar
	}
	lp := b.marks[c-'a']
	if lp == nil {
		return -1, ErrInvalidAddress
	}
	return b.NodeAddr(lp)
}

// unmarkNode invalidates any mark referencing lp. Called when a node
// is released by the undo stack.
func (b *Buffer) unmarkNode(lp *Node) {
	for i := 0; b.markCnt > 0 && i < len(b.marks); i++ {
		if b.marks[i] == lp {
			b.marks[i] = nil
			b.markCnt--
		}
	}
}
