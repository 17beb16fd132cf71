package buffer

import "testing"

func TestUndoNothing(t *testing.T) {
	b := newTestBuffer(t, "A")
	if err := b.Undo(false); err != ErrNothingToUndo {
		t.Errorf("Undo=%v, want %v", err, ErrNothingToUndo)
	}
}

func TestUndoDisabled(t *testing.T) {
	b := newTestBuffer(t, "A")
	b.ResetUndoState()
	if err := b.Undo(false); err != ErrNothingToUndo {
		t.Errorf("Undo=%v, want %v", err, ErrNothingToUndo)
	}
}

func TestUndoDelete(t *testing.T) {
	b := newTestBuffer(t, "A", "B", "C")
	b.SetCurrentAddr(3)
	b.ClearUndoStack()
	if err := b.Delete(2, 2, false); err != nil {
		t.Fatalf("Delete=%v", err)
	}
	if err := b.Undo(false); err != nil {
		t.Fatalf("Undo=%v", err)
	}
	wantLines(t, b, "A", "B", "C")
	if b.CurrentAddr() != 3 {
		t.Errorf("current=%d, want 3", b.CurrentAddr())
	}
	if b.Modified() {
		t.Errorf("modified=true, want false")
	}
	checkList(t, b)
}

func TestUndoIsItsOwnInverse(t *testing.T) {
	b := newTestBuffer(t, "A", "B", "C")
	b.ClearUndoStack()
	if err := b.Delete(1, 2, false); err != nil {
		t.Fatalf("Delete=%v", err)
	}
	if err := b.Undo(false); err != nil {
		t.Fatalf("Undo=%v", err)
	}
	wantLines(t, b, "A", "B", "C")
	if err := b.Undo(false); err != nil {
		t.Fatalf("second Undo=%v", err)
	}
	wantLines(t, b, "C")
	if !b.Modified() {
		t.Errorf("modified=false after redo, want true")
	}
	checkList(t, b)
}

func TestUndoAdd(t *testing.T) {
	b := newTestBuffer(t, "A")
	b.ClearUndoStack()
	var up *UndoAtom
	for _, l := range []string{"x", "y"} {
		if _, err := b.PutLine([]byte(l+"\n"), b.CurrentAddr()); err != nil {
			t.Fatalf("PutLine=%v", err)
		}
		if up == nil {
			up = b.PushUndoAtom(UADD, -1, -1)
		} else {
			up.ExtendTail(b.CurrentAddr())
		}
		b.SetModified(true)
	}
	wantLines(t, b, "A", "x", "y")
	if err := b.Undo(false); err != nil {
		t.Fatalf("Undo=%v", err)
	}
	wantLines(t, b, "A")
	checkList(t, b)
}

func TestUndoMove(t *testing.T) {
	b := newTestBuffer(t, "A", "B", "C", "D", "E")
	b.ClearUndoStack()
	if err := b.Move(2, 4, 0, false); err != nil {
		t.Fatalf("Move=%v", err)
	}
	wantLines(t, b, "B", "C", "D", "A", "E")
	if err := b.Undo(false); err != nil {
		t.Fatalf("Undo=%v", err)
	}
	wantLines(t, b, "A", "B", "C", "D", "E")
	if err := b.Undo(false); err != nil {
		t.Fatalf("second Undo=%v", err)
	}
	wantLines(t, b, "B", "C", "D", "A", "E")
	checkList(t, b)
}

func TestClearUndoStackReleasesDeleted(t *testing.T) {
	b := newTestBuffer(t, "A", "B")
	b.ClearUndoStack()
	if err := b.Delete(1, 1, false); err != nil {
		t.Fatalf("Delete=%v", err)
	}
	b.ClearUndoStack()
	if err := b.Undo(false); err != ErrNothingToUndo {
		t.Errorf("Undo after clear=%v, want %v", err, ErrNothingToUndo)
	}
	wantLines(t, b, "B")
}

func TestUndoSnapshotBaseline(t *testing.T) {
	b := newTestBuffer(t, "A", "B")
	b.SetCurrentAddr(2)
	b.ClearUndoStack()
	// Two edits since the clear are both reverted by one undo.
	if err := b.Delete(1, 1, false); err != nil {
		t.Fatalf("Delete=%v", err)
	}
	if _, err := b.PutLine([]byte("X\n"), b.CurrentAddr()); err != nil {
		t.Fatalf("PutLine=%v", err)
	}
	b.PushUndoAtom(UADD, -1, -1)
	b.SetModified(true)
	wantLines(t, b, "B", "X")
	if err := b.Undo(false); err != nil {
		t.Fatalf("Undo=%v", err)
	}
	wantLines(t, b, "A", "B")
	if b.CurrentAddr() != 2 {
		t.Errorf("current=%d, want 2", b.CurrentAddr())
	}
	if b.Modified() {
		t.Errorf("modified=true, want false")
	}
	checkList(t, b)
}
