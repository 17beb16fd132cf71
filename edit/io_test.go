package edit

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almoore/ged/buffer"
)

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0644))

	ed, _ := testEditor(t, "")
	st := exec1(t, ed, "r "+path+"\n")
	require.Equal(t, stOK, st, "%v", ed.LastError())
	assert.Equal(t, []string{"one", "two", "three"}, bufLines(t, ed))
	assert.Equal(t, 3, ed.buf.CurrentAddr())
	assert.True(t, ed.buf.Modified())

	out := filepath.Join(dir, "g.txt")
	require.Equal(t, stOK, exec1(t, ed, "w "+out+"\n"))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", string(data))
	assert.False(t, ed.buf.Modified())
}

func TestWriteRangeKeepsModified(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "part.txt")
	ed, _ := testEditor(t, "", "a", "b", "c")
	ed.buf.SetModified(true)
	require.Equal(t, stOK, exec1(t, ed, "1,2w "+out+"\n"))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
	assert.True(t, ed.buf.Modified())
}

func TestWriteAppend(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "app.txt")
	ed, _ := testEditor(t, "", "x")
	require.Equal(t, stOK, exec1(t, ed, "w "+out+"\n"))
	require.Equal(t, stOK, exec1(t, ed, "W "+out+"\n"))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "x\nx\n", string(data))
}

func TestReadMissingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonl.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb"), 0644))

	buf, err := buffer.New()
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	out, errw := &bytes.Buffer{}, &bytes.Buffer{}
	ed := New(buf, strings.NewReader(""), out, errw, Options{Scripted: true})

	_, err = ed.readFile(path, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, bufLines(t, ed))
	assert.Contains(t, errw.String(), "Newline appended")
	assert.True(t, buf.NewlineAdded())
}

func TestReadBinaryPreservesBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(path, []byte("a\x00b\nc"), 0644))

	ed, _ := testEditor(t, "")
	_, err := ed.readFile(path, 0, false)
	require.NoError(t, err)
	assert.True(t, ed.buf.Binary())
	assert.Equal(t, []string{"a\x00b", "c"}, bufLines(t, ed))

	// The synthesized final newline is not written back.
	out := filepath.Join(dir, "bin.out")
	_, err = ed.writeFile(out, "w", 1, 2)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a\x00b\nc", string(data))
}

func TestReadFileCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x\ny\n"), 0644))
	ed, _ := testEditor(t, "", "a")
	lines, err := ed.readFile(path, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 2, lines)
	assert.Equal(t, []string{"a", "x", "y"}, bufLines(t, ed))
}

func TestByteCountReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc\n"), 0644))

	buf, err := buffer.New()
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	errw := &bytes.Buffer{}
	ed := New(buf, strings.NewReader(""), &bytes.Buffer{}, errw, Options{})
	_, err = ed.readFile(path, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "4\n", errw.String())
}

func TestEditCommandReplacesBuffer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("new1\nnew2\n"), 0644))

	ed, _ := testEditor(t, "", "old")
	ed.buf.SetModified(true)
	// e refuses once on a modified buffer.
	assert.Equal(t, stEmod, exec1(t, ed, "e "+path+"\n"))
	ed.warned = true
	require.Equal(t, stOK, exec1(t, ed, "e "+path+"\n"))
	assert.Equal(t, []string{"new1", "new2"}, bufLines(t, ed))
	assert.Equal(t, path, ed.DefaultFilename())
	assert.False(t, ed.buf.Modified())
	// The load cannot be undone.
	assert.Equal(t, stErr, exec1(t, ed, "u\n"))
	assert.Equal(t, buffer.ErrNothingToUndo, ed.LastError())
}

func TestEditUppercaseDiscardsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("disk\n"), 0644))

	ed, _ := testEditor(t, "", "mem")
	ed.buf.SetModified(true)
	require.Equal(t, stOK, exec1(t, ed, "E "+path+"\n"))
	assert.Equal(t, []string{"disk"}, bufLines(t, ed))
}

func TestFilenameCommand(t *testing.T) {
	ed, out := testEditor(t, "")
	assert.Equal(t, stErr, exec1(t, ed, "f\n"))
	assert.Equal(t, ErrNoCurrentFilename, ed.LastError())

	require.Equal(t, stOK, exec1(t, ed, "f name.txt\n"))
	assert.Equal(t, "name.txt", ed.DefaultFilename())
	assert.Equal(t, "name.txt\n", out.String())
}

func TestFilenameRedirectionRejected(t *testing.T) {
	ed, _ := testEditor(t, "")
	assert.Equal(t, stErr, exec1(t, ed, "f !date\n"))
	assert.Equal(t, ErrInvalidRedirection, ed.LastError())
}

func TestRestrictedMode(t *testing.T) {
	buf, err := buffer.New()
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	ed := New(buf, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{},
		Options{Restricted: true, Scripted: true})
	assert.Equal(t, stErr, exec1(t, ed, "!date\n"))
	assert.Equal(t, ErrShellRestricted, ed.LastError())
	assert.Equal(t, stErr, exec1(t, ed, "e /etc/passwd\n"))
	assert.Equal(t, ErrDirectoryRestricted, ed.LastError())
}

func TestUnsafeFilenameRejected(t *testing.T) {
	ed, _ := testEditor(t, "")
	assert.Equal(t, stErr, exec1(t, ed, "f bad\x01name\n"))
	assert.Equal(t, ErrUnsafeFilename, ed.LastError())
}

func TestListModeEscapes(t *testing.T) {
	ed, out := testEditor(t, "", "a\tb\\c")
	require.Equal(t, stOK, exec1(t, ed, "1l\n"))
	assert.Equal(t, "a\\tb\\\\c$\n", out.String())
}

func TestListModeOctal(t *testing.T) {
	ed, out := testEditor(t, "", "x\x01y")
	require.Equal(t, stOK, exec1(t, ed, "1l\n"))
	assert.Equal(t, "x\\001y$\n", out.String())
}

func TestShellEscape(t *testing.T) {
	ed, out := testEditor(t, "")
	require.Equal(t, stOK, exec1(t, ed, "!echo hi\n"))
	assert.Equal(t, "hi\n!\n", out.String())
}

func TestShellFilter(t *testing.T) {
	ed, _ := testEditor(t, "", "b", "c", "a")
	st := exec1(t, ed, "1,3!sort\n")
	require.Equal(t, stOK, st, "%v", ed.LastError())
	assert.Equal(t, []string{"a", "b", "c"}, bufLines(t, ed))
}

func TestShellPercentExpansion(t *testing.T) {
	ed, out := testEditor(t, "")
	ed.SetDefaultFilename("file.txt")
	require.Equal(t, stOK, exec1(t, ed, "!echo %\n"))
	// The expanded command is echoed before running.
	assert.Equal(t, "echo file.txt\nfile.txt\n!\n", out.String())
}

func TestShellRepeatLast(t *testing.T) {
	ed, out := testEditor(t, "")
	require.Equal(t, stOK, exec1(t, ed, "!echo one\n"))
	out.Reset()
	require.Equal(t, stOK, exec1(t, ed, "!!\n"))
	// The repeated command is echoed before running.
	assert.Equal(t, "echo one\none\n!\n", out.String())
}

func TestShellNoPreviousCommand(t *testing.T) {
	ed, _ := testEditor(t, "")
	assert.Equal(t, stErr, exec1(t, ed, "!!\n"))
	assert.Equal(t, ErrNoPreviousCommand, ed.LastError())
}

func TestExtendedLineJoinsContinuations(t *testing.T) {
	ed, _ := testEditor(t, "tail\n")
	cb := newCmdBuf([]byte("head\\\n"))
	require.NoError(t, ed.getExtendedLine(cb, true))
	assert.Equal(t, "headtail\n", string(cb.rest()))
}

func TestTmpNameUsesTmpdir(t *testing.T) {
	t.Setenv("TMPDIR", "/var/tmp")
	name := tmpName()
	assert.True(t, strings.HasPrefix(name, "/var/tmp/ed-"), name)
}
