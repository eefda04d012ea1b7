package filex

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNested(t *testing.T) {
	tmp := t.TempDir()

	got, err := EnsureDir(filepath.Join(tmp, "attachments", "42"))
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(got))

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		perm := fi.Mode().Perm()
		require.Equal(t, os.FileMode(0o700), perm&0o700)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()

	first, err := EnsureDir(filepath.Join(tmp, "a"))
	require.NoError(t, err)
	second, err := EnsureDir(filepath.Join(tmp, "a"))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "attachments")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o660))

	_, err := EnsureDir(p)
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestNonEmpty(t *testing.T) {
	tmp := t.TempDir()
	empty := filepath.Join(tmp, "empty")
	full := filepath.Join(tmp, "full")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	require.NoError(t, os.WriteFile(full, []byte("data"), 0o600))

	require.False(t, NonEmpty(empty))
	require.True(t, NonEmpty(full))
	require.False(t, NonEmpty(filepath.Join(tmp, "missing")))
	require.False(t, NonEmpty(tmp))
}

type failingReader struct{ after int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := copy(p, strings.Repeat("x", r.after))
	r.after -= n
	return n, nil
}

func TestWriteAtomic(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "42", "7__a.txt")

	n, err := WriteAtomic(target, strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	b, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))
}

func TestWriteAtomic_FailureLeavesNoFile(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "42", "7__a.txt")

	_, err := WriteAtomic(target, &failingReader{after: 3})
	require.Error(t, err)
	require.False(t, NonEmpty(target))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	require.Empty(t, entries, "temp file must be cleaned up")
}

func TestSpool(t *testing.T) {
	f, n, err := Spool(strings.NewReader("payload"))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, int64(7), n)
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "payload", string(b))
}
