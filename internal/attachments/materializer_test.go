package attachments

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/zdbackup/internal/models"
	"github.com/dmitrijs2005/zdbackup/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreamer struct {
	body  string
	err   error
	calls []string
}

func (f *fakeStreamer) FetchStream(_ context.Context, rawURL string, _ url.Values) (io.ReadCloser, error) {
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func newFS(t *testing.T) (*storage.FS, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	require.NoError(t, err)
	return fs, root
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report:final.pdf", "report_final.pdf"},
		{`a\b/c*d?e"f<g>h|i`, "a_b_c_d_e_f_g_h_i"},
		{"a::??b", "a_b"},
		{"plain.txt", "plain.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}

	long := strings.Repeat("ж", 200)
	got := SanitizeFilename(long)
	assert.LessOrEqual(t, len(got), MaxFilenameLen)
	assert.True(t, strings.HasPrefix(long, got))
	assert.Equal(t, SanitizeFilename(long), got, "deterministic")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "42/7__report_final.pdf", Key(42, &models.Attachment{ID: 7, FileName: "report:final.pdf"}))
	assert.Equal(t, "42/9__attachment_9", Key(42, &models.Attachment{ID: 9}))
}

func TestMaterialize_DownloadsThenSkips(t *testing.T) {
	ctx := context.Background()
	fs, root := newFS(t)
	f := &fakeStreamer{body: "%PDF-1.7"}
	m := NewMaterializer(true, f, fs, nil)

	a := &models.Attachment{ID: 7, FileName: "report:final.pdf", ContentURL: "https://x/7"}

	loc, ok := m.Materialize(ctx, 42, 1, a)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "42", "7__report_final.pdf"), loc)

	b, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(b))

	loc2, ok := m.Materialize(ctx, 42, 1, a)
	require.True(t, ok)
	assert.Equal(t, loc, loc2)
	assert.Len(t, f.calls, 1, "second call must not transfer")
}

func TestMaterialize_ExistingFileZeroFetches(t *testing.T) {
	ctx := context.Background()
	fs, root := newFS(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "42"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "42", "7__a.txt"), []byte("x"), 0o600))

	f := &fakeStreamer{}
	m := NewMaterializer(true, f, fs, nil)
	a := &models.Attachment{ID: 7, FileName: "a.txt", ContentURL: "https://x/7"}

	for i := 0; i < 2; i++ {
		_, ok := m.Materialize(ctx, 42, 1, a)
		assert.True(t, ok)
	}
	assert.Empty(t, f.calls)
}

func TestMaterialize_AbsentCases(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	f := &fakeStreamer{body: "x"}

	_, ok := NewMaterializer(false, f, fs, nil).Materialize(ctx, 1, 1, &models.Attachment{ID: 1, ContentURL: "https://x"})
	assert.False(t, ok, "disabled")

	_, ok = NewMaterializer(true, f, fs, nil).Materialize(ctx, 1, 1, &models.Attachment{ID: 1})
	assert.False(t, ok, "no content url")

	assert.Empty(t, f.calls)
}

func TestMaterialize_FailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	fs, root := newFS(t)
	f := &fakeStreamer{err: errors.New("GET failed [404]")}
	m := NewMaterializer(true, f, fs, nil)

	_, ok := m.Materialize(ctx, 5, 6, &models.Attachment{ID: 8, FileName: "x.bin", ContentURL: "https://x/8"})
	assert.False(t, ok)

	_, err := os.Stat(filepath.Join(root, "5", "8__x.bin"))
	assert.True(t, os.IsNotExist(err))
}
