package resultfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"balscan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitOverwritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "results.txt")
	sink, err := NewSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Emit(context.Background(), domain.NewResultSet("b", "a", "c")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(data))

	require.NoError(t, sink.Emit(context.Background(), domain.NewResultSet("z")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "z\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestEmitEmptySetTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))
	sink, err := NewSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Emit(context.Background(), domain.NewResultSet()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEmitCancelledLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	require.NoError(t, os.WriteFile(path, []byte("keep\n"), 0o644))
	sink, err := NewSink(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sink.Emit(ctx, domain.NewResultSet("x")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(data))
}
