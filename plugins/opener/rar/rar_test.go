package rar

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chaincrack/pkg/contract"
)

// RAR 无法在测试内生成；此处覆盖损坏与缺失容器的降级路径。
func TestCorruptAndMissing(t *testing.T) {
	dir := t.TempDir()
	o, err := New(nil)
	require.NoError(t, err)

	bad := filepath.Join(dir, "part1.rar")
	require.NoError(t, os.WriteFile(bad, []byte("not a rar archive at all"), 0o644))
	require.ErrorIs(t, o.Test(context.Background(), bad, "alpha"), contract.ErrIntegrity)

	_, err = o.Extract(context.Background(), filepath.Join(dir, "missing.rar"), "alpha", filepath.Join(dir, "out"))
	require.ErrorIs(t, err, contract.ErrIntegrity)
}

func TestOptions(t *testing.T) {
	o, err := New([]byte(`{"max_entry_bytes":10}`))
	require.NoError(t, err)
	require.EqualValues(t, 10, o.(*Opener).maxEntry)
	_, err = New([]byte(`{`))
	require.Error(t, err)
}
