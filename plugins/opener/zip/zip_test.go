package zip

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chaincrack/internal/testkit"
	"chaincrack/pkg/contract"
)

func newOpener(t *testing.T) contract.ArchiveOpener {
	t.Helper()
	o, err := New(nil)
	require.NoError(t, err)
	return o
}

func TestTestAndExtract(t *testing.T) {
	dir := t.TempDir()
	zp := filepath.Join(dir, "part1.zip")
	testkit.WriteZip(t, zp, "alpha", map[string][]byte{
		"inner/encoded_1.txt": []byte("V1hZWgo=\n"),
		"readme.txt":          []byte("hi"),
	})
	o := newOpener(t)
	ctx := context.Background()
	require.NoError(t, o.Test(ctx, zp, "alpha"))

	dest := filepath.Join(dir, "stage")
	paths, err := o.Extract(ctx, zp, "alpha", dest)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(dest, "encoded_1.txt"),
		filepath.Join(dest, "readme.txt"),
	}, paths)
	b, err := os.ReadFile(filepath.Join(dest, "encoded_1.txt"))
	require.NoError(t, err)
	require.Equal(t, "V1hZWgo=\n", string(b))
}

func TestWrongPassword(t *testing.T) {
	dir := t.TempDir()
	zp := filepath.Join(dir, "part1.zip")
	testkit.WriteZip(t, zp, "alpha", map[string][]byte{"encoded_1.txt": []byte("data")})
	err := newOpener(t).Test(context.Background(), zp, "beta")
	require.ErrorIs(t, err, contract.ErrIntegrity)
	// 完整性检查不落盘
	ents, _ := os.ReadDir(dir)
	require.Len(t, ents, 1)
}

func TestCorruptContainer(t *testing.T) {
	dir := t.TempDir()
	zp := filepath.Join(dir, "part2.zip")
	require.NoError(t, os.WriteFile(zp, []byte("PK\x03\x04 definitely not a zip"), 0o644))
	require.ErrorIs(t, newOpener(t).Test(context.Background(), zp, "beta"), contract.ErrIntegrity)

	_, err := newOpener(t).Extract(context.Background(), filepath.Join(dir, "missing.zip"), "x", filepath.Join(dir, "out"))
	require.ErrorIs(t, err, contract.ErrIntegrity)
}

func TestEntryLimit(t *testing.T) {
	dir := t.TempDir()
	zp := filepath.Join(dir, "big.zip")
	testkit.WriteZip(t, zp, "pw", map[string][]byte{"encoded_1.txt": make([]byte, 64)})
	o, err := New([]byte(`{"max_entry_bytes":16}`))
	require.NoError(t, err)
	require.ErrorIs(t, o.Test(context.Background(), zp, "pw"), contract.ErrIntegrity)
}

func TestCancelled(t *testing.T) {
	dir := t.TempDir()
	zp := filepath.Join(dir, "part1.zip")
	testkit.WriteZip(t, zp, "alpha", map[string][]byte{"encoded_1.txt": []byte("x")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, newOpener(t).Test(ctx, zp, "alpha"), context.Canceled)
}
