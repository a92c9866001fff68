package diag_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bptreekv/src/codec"
	"bptreekv/src/diag"
	"bptreekv/src/tree"
)

func TestVerifyFileOnHealthyTree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.btree")

	kc, vc := codec.Uint32Codec{}, codec.Uint32Codec{}
	tr, err := tree.Open[uint32, uint32](path, kc, vc)
	require.NoError(t, err)
	for i := uint32(0); i < 3000; i++ {
		require.NoError(t, tr.Set(i, i))
	}
	require.NoError(t, tr.Close())

	report, err := diag.VerifyFile(path, kc.BinSize(), vc.BinSize())
	require.NoError(t, err)
	assert.Greater(t, report.TotalPages, int64(2))
	assert.Greater(t, report.LeafPages, 0)
	assert.Greater(t, report.InternalPages, 0)
	assert.Greater(t, report.RootIndex, int64(0))
}

func TestVerifyFileRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.btree")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = diag.VerifyFile(path, 4, 4)
	assert.Error(t, err)
}
