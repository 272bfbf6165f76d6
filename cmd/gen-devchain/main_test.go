package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mwc.dev/supplyverifier/node/store"
)

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain")
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--chain-path", path, "--group", "toy-bn254-fr", "--blocks", "6", "--prune-below", "2", "--log-level", "error"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "wrote 6 blocks")

	db, err := store.Open(path, store.Options{ReadOnly: true})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	assert.Equal(t, "devnet", db.Manifest().Network)
	assert.Equal(t, "toy-bn254-fr", db.Manifest().Group)

	tip, ok, err := db.Tip()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), tip.Height)

	h1, ok, err := db.HashAtHeight(1)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = db.GetBlock(h1)
	require.NoError(t, err)
	assert.False(t, ok, "block 1 should be pruned")
}

func TestGenerate_Rejects(t *testing.T) {
	dir := t.TempDir()
	for _, args := range [][]string{
		{},
		{"--chain-path", filepath.Join(dir, "a"), "--blocks", "0"},
		{"--chain-path", filepath.Join(dir, "b"), "--group", "ed25519"},
		{"--chain-path", filepath.Join(dir, "c"), "--network", "floonet"},
	} {
		cmd := newRootCmd(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--log-level", "error"))
		assert.Error(t, cmd.Execute(), "args %v", args)
	}
}

func TestGenerate_ExistingChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain")
	args := []string{"--chain-path", path, "--blocks", "1", "--log-level", "error"}

	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	cmd = newRootCmd(&bytes.Buffer{})
	cmd.SetArgs(args)
	assert.Error(t, cmd.Execute())
}
