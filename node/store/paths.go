package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const dbFileName = "chain.db"

// DBPath returns the bbolt file inside a chain directory.
//
// Layout:
//
//	<chain_path>/MANIFEST.json
//	<chain_path>/chain.db
func DBPath(chainDir string) string {
	return filepath.Join(chainDir, dbFileName)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
