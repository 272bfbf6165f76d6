package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"mwc.dev/supplyverifier/consensus"
)

type Config struct {
	Network string `json:"network"`
	// ChainPath is the chain directory; empty selects the network default.
	ChainPath string `json:"chain_path"`
	Workers   int    `json:"workers"`
	BatchSize int    `json:"batch_size"`
	LogLevel  string `json:"log_level"`
}

const (
	maxWorkers   = 1024
	maxBatchSize = 1 << 20
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultConfig() Config {
	return Config{
		Network:   consensus.Mainnet.Name,
		ChainPath: "",
		Workers:   runtime.GOMAXPROCS(0),
		BatchSize: 4096,
		LogLevel:  "info",
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if _, err := consensus.ParamsByName(cfg.Network); err != nil {
		return err
	}
	if cfg.Workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if cfg.Workers > maxWorkers {
		return fmt.Errorf("workers must be <= %d", maxWorkers)
	}
	if cfg.BatchSize <= 0 {
		return errors.New("batch_size must be > 0")
	}
	if cfg.BatchSize > maxBatchSize {
		return fmt.Errorf("batch_size must be <= %d", maxBatchSize)
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	return nil
}

// ResolveChainPath returns the chain directory cfg points at, falling back to
// the default of p, with a leading ~ expanded.
func ResolveChainPath(cfg Config, p consensus.Params) (string, error) {
	path := strings.TrimSpace(cfg.ChainPath)
	if path == "" {
		path = p.DefaultChainPath
	}
	return ExpandPath(path)
}

// ExpandPath replaces a leading "~" or "~/" with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", fmt.Errorf("expand %s: home directory unknown", path)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
