package audit

import (
	"runtime"

	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 4096

	// progressEvery is the block interval between walk progress log lines.
	progressEvery = 100_000
)

// Options tunes an audit run. Zero values select defaults.
type Options struct {
	// Workers is the number of goroutines summing each of the output set and
	// the kernel set. Defaults to GOMAXPROCS.
	Workers int
	// BatchSize is the number of commitments handed to a worker at a time.
	BatchSize int
	Log       *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	return o
}
