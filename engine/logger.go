package engine

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the engine's logger. It is a no-op logger unless
// SetLogger has been called, matching spec.md §7's "the binding layer
// performs no logging" — only engine compile/instantiate failures and
// module.New's note that the RTTI table is unavailable are ever logged,
// never anything in heap/rtti/view/guest/array/opaque/bind.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs a logger for the process. Call before creating an
// Engine to capture compile/instantiate diagnostics.
func SetLogger(l *zap.Logger) {
	logger = l
}
