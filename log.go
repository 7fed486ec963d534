package statesync

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logMu  sync.RWMutex
	log    *zap.Logger = zap.NewNop()
)

// SetLogger installs l as the package-wide logger for recoverable protocol
// errors (Underrun, StaleDelta, MissingBasis promotions, ProtocolMismatch)
// and freeze transitions. Passing nil restores the no-op logger. Safe to
// call concurrently with frame processing.
func SetLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

func logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return log
}
