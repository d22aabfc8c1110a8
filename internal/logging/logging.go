// Package logging provides categorized zap-backed logging for defrec.
// Each subsystem logs through its own named child logger so batch runs can
// be filtered per concern (memory, classify, service, validate, pipeline).
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryBoot     Category = "boot"     // startup, config loading
	CategoryMemory   Category = "memory"   // similarity memory load/search/append
	CategoryStore    Category = "store"    // sqlite historical store
	CategoryService  Category = "service"  // classification service calls
	CategoryClassify Category = "classify" // stage orchestration
	CategoryValidate Category = "validate" // taxonomy validation and repair
	CategoryPipeline Category = "pipeline" // batch processing
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = map[Category]*zap.Logger{}
)

// Initialize installs the root logger. Verbose switches to debug level.
// Safe to call more than once; later calls replace the root and drop the
// cached children.
func Initialize(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	SetRoot(logger)
	return nil
}

// SetRoot replaces the root logger. Tests use this with zaptest or a nop.
func SetRoot(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = logger
	loggers = map[Category]*zap.Logger{}
}

// Get returns the child logger for a category.
func Get(c Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}
	l := root.Named(string(c))
	loggers[c] = l
	return l
}

// Sync flushes buffered log entries. Called on CLI shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
