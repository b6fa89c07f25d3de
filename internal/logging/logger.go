// Package logging provides categorized zap-based logging for lessonforge.
// Each pipeline subsystem logs through its own named logger so that a noisy
// stage (generation, sandbox) can be filtered without losing the rest.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names one pipeline subsystem.
type Category string

const (
	CategoryGeneration Category = "generation" // LLM calls and prompt assembly
	CategorySafety     Category = "safety"     // static linting
	CategoryRepair     Category = "repair"     // deterministic source repair
	CategoryCompile    Category = "compile"    // import elision + transpile
	CategorySandbox    Category = "sandbox"    // mount/unmount lifecycle
	CategoryStore      Category = "store"      // persistence boundary
	CategoryCLI        Category = "cli"        // command surface
)

var (
	mu      sync.RWMutex
	root    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize builds the root logger. Logs go to stderr and, when dataDir is
// non-empty, to dataDir/forge.log. Must be called before Get; callers that
// skip it get a no-op logger.
func Initialize(dataDir string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	cfg.OutputPaths = []string{"stderr"}
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(dataDir, "forge.log"))
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	root = logger
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// Get returns the sugared logger for a category, creating it on first use.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	base := root
	if base == nil {
		base = zap.NewNop()
	}
	l := base.Named(string(cat)).Sugar()
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Safe to call on exit even when
// Initialize was never run.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}
