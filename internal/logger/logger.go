package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Environment variables to configure log output.
const (
	envLogPath  = "STOREFRONT_LOG"
	envLogLevel = "LOG_LEVEL"
)

var (
	mu            sync.Mutex
	std           = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	logFile       *os.File
	isInitialized bool
)

// InitFromEnv initializes the logger using STOREFRONT_LOG and LOG_LEVEL.
// Without STOREFRONT_LOG the logger writes human readable lines to stderr.
func InitFromEnv() error {
	if err := Init(os.Getenv(envLogPath)); err != nil {
		return err
	}
	if lvl := strings.TrimSpace(os.Getenv(envLogLevel)); lvl != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(lvl))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envLogLevel, lvl, err)
		}
		SetLevel(parsed)
	}
	return nil
}

// Init initializes the logger to write JSON lines to the provided file path.
// It creates parent directories if needed and opens the file in append mode.
// An empty path keeps the stderr console writer.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if isInitialized {
		return nil
	}
	if path == "" {
		isInitialized = true
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std = zerolog.New(f).With().Timestamp().Logger()
	isInitialized = true
	return nil
}

// SetOutput redirects the logger, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std = zerolog.New(w).With().Timestamp().Logger()
	isInitialized = true
}

// SetLevel sets the global minimum level.
func SetLevel(l zerolog.Level) { zerolog.SetGlobalLevel(l) }

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// L returns the structured logger for callers that want fields.
func L() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := std
	return &l
}

// Infof logs informational messages.
func Infof(format string, args ...any) { L().Info().Msgf(format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { L().Warn().Msgf(format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { L().Error().Msgf(format, args...) }

// Debugf logs debug output; dropped unless LOG_LEVEL=debug.
func Debugf(format string, args ...any) { L().Debug().Msgf(format, args...) }

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
