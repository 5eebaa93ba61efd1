package oren

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-i2p/logger"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Default configuration file name looked up under the application path.
const defaultConfigFile = "oren.yml"

// Runtime is the process-level context shared by clients: application path,
// logging destination and level. It replaces ambient global initialization;
// every Client is constructed from an explicit Runtime.
type Runtime struct {
	appPath  string
	logPath  string
	logLevel int
	logSize  int

	sink   *lumberjack.Logger // nil when logging to the default output
	mu     sync.Mutex
	closed bool
}

// Initialize prepares logging for the engine and returns the runtime handle
// clients are created from.
//
// Parameters:
//   - appPath: application directory, base for relative log paths and the default config file
//   - logPath: log file; empty keeps the logger's default output
//   - logLevel: one of DEBUG, INFO, WARNING, ERROR, FATAL
//   - logSize: maximum log file size in megabytes before rotation (0 = lumberjack default)
func Initialize(appPath, logPath string, logLevel, logSize int) (*Runtime, error) {
	if logSize < 0 {
		return nil, fmt.Errorf("%w: negative log size %d", ErrInvalidArgument, logSize)
	}

	rt := &Runtime{
		appPath:  appPath,
		logPath:  logPath,
		logLevel: logLevel,
		logSize:  logSize,
	}

	logInit(logLevel)

	if logPath != "" {
		if !filepath.IsAbs(logPath) && appPath != "" {
			rt.logPath = filepath.Join(appPath, logPath)
		}
		if err := os.MkdirAll(filepath.Dir(rt.logPath), 0o755); err != nil {
			return nil, fmt.Errorf("oren: failed to create log directory: %w", err)
		}
		rt.sink = &lumberjack.Logger{
			Filename: rt.logPath,
			MaxSize:  logSize,
		}
		logger.GetGoI2PLogger().SetOutput(rt.sink)
	}

	Debug("Runtime initialized: app=%s log=%s level=%d size=%dMB", appPath, rt.logPath, logLevel, logSize)
	return rt, nil
}

// Uninitialize closes the log sink. Clients created from this runtime must be
// closed first; creating new clients afterwards fails with ErrRuntimeClosed.
func (rt *Runtime) Uninitialize() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil
	}
	rt.closed = true

	if rt.sink == nil {
		return nil
	}
	logger.GetGoI2PLogger().SetOutput(io.Discard)
	return rt.sink.Close()
}

// IsClosed reports whether Uninitialize has been called.
func (rt *Runtime) IsClosed() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.closed
}

// AppPath returns the application path given to Initialize.
func (rt *Runtime) AppPath() string {
	return rt.appPath
}

// LogPath returns the resolved log file path, or "" when logging to the default output.
func (rt *Runtime) LogPath() string {
	return rt.logPath
}

// ConfigPath returns the conventional client configuration file under the application path.
func (rt *Runtime) ConfigPath() string {
	return filepath.Join(rt.appPath, defaultConfigFile)
}
