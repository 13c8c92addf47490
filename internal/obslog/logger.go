// Package obslog builds the process-wide structured logger. It keeps the
// teacher's shape — one logger fanned out to stdout and to an in-memory
// ring buffer the interactive TUI reads from — but on top of
// go.uber.org/zap instead of a hand-rolled io.Writer multiplexer.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger tagged with node_id, writing to stdout
// (when toStdout is true) and, if ring is non-nil, to the ring buffer
// consumed by the interactive TUI.
func New(nodeID string, toStdout bool, ring *RingBuffer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	var cores []zapcore.Core
	if toStdout {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stdoutSink{})), zapcore.InfoLevel))
	}
	if ring != nil {
		cores = append(cores, zapcore.NewCore(encoder, ring, zapcore.DebugLevel))
	}
	if len(cores) == 0 {
		cores = append(cores, zapcore.NewNopCore())
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if nodeID != "" {
		logger = logger.With(zap.String("node_id", nodeID))
	}
	return logger
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *zap.Logger { return zap.NewNop() }
