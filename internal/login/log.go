package login

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *zap.SugaredLogger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core).Sugar()
}

// SetLogLevel updates the current logging level ("debug", "info", "warn", "error").
func SetLogLevel(l string) error { return level.UnmarshalText([]byte(l)) }

// SetLogOutput redirects diagnostics to w.
func SetLogOutput(w io.Writer) { logger = newLogger(w) }

// Debugf logs formatted debug messages when the level allows.
func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }

// Infof logs formatted info messages when the level allows.
func Infof(format string, args ...interface{}) { logger.Infof(format, args...) }

// Warnf logs formatted warning messages when the level allows.
func Warnf(format string, args ...interface{}) { logger.Warnf(format, args...) }

// Errorf logs formatted error messages.
func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }
