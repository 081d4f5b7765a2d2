package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is usable before Init; it discards everything until then.
var Log = zap.NewNop().Sugar()

// Init initializes the global logger.
// If logPath is provided, logs are written to that file (overwriting it).
// Otherwise, they are written to stderr so stdout stays free for command output.
func Init(verbose bool, logPath string) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encoderConfig.EncodeCaller = nil

	// No color codes in files
	if logPath != "" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logLevel := zap.InfoLevel
	if verbose {
		logLevel = zap.DebugLevel
	}

	var writer zapcore.WriteSyncer
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			writer = zapcore.AddSync(os.Stderr)
			println("Failed to create log file: " + err.Error())
		} else {
			writer = zapcore.AddSync(f)
		}
	} else {
		writer = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		writer,
		logLevel,
	)

	Log = zap.New(core).Sugar()
}

// Sync flushes any buffered log entries.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
