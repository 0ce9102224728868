package app

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/talkincode/smartcart/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// initLogger replaces the zap globals with a stdout core and, when file
// output is enabled, a rotated JSON file core at the same level.
func initLogger(cfg *config.AppConfig) error {
	lc := cfg.Logger
	production := lc.Mode == "production"
	level, err := logLevel(lc.Level, production, cfg.System.Debug)
	if err != nil {
		return err
	}

	stdoutEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	if production {
		stdoutEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cores := []zapcore.Core{zapcore.NewCore(stdoutEncoder, zapcore.Lock(os.Stdout), level)}

	if lc.FileEnable {
		filename := cfg.LogFile()
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return errors.Wrap(err, "create log dir")
		}
		rotated := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
			Compress:   lc.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotated),
			level))
	}

	opts := []zap.Option{zap.AddCaller()}
	if !production {
		opts = append(opts, zap.Development())
	}
	zap.ReplaceGlobals(zap.New(zapcore.NewTee(cores...), opts...))
	return nil
}

// logLevel resolves the configured level. Debug always wins.
func logLevel(name string, production, debug bool) (zapcore.Level, error) {
	switch {
	case debug:
		return zapcore.DebugLevel, nil
	case name != "":
		level, err := zapcore.ParseLevel(name)
		if err != nil {
			return level, errors.Wrapf(err, "logger level %q", name)
		}
		return level, nil
	case production:
		return zapcore.InfoLevel, nil
	}
	return zapcore.DebugLevel, nil
}
