package logger

import (
	"fmt"
	"os"
	"strings"

	"call-tracker/shared/notifications"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared application logger. Nil until InitLogger runs.
var Log *zap.SugaredLogger

var atomicLevel zap.AtomicLevel

// Config controls log verbosity and whether Warn+ entries are mirrored
// to the Telegram system-logs topic.
type Config struct {
	Level          string
	Environment    string
	EnableTelegram bool
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger builds the global zap logger. Production environments get JSON
// output, everything else gets the console encoder.
func InitLogger(cfg Config) error {
	atomicLevel = zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Environment) == "production" {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomicLevel)

	if cfg.EnableTelegram {
		core = zapcore.RegisterHooks(core, telegramMirrorHook)
	}

	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	Log = zl.Sugar()
	Log.Infof("Logger initialized (level=%s, environment=%s, telegram=%t)",
		atomicLevel.Level().String(), cfg.Environment, cfg.EnableTelegram)
	return nil
}

// SetLevel changes verbosity at runtime.
func SetLevel(level string) {
	atomicLevel.SetLevel(parseLevel(level))
}

// telegramMirrorHook forwards Warn and above to the system-logs topic so
// operators see problems without tailing stdout.
func telegramMirrorHook(entry zapcore.Entry) error {
	if entry.Level < zapcore.WarnLevel {
		return nil
	}
	prefix := "⚠️ WARN"
	switch entry.Level {
	case zapcore.ErrorLevel:
		prefix = "🛑 ERROR"
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		prefix = "🔥 FATAL"
	}
	msg := fmt.Sprintf("%s: %s", prefix, notifications.EscapeMarkdownV2(entry.Message))
	go notifications.SendSystemLogMessage(msg)
	return nil
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
