// Package observability wires zap logging and Prometheus metrics for ttstream
// processes and components.
package observability

import (
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "gopkg.in/natefinch/lumberjack.v2"

    "ttstream/pkg/config"
)

// SetupLogger builds a zap.Logger from c, installs it as the global logger
// and redirects the stdlib log package to it. The caller should defer
// logger.Sync().
func SetupLogger(c config.LogConfig) (*zap.Logger, error) {
    lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(c.Level)))
    if err != nil { lvl = zapcore.InfoLevel }
    level := zap.NewAtomicLevelAt(lvl)

    encoder := newEncoder(c)
    outputs := c.Outputs
    if len(outputs) == 0 { outputs = []string{"stderr"} }

    cores := make([]zapcore.Core, 0, len(outputs))
    for _, out := range outputs {
        ws, err := sinkFor(out, c)
        if err != nil { return nil, err }
        cores = append(cores, zapcore.NewCore(encoder, ws, level))
    }

    opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
    if c.Development { opts = append(opts, zap.Development()) }

    logger := zap.New(zapcore.NewTee(cores...), opts...)
    zap.ReplaceGlobals(logger)
    _, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
    return logger, nil
}

func newEncoder(c config.LogConfig) zapcore.Encoder {
    encCfg := zap.NewProductionEncoderConfig()
    if c.Development {
        encCfg = zap.NewDevelopmentEncoderConfig()
        encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
    }
    if strings.EqualFold(c.Format, "json") {
        // color codes do not belong in JSON
        encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
        return zapcore.NewJSONEncoder(encCfg)
    }
    return zapcore.NewConsoleEncoder(encCfg)
}

// sinkFor maps one configured output to a WriteSyncer. Anything other than
// stdout/stderr is a file path, rotated through lumberjack when enabled.
func sinkFor(out string, c config.LogConfig) (zapcore.WriteSyncer, error) {
    switch strings.ToLower(out) {
    case "stdout":
        return zapcore.Lock(os.Stdout), nil
    case "stderr":
        return zapcore.Lock(os.Stderr), nil
    }
    if c.Rotation.Enable {
        name := out
        if f := strings.TrimSpace(c.Rotation.Filename); f != "" { name = f }
        return zapcore.AddSync(&lumberjack.Logger{
            Filename:   name,
            MaxSize:    max(c.Rotation.MaxSizeMB, 10),
            MaxBackups: max(c.Rotation.MaxBackups, 1),
            MaxAge:     max(c.Rotation.MaxAgeDays, 7),
            Compress:   c.Rotation.Compress,
        }), nil
    }
    if dir := filepath.Dir(out); dir != "." {
        if err := os.MkdirAll(dir, 0o755); err != nil { return nil, fmt.Errorf("log output %s: %w", out, err) }
    }
    f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
    if err != nil { return nil, fmt.Errorf("log output %s: %w", out, err) }
    return zapcore.AddSync(f), nil
}

// Component derives the logger a component should use. A nil base yields a no-op logger.
func Component(base *zap.Logger, name string) *zap.Logger {
    if base == nil { return zap.NewNop() }
    return base.With(zap.String("component", name))
}
