package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"
)

func TestDefaultsWithoutFile(t *testing.T) {
    t.Chdir(t.TempDir())
    cfg, err := Load("")
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Client.Encoding != "json" || cfg.Client.DialAttempts != 1 { t.Fatalf("unexpected client defaults %+v", cfg.Client) }
    if cfg.Client.DialTimeout() != 5*time.Second { t.Fatalf("dial timeout %v", cfg.Client.DialTimeout()) }
    if len(cfg.Server.Listen) != 1 { t.Fatalf("unexpected listen %v", cfg.Server.Listen) }
}

func TestLoadYAMLAndEnv(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "ttstream.yaml")
    yaml := `
app_name: demo
log:
  level: debug
client:
  target: "ws://127.0.0.1:9191/echo"
  encoding: CBOR
  dial_attempts: 3
server:
  listen: [" tcp://127.0.0.1:9190 ", "ws://127.0.0.1:9191"]
`
    if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil { t.Fatalf("write: %v", err) }
    t.Setenv("TTSTREAM_CLIENT_DIAL_TIMEOUT_MS", "250")

    cfg, err := Load(path)
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.AppName != "demo" || cfg.Log.Level != "debug" { t.Fatalf("top-level not applied: %+v", cfg) }
    if cfg.Client.Encoding != "cbor" || cfg.Client.DialAttempts != 3 { t.Fatalf("client not applied: %+v", cfg.Client) }
    if cfg.Client.DialTimeout() != 250*time.Millisecond { t.Fatalf("env override ignored: %v", cfg.Client.DialTimeout()) }
    if cfg.Server.Listen[0] != "tcp://127.0.0.1:9190" { t.Fatalf("listen not trimmed: %q", cfg.Server.Listen[0]) }
}

func TestValidateRejects(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "bad.yaml")
    _ = os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644)
    if _, err := Load(path); err == nil { t.Fatalf("expected invalid level error") }

    _ = os.WriteFile(path, []byte("client:\n  encoding: xml\n"), 0o644)
    if _, err := Load(path); err == nil { t.Fatalf("expected invalid encoding error") }
}
