package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	data := []byte(`
server:
  listen: "127.0.0.1:9000"
serial:
  driver: tarm
  command_timeout_ms: 2000
firmware:
  dir: /srv/firmware
  bootloader_delay_ms: 0
  flash_start: 0x1000
  flash_end: 0x3000
log:
  level: debug
  format: json
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	Normalize(cfg)

	if cfg.Server.Listen != "127.0.0.1:9000" || cfg.Server.Path != DefaultPath {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Serial.Driver != "tarm" || cfg.Serial.Baud != 19200 {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.CommandTimeout() != 2*time.Second {
		t.Errorf("CommandTimeout() = %v", cfg.CommandTimeout())
	}
	if cfg.BootloaderDelay() != 0 {
		t.Errorf("BootloaderDelay() = %v, explicit zero must be kept", cfg.BootloaderDelay())
	}
	if *cfg.Firmware.FlashStart != 0x1000 || *cfg.Firmware.FlashEnd != 0x3000 {
		t.Errorf("flash range = %04X-%04X", *cfg.Firmware.FlashStart, *cfg.Firmware.FlashEnd)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	Normalize(cfg)

	if cfg.Server.Listen != ":8081" || cfg.Server.Path != "/ws" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Serial.Driver != "bugst" || cfg.Serial.Baud != 19200 || cfg.Serial.CommandTimeoutMs != 15000 {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.BootloaderDelay() != time.Second {
		t.Errorf("BootloaderDelay() = %v", cfg.BootloaderDelay())
	}
	if *cfg.Firmware.FlashStart != 0x1400 || *cfg.Firmware.FlashEnd != 0x3A00 {
		t.Errorf("flash range = %04X-%04X", *cfg.Firmware.FlashStart, *cfg.Firmware.FlashEnd)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("serial:\n  speed: 9600\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	neg := -1
	low := uint16(0x2000)

	tests := []struct {
		name string
		cfg  Config
		key  string
	}{
		{"bad path", Config{Server: ServerConfig{Path: "ws"}}, "server.path"},
		{"bad driver", Config{Serial: SerialConfig{Driver: "usb"}}, "serial.driver"},
		{"negative baud", Config{Serial: SerialConfig{Baud: -5}}, "serial.baud"},
		{"negative timeout", Config{Serial: SerialConfig{CommandTimeoutMs: -1}}, "serial.command_timeout_ms"},
		{"negative delay", Config{Firmware: FirmwareConfig{BootloaderDelayMs: &neg}}, "firmware.bootloader_delay_ms"},
		{"inverted flash range", Config{Firmware: FirmwareConfig{FlashEnd: &low, FlashStart: &low}}, "firmware.flash_end"},
		{"bad level", Config{Log: LogConfig{Level: "loud"}}, "log.level"},
		{"bad format", Config{Log: LogConfig{Format: "xml"}}, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.cfg
			err := Validate(&tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
			if tt.cfg.Server != before.Server || tt.cfg.Serial != before.Serial {
				t.Error("Validate must not mutate the config")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lightningd.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
