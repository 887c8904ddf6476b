package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- server ----

	if p := cfg.Server.Path; p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("server.path must start with /, got %q", p)
	}

	// ---- serial ----

	switch cfg.Serial.Driver {
	case "", "bugst", "tarm":
	default:
		return fmt.Errorf("serial.driver must be bugst or tarm, got %q", cfg.Serial.Driver)
	}
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", cfg.Serial.Baud)
	}
	if cfg.Serial.CommandTimeoutMs < 0 {
		return fmt.Errorf("serial.command_timeout_ms must be positive, got %d", cfg.Serial.CommandTimeoutMs)
	}

	// ---- firmware ----

	if d := cfg.Firmware.BootloaderDelayMs; d != nil && *d < 0 {
		return fmt.Errorf("firmware.bootloader_delay_ms must not be negative, got %d", *d)
	}
	start, end := uint16(DefaultFlashStart), uint16(DefaultFlashEnd)
	if cfg.Firmware.FlashStart != nil {
		start = *cfg.Firmware.FlashStart
	}
	if cfg.Firmware.FlashEnd != nil {
		end = *cfg.Firmware.FlashEnd
	}
	if end <= start {
		return fmt.Errorf("firmware.flash_end (0x%04X) must be above firmware.flash_start (0x%04X)", end, start)
	}

	// ---- log ----

	switch strings.ToLower(cfg.Log.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format)
	}

	return nil
}
