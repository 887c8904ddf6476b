package config

import (
	"time"

	"github.com/moffa90/go-lightning/bootloader"
	"github.com/moffa90/go-lightning/protocol"
	"github.com/moffa90/go-lightning/session"
)

// Defaults applied by Normalize.
const (
	DefaultListen     = ":8081"
	DefaultPath       = "/ws"
	DefaultDriver     = "bugst"
	DefaultFlashStart = bootloader.DefaultFlashStart
	DefaultFlashEnd   = bootloader.DefaultFlashEnd
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = DefaultPath
	}

	if cfg.Serial.Driver == "" {
		cfg.Serial.Driver = DefaultDriver
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = protocol.DefaultBaudRate
	}
	if cfg.Serial.CommandTimeoutMs == 0 {
		cfg.Serial.CommandTimeoutMs = int(session.DefaultCommandTimeout / time.Millisecond)
	}

	if cfg.Firmware.BootloaderDelayMs == nil {
		d := int(bootloader.DefaultBootloaderDelay / time.Millisecond)
		cfg.Firmware.BootloaderDelayMs = &d
	}
	if cfg.Firmware.FlashStart == nil {
		v := uint16(DefaultFlashStart)
		cfg.Firmware.FlashStart = &v
	}
	if cfg.Firmware.FlashEnd == nil {
		v := uint16(DefaultFlashEnd)
		cfg.Firmware.FlashEnd = &v
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// CommandTimeout returns serial.command_timeout_ms as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Serial.CommandTimeoutMs) * time.Millisecond
}

// BootloaderDelay returns firmware.bootloader_delay_ms as a duration.
func (c *Config) BootloaderDelay() time.Duration {
	if c.Firmware.BootloaderDelayMs == nil {
		return bootloader.DefaultBootloaderDelay
	}
	return time.Duration(*c.Firmware.BootloaderDelayMs) * time.Millisecond
}
