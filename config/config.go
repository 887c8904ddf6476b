// Package config loads the gateway daemon configuration.
//
// The flow is Load, then Validate (declarative, never mutates), then
// Normalize (fills defaults).
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Serial   SerialConfig   `yaml:"serial"`
	Firmware FirmwareConfig `yaml:"firmware"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Log      LogConfig      `yaml:"log"`
}

// ---- SERVER ----

type ServerConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Driver           string `yaml:"driver"`
	Baud             int    `yaml:"baud"`
	CommandTimeoutMs int    `yaml:"command_timeout_ms"`
}

// ---- FIRMWARE ----

type FirmwareConfig struct {
	Dir               string  `yaml:"dir"`
	BootloaderDelayMs *int    `yaml:"bootloader_delay_ms"`
	FlashStart        *uint16 `yaml:"flash_start"`
	FlashEnd          *uint16 `yaml:"flash_end"`
}

// ---- CATALOG ----

type CatalogConfig struct {
	// Path overrides the embedded model catalog (optional)
	Path string `yaml:"path"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML configuration file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration. An empty document yields an empty
// configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
