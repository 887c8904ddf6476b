package bootloader

import (
	"time"

	"github.com/moffa90/go-lightning/logging"
)

// Default flash layout and timing of Lightning bootloaders.
const (
	DefaultFlashStart      = 0x1400
	DefaultFlashEnd        = 0x3A00
	DefaultBootloaderDelay = time.Second
)

// DefaultFinalizer is the word written at the top of flash once the image
// has been validated.
var DefaultFinalizer = []byte{0xC0, 0xDE}

// Config holds the updater configuration.
type Config struct {
	// ProgressCallback is called during the update to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger logging.Logger

	// FlashStart is the first application flash address
	FlashStart uint16

	// FlashEnd is one past the last application flash address
	FlashEnd uint16

	// BootloaderDelay is how long to wait after BOOTM; the bootloader answers
	// E,1 to EAPP until it is fully up
	BootloaderDelay time.Duration

	// Finalizer is written at FlashEnd-len(Finalizer) after the first
	// successful checksum validation
	Finalizer []byte
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		FlashStart:      DefaultFlashStart,
		FlashEnd:        DefaultFlashEnd,
		BootloaderDelay: DefaultBootloaderDelay,
		Finalizer:       DefaultFinalizer,
	}
}

// Option is a functional option for configuring the Updater.
type Option func(*Config)

// WithProgressCallback sets a callback function to track update progress.
//
// Example:
//
//	u := bootloader.NewUpdater(dev,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%d/%d %s\n", p.Value, p.Max, p.Step)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the update operations.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithFlashRange sets the application flash area. Ranges where end does not
// exceed start are ignored.
//
// Example:
//
//	u := bootloader.NewUpdater(dev, bootloader.WithFlashRange(0x1400, 0x3A00))
func WithFlashRange(start, end uint16) Option {
	return func(c *Config) {
		if end > start {
			c.FlashStart = start
			c.FlashEnd = end
		}
	}
}

// WithBootloaderDelay sets the wait after entering the bootloader.
func WithBootloaderDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.BootloaderDelay = d
		}
	}
}

// WithFinalizer sets the marker written at the top of flash. An empty
// marker is ignored.
func WithFinalizer(marker []byte) Option {
	return func(c *Config) {
		if len(marker) > 0 {
			c.Finalizer = append([]byte(nil), marker...)
		}
	}
}
