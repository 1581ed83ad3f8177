// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Named queue backends selectable from a config file.
const (
	BackendPosix  = "posix"
	BackendMemory = "memory"
)

// Config is the file form of the kernel settings.
//
//	ticks_per_second = 100
//	event_mailbox = 256
//	event_retries = 8
//	max_queue_bytes = 67108864
//	named_prefix = "/"
//	named_backend = "posix"
//	log_level = "info"
type Config struct {
	TicksPerSecond int    `toml:"ticks_per_second"`
	EventMailbox   int    `toml:"event_mailbox"`
	EventRetries   int    `toml:"event_retries"`
	MaxQueueBytes  int    `toml:"max_queue_bytes"`
	NamedPrefix    string `toml:"named_prefix"`
	NamedBackend   string `toml:"named_backend"`
	LogLevel       string `toml:"log_level"`
}

// DefaultConfig returns the settings New starts from.
func DefaultConfig() *Config {
	return &Config{
		TicksPerSecond: 100,
		EventMailbox:   256,
		EventRetries:   8,
		MaxQueueBytes:  64 << 20,
		NamedPrefix:    "/",
		NamedBackend:   BackendMemory,
		LogLevel:       "info",
	}
}

// LoadConfig reads a TOML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return ParseConfig(data)
}

// ParseConfig decodes TOML over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.TicksPerSecond < 1 || c.TicksPerSecond > 1000 {
		return errors.Errorf("ticks_per_second %d out of [1, 1000]", c.TicksPerSecond)
	}
	if c.EventMailbox < 1 {
		return errors.Errorf("event_mailbox must be positive, got %d", c.EventMailbox)
	}
	if c.EventRetries < 0 {
		return errors.Errorf("event_retries must not be negative, got %d", c.EventRetries)
	}
	if c.MaxQueueBytes < 0 {
		return errors.Errorf("max_queue_bytes must not be negative, got %d", c.MaxQueueBytes)
	}
	switch c.NamedBackend {
	case BackendPosix, BackendMemory:
	default:
		return errors.Errorf("named_backend %q: want %q or %q", c.NamedBackend, BackendPosix, BackendMemory)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// Builder returns a kernel builder configured from c. The logger is a new
// logrus logger at the configured level.
func (c *Config) Builder() (*Builder, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := logrus.ParseLevel(c.LogLevel)
	log := logrus.New()
	log.SetLevel(lvl)

	b := New().
		TicksPerSecond(c.TicksPerSecond).
		EventMailbox(c.EventMailbox).
		EventRetries(c.EventRetries).
		MaxQueueBytes(c.MaxQueueBytes).
		NamedPrefix(c.NamedPrefix).
		Logger(log)
	if c.NamedBackend == BackendPosix {
		b.Posix()
	}
	return b, nil
}
