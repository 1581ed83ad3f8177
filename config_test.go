// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/msgq"
)

func TestDefaultConfig(t *testing.T) {
	c := msgq.DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, 100, c.TicksPerSecond)
	assert.Equal(t, 256, c.EventMailbox)
	assert.Equal(t, "/", c.NamedPrefix)
	assert.Equal(t, msgq.BackendMemory, c.NamedBackend)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msgq.toml")
	data := []byte(`
ticks_per_second = 250
event_mailbox = 32
named_prefix = "/app."
log_level = "debug"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	c, err := msgq.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 250, c.TicksPerSecond)
	assert.Equal(t, 32, c.EventMailbox)
	assert.Equal(t, "/app.", c.NamedPrefix)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 8, c.EventRetries, "unset keys keep defaults")
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := msgq.LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", `ticks_per_second = `},
		{"unknown key", `tick_rate = 10`},
		{"rate too high", `ticks_per_second = 2000`},
		{"rate zero", `ticks_per_second = 0`},
		{"mailbox", `event_mailbox = 0`},
		{"retries", `event_retries = -1`},
		{"backend", `named_backend = "sysv"`},
		{"level", `log_level = "loud"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := msgq.ParseConfig([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestConfigBuilder(t *testing.T) {
	c, err := msgq.ParseConfig([]byte("ticks_per_second = 50\nlog_level = \"error\"\n"))
	require.NoError(t, err)

	b, err := c.Builder()
	require.NoError(t, err)
	k, err := b.Build()
	require.NoError(t, err)
	defer k.Shutdown()

	assert.Equal(t, 50, k.Clock().(*msgq.TickClock).Rate())

	h, err := k.Create(1, 4, msgq.Fifo)
	require.NoError(t, err)
	require.NoError(t, k.Send(context.Background(), h, []byte("cfg"), msgq.NoWait, msgq.Normal))
	depth, err := k.Depth(h)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestBuilderValidation(t *testing.T) {
	_, err := msgq.New().TicksPerSecond(0).Build()
	assert.ErrorIs(t, err, msgq.ErrInvalidArgument)

	_, err = msgq.New().EventMailbox(0).Build()
	assert.ErrorIs(t, err, msgq.ErrInvalidArgument)

	k, err := msgq.New().TicksPerSecond(0).Clock(msgq.NewTickClock(10)).Build()
	require.NoError(t, err, "an explicit clock overrides the rate")
	k.Shutdown()

	_, err = msgq.New().Clock(frozenClock{}).Build()
	assert.ErrorIs(t, err, msgq.ErrInvalidArgument, "zero tick duration")
}

// frozenClock is a Clock whose ticks have no length.
type frozenClock struct{}

func (frozenClock) Ticks() uint64               { return 0 }
func (frozenClock) TickDuration() time.Duration { return 0 }
