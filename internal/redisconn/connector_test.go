package redisconn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/bmrk/internal/config"
	"github.com/joestump/bmrk/internal/logger"
)

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis.Addr = "redis:6379"
	cfg.Redis.DB = 2

	opts := FromConfig(cfg)
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.NoError(t, opts.validate())
}

func TestOptions_Validate(t *testing.T) {
	base := FromConfig(&config.Config{})
	base.Addr = "localhost:6379"

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"no addr", func(o *Options) { o.Addr = "" }},
		{"no connect timeout", func(o *Options) { o.ConnectTimeout = 0 }},
		{"no retry interval", func(o *Options) { o.RetryInterval = 0 }},
		{"no max wait", func(o *Options) { o.MaxWait = 0 }},
		{"no ping timeout", func(o *Options) { o.PingTimeout = 0 }},
		{"negative warn threshold", func(o *Options) { o.WarnThreshold = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.mutate(&o)
			assert.Error(t, o.validate())
		})
	}
}

func TestConnect_GivesUpAfterTimeout(t *testing.T) {
	opts := Options{
		Addr:           "127.0.0.1:1",
		DialTimeout:    20 * time.Millisecond,
		ConnectTimeout: 150 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		MaxWait:        40 * time.Millisecond,
		PingTimeout:    30 * time.Millisecond,
		WarnThreshold:  1,
	}

	start := time.Now()
	client, err := Connect(context.Background(), opts, logger.Nop())
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Less(t, time.Since(start), 2*time.Second)
}
