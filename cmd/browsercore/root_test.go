// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassosimone/browsercore/config"
	"github.com/bassosimone/browsercore/supervisor"
)

func TestServeShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := newRootCommand()
	done := make(chan supervisor.ExitCode, 1)
	go func() {
		done <- serve(ctx, cmd.PersistentFlags())
	}()

	cancel()

	select {
	case code := <-done:
		assert.Equal(t, supervisor.ExitNormal, code)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after context cancellation")
	}
}

func TestNewRootCommandRegistersFlags(t *testing.T) {
	_, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()
	// Only exercises command construction and flag parsing; serve's
	// ctx.Done() path is covered directly by TestServeShutsDownOnCancel.
	cmd := newRootCommand()
	assert.Equal(t, "browsercore", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("security-level"))
}

func TestServeHonorsSecurityLevelFlagOverride(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.PersistentFlags().Set("security-level", "high"))

	v := viper.New()
	require.NoError(t, v.BindPFlag("security.level", cmd.PersistentFlags().Lookup("security-level")))
	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, config.SecurityHigh, cfg.Security.Level)
}
