// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, SecurityMedium, cfg.Security.Level)
	assert.Equal(t, "fixed-fast", cfg.Network.ProfileName)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("BROWSERCORE_SECURITY_LEVEL", "high")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, SecurityLevel("high"), cfg.Security.Level)
}
