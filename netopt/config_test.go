// SPDX-License-Identifier: GPL-3.0-or-later

package netopt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigBuildSelectsNamedProfile(t *testing.T) {
	opt, err := DefaultConfig().Build()
	require.NoError(t, err)
	assert.Equal(t, "fixed-fast", opt.GetActiveHTTP3Settings().Name)
}

func TestConfigBuildRejectsUnknownProfileName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProfileName = "nonexistent"
	_, err := cfg.Build()
	assert.Error(t, err)
}

func TestConfigBuildHonorsExplicitBundle(t *testing.T) {
	cfg := Config{
		ProfileName:     "custom",
		SwitchThreshold: 0.3,
		ProfileBundle: []ProfileOverride{
			{Name: "custom", BandwidthMbps: 50, RTTMillis: 40},
		},
	}
	opt, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, "custom", opt.GetActiveHTTP3Settings().Name)
}
