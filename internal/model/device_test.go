package model

import (
	"testing"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDevice(t *testing.T) {
	tests := []struct {
		name     string
		fallback bool
		want     Device
		fellBack bool
	}{
		{"cpu", false, CPU, false},
		{"", false, CPU, false},
		{"AUTO", false, CPU, false},
		{"mps", true, CPU, true},
		{"cuda:1", true, CPU, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, fellBack, err := ResolveDevice(tt.name, tt.fallback)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dev)
			assert.Equal(t, tt.fellBack, fellBack)
		})
	}
}

func TestResolveDevice_Errors(t *testing.T) {
	_, _, err := ResolveDevice("mps", false)
	assert.ErrorIs(t, err, domain.ErrModelLoad)

	_, _, err = ResolveDevice("tpu", true)
	assert.ErrorIs(t, err, domain.ErrModelLoad)
	assert.Contains(t, err.Error(), "unknown device")
}
