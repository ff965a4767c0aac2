package commands

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/phwatch/internal/contracts"
)

func TestFormatOptional(t *testing.T) {
	v := 0.0
	nan := math.NaN()
	price := 106.456

	tests := []struct {
		name     string
		value    *float64
		decimals int
		want     string
	}{
		{"absent", nil, 2, "—"},
		{"nan", &nan, 2, "—"},
		{"zero is a value", &v, 3, "0.000"},
		{"rounded", &price, 2, "106.46"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatOptional(tt.value, tt.decimals))
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	v := 3725.0
	assert.Equal(t, "1h2m5s", formatSeconds(&v))
	assert.Equal(t, "—", formatSeconds(nil))
}

func TestFormatSignal(t *testing.T) {
	assert.Equal(t, "▲ LONG", formatSignal(contracts.OpenLong))
	assert.Equal(t, "▼ SHORT", formatSignal(contracts.OpenShort))
	assert.Equal(t, "·", formatSignal(contracts.TradeSignalNone))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"api", "scheduler", "structure", "inspect", "timeline", "status"} {
		assert.True(t, names[want], want)
	}
}
