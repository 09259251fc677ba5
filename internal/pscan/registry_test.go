package pscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&statusRule{id: 2}))
	require.NoError(t, reg.Register(&statusRule{id: 1}))

	err := reg.Register(&statusRule{id: 2})
	assert.ErrorIs(t, err, ErrDuplicateRule)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Rule.Info().PluginID)
	assert.Equal(t, 2, all[1].Rule.Info().PluginID)

	_, ok := reg.Get(1)
	assert.True(t, ok)
	_, ok = reg.Get(3)
	assert.False(t, ok)
}

func TestRegistry_Thresholds(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&statusRule{id: 1}))
	require.NoError(t, reg.Register(&statusRule{id: 2}))

	require.NoError(t, reg.ApplyThresholds(map[int]string{1: "off", 2: "High"}))

	enabled := reg.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, 2, enabled[0].Info().PluginID)

	assert.ErrorIs(t, reg.SetThreshold(99, ThresholdLow), ErrUnknownRule)
	assert.ErrorIs(t, reg.ApplyThresholds(map[int]string{99: "low"}), ErrUnknownRule)
	assert.Error(t, reg.ApplyThresholds(map[int]string{1: "sometimes"}))
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		in   string
		want Threshold
		err  bool
	}{
		{"", ThresholdDefault, false},
		{"default", ThresholdDefault, false},
		{" OFF ", ThresholdOff, false},
		{"low", ThresholdLow, false},
		{"medium", ThresholdMedium, false},
		{"high", ThresholdHigh, false},
		{"extreme", ThresholdDefault, true},
	}

	for _, tt := range tests {
		got, err := ParseThreshold(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "medium", ThresholdMedium.String())
}
