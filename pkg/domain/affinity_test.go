package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoAffinityMask(t *testing.T) {
	assert.Equal(t, uint64(0xFE), AutoAffinityMask(8))
	assert.Equal(t, uint64(0x2), AutoAffinityMask(2))
	assert.Equal(t, uint64(0x1), AutoAffinityMask(1))
	assert.Equal(t, uint64(0x1), AutoAffinityMask(0))
	assert.Equal(t, ^uint64(0)&^0x1, AutoAffinityMask(64))
	assert.Equal(t, ^uint64(0)&^0x1, AutoAffinityMask(128))
}

func TestParseAffinity(t *testing.T) {
	tests := []struct {
		in   string
		want AffinitySpec
	}{
		{"", AutoAffinity()},
		{"Auto", AutoAffinity()},
		{"none", NoAffinity()},
		{"0xFE", MaskAffinity(0xFE)},
		{"0Xff", MaskAffinity(0xFF)},
		{"f0", MaskAffinity(0xF0)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAffinity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAffinity("0x0")
	assert.Error(t, err)
	_, err = ParseAffinity("zz")
	assert.Error(t, err)
}

func TestAffinitySpec_Resolve(t *testing.T) {
	mask, apply := AutoAffinity().Resolve(8)
	assert.True(t, apply)
	assert.Equal(t, uint64(0xFE), mask)

	_, apply = NoAffinity().Resolve(8)
	assert.False(t, apply)

	mask, apply = MaskAffinity(0x0C).Resolve(8)
	assert.True(t, apply)
	assert.Equal(t, uint64(0x0C), mask)
}

func TestAffinitySpec_Validate(t *testing.T) {
	assert.NoError(t, MaskAffinity(0xFF).Validate(8))
	assert.Error(t, MaskAffinity(0x1FF).Validate(8))
	assert.Error(t, MaskAffinity(0).Validate(8))
	assert.NoError(t, AutoAffinity().Validate(1))
	assert.NoError(t, MaskAffinity(^uint64(0)).Validate(64))
}

func TestAffinitySpec_TextRoundTrip(t *testing.T) {
	var a AffinitySpec
	require.NoError(t, a.UnmarshalText([]byte("0xfe")))
	text, err := a.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0xFE", string(text))
}
