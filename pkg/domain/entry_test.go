package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() LaunchEntry {
	return LaunchEntry{
		Name:              "Skate",
		Identifier:        "EA.Skate_8wekyb3d8bbwe!App",
		WaitBudgetSeconds: 10,
		Priority:          PriorityHigh,
		Affinity:          AutoAffinity(),
	}
}

func TestLaunchEntry_Validate(t *testing.T) {
	require.NoError(t, validEntry().Validate(8))

	tests := []struct {
		name   string
		mutate func(e *LaunchEntry)
	}{
		{"missing name", func(e *LaunchEntry) { e.Name = "" }},
		{"missing identifier", func(e *LaunchEntry) { e.Identifier = "" }},
		{"zero wait budget", func(e *LaunchEntry) { e.WaitBudgetSeconds = 0 }},
		{"negative wait budget", func(e *LaunchEntry) { e.WaitBudgetSeconds = -3 }},
		{"unknown priority", func(e *LaunchEntry) { e.Priority = "Turbo" }},
		{"mask beyond processors", func(e *LaunchEntry) { e.Affinity = MaskAffinity(0x100) }},
		{"validation id with slash", func(e *LaunchEntry) { e.ValidationID = "480/x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			assert.Error(t, e.Validate(8))
		})
	}
}

func TestLaunchEntry_WithDefaults(t *testing.T) {
	e := LaunchEntry{Name: " Skate ", Identifier: "id"}.WithDefaults()
	assert.Equal(t, "Skate", e.Name)
	assert.Equal(t, PriorityHigh, e.Priority)
	assert.Equal(t, AffinityAuto, e.Affinity.Mode)
}

func TestLaunchEntry_Helpers(t *testing.T) {
	e := validEntry()
	assert.Equal(t, 10*time.Second, e.WaitBudget())
	assert.False(t, e.RequiresValidation())
	assert.False(t, e.IsProtocolIdentifier())

	e.ValidationID = "480"
	e.Identifier = "steam://rungameid/480"
	assert.True(t, e.RequiresValidation())
	assert.True(t, e.IsProtocolIdentifier())
}

func TestParsePriority(t *testing.T) {
	tests := map[string]Priority{
		"":                   PriorityHigh,
		"Normal":             PriorityNormal,
		"Above Normal":       PriorityAboveNormal,
		"abovenormal":        PriorityAboveNormal,
		"Below Normal":       PriorityBelowNormal,
		"HIGH":               PriorityHigh,
		"Realtime (careful)": PriorityRealtime,
	}
	for in, want := range tests {
		got, err := ParsePriority(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePriority("idle")
	assert.Error(t, err)
}

func TestPriority_Class(t *testing.T) {
	assert.Equal(t, uint32(0x80), PriorityHigh.Class())
	assert.Equal(t, uint32(0x20), PriorityNormal.Class())
	assert.Equal(t, uint32(0x8000), PriorityAboveNormal.Class())
	assert.Equal(t, uint32(0x100), PriorityRealtime.Class())
	assert.Equal(t, uint32(0x4000), PriorityBelowNormal.Class())
}

func TestNormalizeImageToken(t *testing.T) {
	assert.Equal(t, "rocketleague", NormalizeImageToken("Rocket League"))
	assert.Equal(t, "rocketleague", NormalizeImageToken("RocketLeague.exe"))
	assert.Equal(t, "skate", NormalizeImageToken("skate."))
	assert.Equal(t, "", NormalizeImageToken("  "))
}
