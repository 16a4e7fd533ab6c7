package orchestrator

import (
	"testing"

	"github.com/aescanero/launchorch/pkg/adapters/platform/simulated"
	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(simulated.NewHost(clockwork.NewFakeClock(), 4))

	tests := []struct {
		name    string
		mutate  func(e *domain.LaunchEntry)
		opts    LaunchOptions
		wantErr bool
	}{
		{name: "valid", mutate: func(e *domain.LaunchEntry) {}},
		{name: "missing identifier", mutate: func(e *domain.LaunchEntry) { e.Identifier = "" }, wantErr: true},
		{
			name: "affinity beyond host",
			mutate: func(e *domain.LaunchEntry) {
				e.Affinity = domain.AffinitySpec{Mode: domain.AffinityMask, Mask: 0x100}
			},
			wantErr: true,
		},
		{name: "validate only without id", mutate: func(e *domain.LaunchEntry) {}, opts: LaunchOptions{ValidateOnly: true}, wantErr: true},
		{
			name:   "validate only with id",
			mutate: func(e *domain.LaunchEntry) { e.ValidationID = "1172470" },
			opts:   LaunchOptions{ValidateOnly: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := testEntry()
			tt.mutate(&entry)
			err := v.Validate(entry.WithDefaults(), tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
