package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

func TestNewDefault(t *testing.T) {
	r := NewDefault()
	assert.Equal(t, 10, r.Count())
	assert.Equal(t, DefaultProviderID, r.DefaultID())
	assert.Equal(t, "intelligence", r.IDs()[0])

	crisis, ok := r.Get("crisis")
	require.True(t, ok)
	assert.Equal(t, 1.0, crisis.PriorityWeight)
	assert.Contains(t, crisis.Capabilities, "incident_response")

	_, ok = r.Get("ghost")
	assert.False(t, ok)
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := map[string]struct {
		providers []models.CapabilityProvider
		def       string
	}{
		"empty":           {nil, ""},
		"blank id":        {[]models.CapabilityProvider{{ID: "  "}}, ""},
		"duplicate":       {[]models.CapabilityProvider{{ID: "a"}, {ID: "a"}}, "a"},
		"negative weight": {[]models.CapabilityProvider{{ID: "a", PriorityWeight: -0.1}}, "a"},
		"unknown default": {[]models.CapabilityProvider{{ID: "a"}}, "b"},
		"no default":      {[]models.CapabilityProvider{{ID: "a"}}, ""},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(tc.providers, tc.def)
			assert.Error(t, err)
		})
	}
}

func TestRegistryIsImmutable(t *testing.T) {
	input := []models.CapabilityProvider{{ID: "a", Capabilities: []string{"x"}, PriorityWeight: 0.5}}
	r, err := New(input, "a")
	require.NoError(t, err)

	input[0].Capabilities[0] = "mutated"
	got, _ := r.Get("a")
	assert.Equal(t, []string{"x"}, got.Capabilities)

	got.Capabilities[0] = "mutated"
	again, _ := r.Get("a")
	assert.Equal(t, []string{"x"}, again.Capabilities)

	list := r.List()
	list[0].ID = "b"
	assert.True(t, r.Has("a"))
}

func TestFilterAndOrder(t *testing.T) {
	r := NewDefault()

	assert.Equal(t, []string{"media", "crisis"}, r.Filter([]string{"media", "ghost", "crisis", "media"}))
	assert.Equal(t, []string{"crisis", "media", "social"}, r.Order([]string{"social", "media", "crisis"}))
	assert.Empty(t, r.Filter(nil))
}
