package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunDreame/st-bridge/internal/domain/model"
	"github.com/lunDreame/st-bridge/internal/logger"
)

func newTestRegistry() *Registry {
	return NewRegistry(logger.Get(logger.ErrorLevel))
}

func TestRegistryApplyStateIsolation(t *testing.T) {
	r := newTestRegistry()
	r.Upsert(&model.Device{
		ID:     "light.kitchen",
		Domain: model.DomainLight,
		State:  model.CapabilityMap{model.CapOnOff: true, model.CapBrightness: float64(80)},
	})
	r.Upsert(&model.Device{
		ID:     "switch.heater",
		Domain: model.DomainSwitch,
		State:  model.CapabilityMap{model.CapOnOff: false},
	})

	ok := r.ApplyState("light.kitchen", model.CapabilityMap{model.CapBrightness: float64(25)})
	assert.True(t, ok)

	d, found := r.Get("light.kitchen")
	require.True(t, found)
	assert.Equal(t, float64(25), d.State[model.CapBrightness])
	assert.Equal(t, true, d.State[model.CapOnOff], "untouched capability preserved")

	other, _ := r.Get("switch.heater")
	assert.Equal(t, false, other.State[model.CapOnOff], "other devices unchanged")
}

func TestRegistryApplyStateUnknownDevice(t *testing.T) {
	r := newTestRegistry()
	assert.False(t, r.ApplyState("light.nowhere", model.CapabilityMap{model.CapOnOff: true}))
	assert.Zero(t, r.Len())
}

func TestRegistryUpdateMeta(t *testing.T) {
	r := newTestRegistry()
	r.Upsert(&model.Device{
		ID:           "climate.living_room",
		Domain:       model.DomainClimate,
		Capabilities: []string{model.CapMode},
		Unit:         "°C",
		State:        model.CapabilityMap{model.CapMode: "heat"},
	})

	ok := r.UpdateMeta("climate.living_room", []string{model.CapMode, model.CapTargetTemp}, "°F")
	assert.True(t, ok)

	d, found := r.Get("climate.living_room")
	require.True(t, found)
	assert.Equal(t, []string{model.CapMode, model.CapTargetTemp}, d.Capabilities)
	assert.Equal(t, "°F", d.Unit)
	assert.Equal(t, "heat", d.State[model.CapMode], "state untouched")

	assert.False(t, r.UpdateMeta("climate.nowhere", nil, "°C"))
}

func TestRegistryListSnapshot(t *testing.T) {
	r := newTestRegistry()
	r.Upsert(&model.Device{ID: "fan.b", Domain: model.DomainFan})
	r.Upsert(&model.Device{ID: "fan.a", Domain: model.DomainFan})

	snap := r.List()
	require.Len(t, snap, 2)
	assert.Equal(t, "fan.a", snap[0].ID, "sorted by id")

	// Mutating after List does not shrink the snapshot.
	r.Remove("fan.a")
	assert.Len(t, snap, 2)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryUpsertReplaces(t *testing.T) {
	r := newTestRegistry()
	r.Upsert(&model.Device{ID: "light.a", Domain: model.DomainLight, Name: "old"})
	r.Upsert(&model.Device{ID: "light.a", Domain: model.DomainLight, Name: "new"})

	assert.Equal(t, 1, r.Len())
	d, _ := r.Get("light.a")
	assert.Equal(t, "new", d.Name)

	assert.True(t, r.Remove("light.a"))
	assert.False(t, r.Remove("light.a"))
}
