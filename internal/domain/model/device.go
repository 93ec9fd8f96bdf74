package model

import (
	"reflect"
	"strings"
)

type Domain string

const (
	DomainLight   Domain = "light"
	DomainSwitch  Domain = "switch"
	DomainFan     Domain = "fan"
	DomainClimate Domain = "climate"
)

// Supported reports whether the domain is one of the four bridged domains.
func (d Domain) Supported() bool {
	switch d {
	case DomainLight, DomainSwitch, DomainFan, DomainClimate:
		return true
	}
	return false
}

// DomainOf extracts the domain prefix from an entity id such as "light.kitchen".
func DomainOf(entityID string) Domain {
	if i := strings.IndexByte(entityID, '.'); i > 0 {
		return Domain(entityID[:i])
	}
	return Domain("")
}

// Capability tags exposed on the wire.
const (
	CapOnOff       = "on_off"
	CapBrightness  = "brightness"
	CapColorTemp   = "color_temp"
	CapColor       = "color"
	CapSpeed       = "speed"
	CapMode        = "mode"
	CapTargetTemp  = "target_temperature"
	CapCurrentTemp = "current_temperature"
)

// ModeUnsupported is reported for platform climate modes outside the bridge enum.
const ModeUnsupported = "unsupported"

// CapabilityMap maps capability tags to their current or requested values.
// Values are JSON-shaped: bool, float64, string, or []any.
type CapabilityMap map[string]any

// Clone returns a shallow copy of the map.
func (m CapabilityMap) Clone() CapabilityMap {
	out := make(CapabilityMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Diff returns the entries of m whose values differ from old.
func (m CapabilityMap) Diff(old CapabilityMap) CapabilityMap {
	out := CapabilityMap{}
	for k, v := range m {
		if prev, ok := old[k]; !ok || !reflect.DeepEqual(prev, v) {
			out[k] = v
		}
	}
	return out
}

// Device is an entity exposed to the hub. Identity is the ID, shared with the
// platform entity id. The registry owns all Device values.
type Device struct {
	ID           string
	Name         string
	Domain       Domain
	Capabilities []string
	State        CapabilityMap

	// Unit is the platform's temperature unit for climate entities ("°C" or "°F").
	Unit string
}

// HasCapability reports whether the device advertises the given capability tag.
func (d *Device) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// EntityState is a platform-side state snapshot for one entity.
type EntityState struct {
	EntityID   string
	Name       string
	Domain     Domain
	State      string
	Attributes map[string]any
}

// Capabilities infers the bridge capability set from the entity's domain and
// attributes. Capabilities the entity does not advertise are never synthesized.
func (e EntityState) Capabilities() []string {
	switch e.Domain {
	case DomainLight:
		caps := []string{CapOnOff}
		if _, ok := e.Attributes["brightness"]; ok {
			caps = append(caps, CapBrightness)
		}
		if _, ok := e.Attributes["color_temp_kelvin"]; ok {
			caps = append(caps, CapColorTemp)
		}
		if _, ok := e.Attributes["rgb_color"]; ok {
			caps = append(caps, CapColor)
		}
		return caps
	case DomainSwitch:
		return []string{CapOnOff}
	case DomainFan:
		caps := []string{CapOnOff}
		if _, ok := e.Attributes["percentage"]; ok {
			caps = append(caps, CapSpeed)
		}
		return caps
	case DomainClimate:
		return []string{CapMode, CapTargetTemp, CapCurrentTemp}
	}
	return nil
}

// TemperatureUnit returns the entity's temperature unit attribute, defaulting
// to Celsius when absent.
func (e EntityState) TemperatureUnit() string {
	if u, ok := e.Attributes["temperature_unit"].(string); ok && u != "" {
		return u
	}
	return "°C"
}

// ServiceCall describes one platform service invocation.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
}
