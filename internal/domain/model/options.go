package model

// EntityOption selects one platform entity for exposure to the hub.
type EntityOption struct {
	EntityID string `json:"entity_id"`

	// BrightnessFormula optionally overrides the default brightness scaling
	// for lights, e.g. "x * 100 / 255". The variable x is the platform value.
	BrightnessFormula string `json:"brightness_formula,omitempty"`
}

// Options is the mutable bridge configuration: which entities are exposed.
// The static configuration (port, token, platform credentials) lives in the
// YAML config file and is not persisted here.
type Options struct {
	Entities []EntityOption `json:"entities"`
}

// Selected returns the exposure options keyed by entity id, dropping entries
// outside the supported domains.
func (o *Options) Selected() map[string]EntityOption {
	out := make(map[string]EntityOption, len(o.Entities))
	for _, e := range o.Entities {
		if !DomainOf(e.EntityID).Supported() {
			continue
		}
		out[e.EntityID] = e
	}
	return out
}
