package translator

import (
	"fmt"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

type SwitchStrategy struct{}

func (s *SwitchStrategy) ToBridge(e model.EntityState, _ *model.EntityOption) model.CapabilityMap {
	return model.CapabilityMap{model.CapOnOff: e.State == "on"}
}

func (s *SwitchStrategy) ToPlatform(d *model.Device, values model.CapabilityMap) (model.ServiceCall, error) {
	on, ok := values[model.CapOnOff].(bool)
	if !ok || len(values) != 1 {
		for tag := range values {
			if tag != model.CapOnOff {
				return model.ServiceCall{}, fmt.Errorf("%w: %s", ErrUnsupportedCapability, tag)
			}
		}
		return model.ServiceCall{}, fmt.Errorf("%w: %s value", ErrUnsupportedCapability, model.CapOnOff)
	}

	service := "turn_on"
	if !on {
		service = "turn_off"
	}
	return model.ServiceCall{
		Domain:  "switch",
		Service: service,
		Data:    map[string]any{"entity_id": d.ID},
	}, nil
}
