package translator

import (
	"github.com/lunDreame/st-bridge/internal/domain/model"
)

type Factory struct {
	strategies map[model.Domain]Translator
}

func NewFactory() *Factory {
	return &Factory{
		strategies: map[model.Domain]Translator{
			model.DomainLight:   &LightStrategy{},
			model.DomainSwitch:  &SwitchStrategy{},
			model.DomainFan:     &FanStrategy{},
			model.DomainClimate: &ClimateStrategy{},
		},
	}
}

// Translator returns the strategy for a domain. The four bridged domains are
// a closed set; anything else reports false.
func (f *Factory) Translator(d model.Domain) (Translator, bool) {
	t, ok := f.strategies[d]
	return t, ok
}
