package service

import (
	"sort"
	"sync"

	"github.com/lunDreame/st-bridge/internal/domain/model"
	"github.com/lunDreame/st-bridge/internal/logger"
)

// Registry holds the devices currently exposed to the hub. It is the single
// source of truth announced over the wire: state changes land here before
// they are sent, so a snapshot taken mid-update is always consistent.
//
// Writes are funneled through the coordinator's event loop; the lock guards
// readers on other goroutines.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*model.Device
	log     *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		devices: make(map[string]*model.Device),
		log:     log,
	}
}

// Upsert inserts or replaces a device. Identity is the device id.
func (r *Registry) Upsert(d *model.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.State == nil {
		d.State = model.CapabilityMap{}
	}
	r.devices[d.ID] = d
}

// Remove deletes a device, reporting whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[id]
	delete(r.devices, id)
	return ok
}

func (r *Registry) Get(id string) (*model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// List returns a point-in-time snapshot sorted by id, never a live view.
func (r *Registry) List() []*model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// UpdateMeta replaces a device's advertised capabilities and unit, which can
// change when the platform re-announces an entity.
func (r *Registry) UpdateMeta(id string, capabilities []string, unit string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return false
	}
	d.Capabilities = capabilities
	d.Unit = unit
	return true
}

// ApplyState merges capability values into a device's last-known state. The
// merge is atomic with respect to concurrent reads. An unknown id is a no-op
// logged at warn: the device may have just been deselected.
func (r *Registry) ApplyState(id string, values model.CapabilityMap) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		r.log.Warnw("state update for unknown device", "device", id)
		return false
	}
	for k, v := range values {
		d.State[k] = v
	}
	return true
}
