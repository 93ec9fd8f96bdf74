package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lunDreame/st-bridge/internal/domain/model"
	"github.com/lunDreame/st-bridge/internal/domain/protocol"
	"github.com/lunDreame/st-bridge/internal/domain/translator"
	"github.com/lunDreame/st-bridge/internal/logger"
	"github.com/lunDreame/st-bridge/internal/ports"
)

const (
	defaultCallTimeout = 10 * time.Second
	defaultQueueSize   = 256
)

type eventKind int

const (
	evEntityState eventKind = iota
	evInbound
	evSessionUp
	evSessionDown
	evOptions
	evCallResult
)

type event struct {
	kind    eventKind
	state   model.EntityState
	session ports.HubSession
	msg     protocol.Message
	reason  string
	options *model.Options
	result  *callResult
}

type callResult struct {
	corrID string
	err    error
}

type pendingCommand struct {
	session  ports.HubSession
	deviceID string
	values   model.CapabilityMap
}

// CoordinatorConfig tunes the orchestration loop.
type CoordinatorConfig struct {
	// CallTimeout bounds each platform service invocation.
	CallTimeout time.Duration
	// QueueSize is the event queue capacity.
	QueueSize int
}

func (c *CoordinatorConfig) withDefaults() CoordinatorConfig {
	out := *c
	if out.CallTimeout <= 0 {
		out.CallTimeout = defaultCallTimeout
	}
	if out.QueueSize <= 0 {
		out.QueueSize = defaultQueueSize
	}
	return out
}

// Coordinator is the only stateful orchestrator. Connection transitions,
// inbound hub messages, platform state changes, and exposure changes all
// funnel through one event queue consumed by a single goroutine, so registry
// and session bookkeeping never interleave.
type Coordinator struct {
	cfg      CoordinatorConfig
	registry *Registry
	factory  *translator.Factory
	platform ports.PlatformPort
	log      *logger.Logger

	events chan event
	done   chan struct{}

	// loop-owned state, touched only inside Run.
	session ports.HubSession
	exposed map[string]model.EntityOption
	pending map[string]pendingCommand
}

func NewCoordinator(cfg CoordinatorConfig, registry *Registry, platform ports.PlatformPort, log *logger.Logger) *Coordinator {
	cfg = cfg.withDefaults()
	return &Coordinator{
		cfg:      cfg,
		registry: registry,
		factory:  translator.NewFactory(),
		platform: platform,
		log:      log,
		events:   make(chan event, cfg.QueueSize),
		done:     make(chan struct{}),
		exposed:  make(map[string]model.EntityOption),
		pending:  make(map[string]pendingCommand),
	}
}

// Run consumes the event queue until ctx is cancelled. It also starts the
// platform change listener as an independent producer.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	go c.watchPlatform(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Coordinator) enqueue(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// OnEntityState feeds one platform state change into the loop.
func (c *Coordinator) OnEntityState(e model.EntityState) {
	c.enqueue(event{kind: evEntityState, state: e})
}

// UpdateOptions applies a new exposure selection.
func (c *Coordinator) UpdateOptions(o *model.Options) {
	c.enqueue(event{kind: evOptions, options: o})
}

// SessionUp implements ports.HubHandler.
func (c *Coordinator) SessionUp(s ports.HubSession) {
	c.enqueue(event{kind: evSessionUp, session: s})
}

// SessionDown implements ports.HubHandler.
func (c *Coordinator) SessionDown(s ports.HubSession, reason string) {
	c.enqueue(event{kind: evSessionDown, session: s, reason: reason})
}

// HandleMessage implements ports.HubHandler.
func (c *Coordinator) HandleMessage(s ports.HubSession, msg protocol.Message) {
	c.enqueue(event{kind: evInbound, session: s, msg: msg})
}

func (c *Coordinator) watchPlatform(ctx context.Context) {
	for {
		ch, err := c.platform.Events(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warnw("platform event stream unavailable", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				continue
			}
		}
		for e := range ch {
			c.OnEntityState(e)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// dispatch runs on the single loop goroutine; events are processed strictly
// in enqueue order, which pins command/removal races.
func (c *Coordinator) dispatch(ctx context.Context, ev event) {
	switch ev.kind {
	case evEntityState:
		c.handleEntityState(ev.state)
	case evInbound:
		c.handleInbound(ev.session, ev.msg)
	case evSessionUp:
		c.handleSessionUp(ev.session)
	case evSessionDown:
		c.handleSessionDown(ev.session, ev.reason)
	case evOptions:
		c.handleOptions(ctx, ev.options)
	case evCallResult:
		c.handleCallResult(ev.result)
	}
}

func (c *Coordinator) handleEntityState(e model.EntityState) {
	opt, selected := c.exposed[e.EntityID]
	if !selected {
		return
	}
	t, ok := c.factory.Translator(e.Domain)
	if !ok {
		return
	}
	values := t.ToBridge(e, &opt)

	dev, found := c.registry.Get(e.EntityID)
	var changed model.CapabilityMap
	if !found {
		// Entity became available after selection; the hub needs a fresh
		// device list before the first state update makes sense.
		dev = c.deviceFromState(e, opt)
		c.registry.Upsert(dev)
		c.pushDeviceList()
		changed = values
	} else {
		c.registry.UpdateMeta(dev.ID, e.Capabilities(), e.TemperatureUnit())
		changed = values.Diff(dev.State)
		if len(changed) == 0 {
			// Identical values are suppressed to avoid echo storms.
			return
		}
		// Registry first, then announce, so snapshots stay consistent.
		c.registry.ApplyState(dev.ID, changed)
	}

	if c.session == nil {
		return
	}
	c.send(c.session, protocol.Message{
		Type:          protocol.TypeStateUpdate,
		CorrelationID: uuid.NewString(),
		DeviceID:      dev.ID,
		Values:        changed,
	})
}

func (c *Coordinator) handleInbound(s ports.HubSession, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeCommand:
		c.handleCommand(s, msg)
	case protocol.TypeAck, protocol.TypeNack:
		// Hub responses to our state updates; nothing to resolve.
	default:
		c.log.Debugw("ignoring inbound message", "type", msg.Type)
	}
}

func (c *Coordinator) handleCommand(s ports.HubSession, msg protocol.Message) {
	corr := msg.CorrelationID

	dev, ok := c.registry.Get(msg.DeviceID)
	if !ok {
		c.send(s, protocol.Nack(corr, protocol.ReasonUnknownDevice))
		return
	}
	t, ok := c.factory.Translator(dev.Domain)
	if !ok {
		c.send(s, protocol.Nack(corr, protocol.ReasonUnsupportedCapability))
		return
	}
	call, err := t.ToPlatform(dev, msg.Values)
	if err != nil {
		c.log.Warnw("command rejected", "device", dev.ID, "err", err)
		c.send(s, protocol.Nack(corr, protocol.ReasonUnsupportedCapability))
		return
	}

	c.pending[corr] = pendingCommand{session: s, deviceID: dev.ID, values: msg.Values}

	// In-flight service calls are never cancelled mid-effect; a stale result
	// is discarded when it re-enters the loop.
	go func() {
		callCtx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
		defer cancel()
		err := c.platform.CallService(callCtx, call)
		c.enqueue(event{kind: evCallResult, result: &callResult{corrID: corr, err: err}})
	}()
}

func (c *Coordinator) handleCallResult(res *callResult) {
	p, ok := c.pending[res.corrID]
	if !ok {
		return
	}
	delete(c.pending, res.corrID)
	if p.session != c.session {
		// The session died while the call was in flight.
		c.log.Debugw("discarding result for dead session", "correlation_id", res.corrID)
		return
	}
	if res.err != nil {
		c.log.Warnw("platform call failed", "device", p.deviceID, "err", res.err)
		c.send(p.session, protocol.Nack(res.corrID, protocol.ReasonPlatformError))
		return
	}
	c.registry.ApplyState(p.deviceID, p.values)
	c.send(p.session, protocol.Ack(res.corrID))
}

func (c *Coordinator) handleSessionUp(s ports.HubSession) {
	if c.session != nil && c.session != s {
		c.nackPending(c.session)
		_ = c.session.Close()
	}
	c.session = s
	c.log.Infow("hub session up", "remote", s.RemoteAddr())
	c.pushDeviceList()
}

func (c *Coordinator) handleSessionDown(s ports.HubSession, reason string) {
	c.nackPending(s)
	if s != c.session {
		return
	}
	c.log.Infow("hub session down", "remote", s.RemoteAddr(), "reason", reason)
	c.session = nil
}

// nackPending resolves every command pending on s with connection_lost. The
// send is best-effort: the socket is usually already gone.
func (c *Coordinator) nackPending(s ports.HubSession) {
	for corr, p := range c.pending {
		if p.session != s {
			continue
		}
		delete(c.pending, corr)
		if err := s.Send(protocol.Nack(corr, protocol.ReasonConnectionLost)); err != nil {
			c.log.Debugw("could not deliver connection_lost nack", "correlation_id", corr)
		}
	}
}

func (c *Coordinator) handleOptions(ctx context.Context, o *model.Options) {
	c.exposed = o.Selected()

	// Deselection removes the device immediately and atomically.
	for _, d := range c.registry.List() {
		if _, ok := c.exposed[d.ID]; !ok {
			c.registry.Remove(d.ID)
		}
	}

	if len(c.exposed) > 0 && c.platform.IsConfigured() {
		statesCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		states, err := c.platform.States(statesCtx)
		cancel()
		if err != nil {
			c.log.Warnw("could not fetch platform states", "err", err)
		} else {
			for _, e := range states {
				if opt, ok := c.exposed[e.EntityID]; ok {
					c.registry.Upsert(c.deviceFromState(e, opt))
				}
			}
		}
	}

	c.log.Infow("exposure selection applied", "exposed", len(c.exposed), "devices", c.registry.Len())
	c.pushDeviceList()
}

func (c *Coordinator) deviceFromState(e model.EntityState, opt model.EntityOption) *model.Device {
	d := &model.Device{
		ID:           e.EntityID,
		Name:         e.Name,
		Domain:       e.Domain,
		Capabilities: e.Capabilities(),
		State:        model.CapabilityMap{},
		Unit:         e.TemperatureUnit(),
	}
	if t, ok := c.factory.Translator(e.Domain); ok {
		d.State = t.ToBridge(e, &opt)
	}
	return d
}

func (c *Coordinator) pushDeviceList() {
	if c.session == nil {
		return
	}
	msg := protocol.Message{
		Type:          protocol.TypeDeviceList,
		CorrelationID: uuid.NewString(),
	}
	for _, d := range c.registry.List() {
		msg.Devices = append(msg.Devices, protocol.DeviceInfo{
			ID:           d.ID,
			Name:         d.Name,
			Domain:       string(d.Domain),
			Capabilities: d.Capabilities,
			State:        d.State.Clone(),
		})
	}
	c.send(c.session, msg)
}

func (c *Coordinator) send(s ports.HubSession, msg protocol.Message) {
	if err := s.Send(msg); err != nil {
		c.log.Warnw("send failed", "type", msg.Type, "err", err)
	}
}
