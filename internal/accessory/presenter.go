package accessory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

// Default values.
const (
	defaultTemperatureUnit = "F"
	defaultCommandTimeout  = 10 * time.Second
)

// WebSocket broadcast channels.
const (
	ChannelConfig    = "accessory.config"
	ChannelState     = "accessory.state"
	ChannelAttribute = "accessory.attribute"
	ChannelRemoved   = "accessory.removed"
	ChannelAck       = "accessory.ack"
	ChannelTransport = "system.transport"
)

// Logger is the logging interface used by the presenter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bus is the subset of the MQTT client the presenter needs.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Broadcaster fans documents out to WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// CommandSender delivers device commands to the hub.
type CommandSender interface {
	SendCommand(ctx context.Context, cmd transport.Command, notify *transport.Notifier) error
}

// Options configures a Presenter.
type Options struct {
	// Topics builds the accessory topic tree.
	Topics mqtt.Topics

	// QoS for every publish and subscription. Zero is a valid level and
	// is used as given.
	QoS byte

	// ExcludedAttributes are never published.
	ExcludedAttributes []string

	// TemperatureUnit until the hub reports one.
	TemperatureUnit string

	// CommandTimeout bounds each inbound command's dispatch.
	CommandTimeout time.Duration
}

// Presenter publishes cached devices as MQTT accessories. It implements
// the poller's Presenter and UnitSetter and the ingestor's
// AttributeNotifier.
type Presenter struct {
	bus      Bus
	topics   mqtt.Topics
	qos      byte
	cache    *device.Cache
	excluded map[string]bool
	timeout  time.Duration

	mu      sync.RWMutex
	unit    string
	devices map[string]string // accessory ID -> device ID

	sender      CommandSender
	broadcaster Broadcaster
	logger      Logger

	baseCtx context.Context
	wg      sync.WaitGroup
}

// New creates a Presenter. cache is read when a single attribute change
// needs the rest of the record to rebuild the retained state.
func New(bus Bus, cache *device.Cache, opts Options) *Presenter {
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}
	if opts.TemperatureUnit == "" {
		opts.TemperatureUnit = defaultTemperatureUnit
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}

	excluded := make(map[string]bool, len(opts.ExcludedAttributes))
	for _, a := range opts.ExcludedAttributes {
		excluded[a] = true
	}

	return &Presenter{
		bus:      bus,
		topics:   opts.Topics,
		qos:      opts.QoS,
		cache:    cache,
		excluded: excluded,
		timeout:  opts.CommandTimeout,
		unit:     opts.TemperatureUnit,
		devices:  make(map[string]string),
		logger:   noopLogger{},
		baseCtx:  context.Background(),
	}
}

// SetLogger sets the logger for the presenter.
func (p *Presenter) SetLogger(logger Logger) {
	p.logger = logger
}

// SetBroadcaster attaches the WebSocket hub.
func (p *Presenter) SetBroadcaster(b Broadcaster) {
	p.broadcaster = b
}

// SetTemperatureUnit changes the unit carried in later config documents.
func (p *Presenter) SetTemperatureUnit(unit string) {
	if unit == "" {
		return
	}
	p.mu.Lock()
	changed := p.unit != unit
	p.unit = unit
	p.mu.Unlock()
	if changed {
		p.logger.Info("temperature unit changed", "unit", unit)
	}
}

// TemperatureUnit returns the unit carried in config documents.
func (p *Presenter) TemperatureUnit() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unit
}

// Accessories returns the number of live accessories.
func (p *Presenter) Accessories() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.devices)
}

// Create publishes a new accessory for rec and returns its handle.
func (p *Presenter) Create(rec device.Record) device.Handle {
	h := device.Handle{ID: HandleID(rec.DeviceID), DeviceID: rec.DeviceID}

	p.mu.Lock()
	p.devices[h.ID] = rec.DeviceID
	p.mu.Unlock()

	p.publishConfig(h, rec)
	p.publishState(h, rec)
	p.logger.Debug("accessory created", "device_id", rec.DeviceID, "accessory_id", h.ID, "name", rec.Name)
	return h
}

// Refresh republishes config and state for an existing accessory.
func (p *Presenter) Refresh(h device.Handle, rec device.Record) {
	if h.IsZero() {
		return
	}
	p.mu.Lock()
	p.devices[h.ID] = h.DeviceID
	p.mu.Unlock()

	p.publishConfig(h, rec)
	p.publishState(h, rec)
}

// Release clears the accessory's retained topics.
func (p *Presenter) Release(h device.Handle) {
	if h.IsZero() {
		return
	}
	p.mu.Lock()
	delete(p.devices, h.ID)
	p.mu.Unlock()

	p.publish(p.topics.AccessoryConfig(h.ID), nil, true)
	p.publish(p.topics.AccessoryState(h.ID), nil, true)
	p.broadcast(ChannelRemoved, map[string]string{"accessory_id": h.ID, "device_id": h.DeviceID})
	p.logger.Debug("accessory released", "device_id", h.DeviceID, "accessory_id", h.ID)
}

// RefreshAttribute publishes one attribute change and, when the record
// is cached, the updated retained state.
func (p *Presenter) RefreshAttribute(h device.Handle, attribute string, value any) {
	if h.IsZero() || p.excluded[attribute] {
		return
	}

	msg := AttributeMessage{
		AccessoryID: h.ID,
		DeviceID:    h.DeviceID,
		Attribute:   attribute,
		Value:       value,
		Timestamp:   time.Now().UTC(),
	}
	p.publishJSON(p.topics.AccessoryAttribute(h.ID, attribute), msg, false)
	p.broadcast(ChannelAttribute, msg)

	if p.cache == nil {
		return
	}
	if rec, ok := p.cache.Get(h.DeviceID); ok {
		p.publishState(h, rec)
	}
}

// PublishTransportState publishes the local hub's reachability as a
// retained document so clients can see when commands fall back to the
// remote route.
func (p *Presenter) PublishTransportState(state transport.HealthState, route transport.Route) {
	msg := TransportMessage{
		State:     string(state),
		Route:     string(route),
		Timestamp: time.Now().UTC(),
	}
	p.publishJSON(p.topics.SystemTransport(), msg, true)
	p.broadcast(ChannelTransport, msg)
}

func (p *Presenter) publishConfig(h device.Handle, rec device.Record) {
	msg := ConfigMessage{
		AccessoryID:     h.ID,
		DeviceID:        rec.DeviceID,
		Name:            rec.Name,
		Capabilities:    rec.ExposedCapabilities(),
		TemperatureUnit: p.TemperatureUnit(),
		StateTopic:      p.topics.AccessoryState(h.ID),
		CommandTopic:    p.topics.AccessoryCommand(h.ID),
	}
	p.publishJSON(p.topics.AccessoryConfig(h.ID), msg, true)
	p.broadcast(ChannelConfig, msg)
}

func (p *Presenter) publishState(h device.Handle, rec device.Record) {
	state := make(map[string]any, len(rec.Attributes))
	for k, v := range rec.Attributes {
		if !p.excluded[k] {
			state[k] = v
		}
	}
	msg := StateMessage{
		AccessoryID: h.ID,
		DeviceID:    rec.DeviceID,
		Timestamp:   time.Now().UTC(),
		State:       state,
	}
	p.publishJSON(p.topics.AccessoryState(h.ID), msg, true)
	p.broadcast(ChannelState, msg)
}

func (p *Presenter) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("failed to marshal accessory message", "topic", topic, "error", err)
		return
	}
	p.publish(topic, payload, retained)
}

func (p *Presenter) publish(topic string, payload []byte, retained bool) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(topic, payload, p.qos, retained); err != nil {
		p.logger.Warn("failed to publish accessory message", "topic", topic, "error", err)
	}
}

func (p *Presenter) broadcast(channel string, payload any) {
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(channel, payload)
	}
}

func (p *Presenter) deviceFor(accessoryID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.devices[accessoryID]
	return id, ok
}
