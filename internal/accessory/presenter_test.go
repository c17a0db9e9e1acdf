package accessory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type mockBus struct {
	mu         sync.Mutex
	messages   []published
	subscribed map[string]mqtt.MessageHandler
	subQoS     map[string]byte
	publishErr error
}

func newMockBus() *mockBus {
	return &mockBus{
		subscribed: make(map[string]mqtt.MessageHandler),
		subQoS:     make(map[string]byte),
	}
}

func (b *mockBus) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.messages = append(b.messages, published{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (b *mockBus) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed[topic] = handler
	b.subQoS[topic] = qos
	return nil
}

func (b *mockBus) last(topic string) (published, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.messages) - 1; i >= 0; i-- {
		if b.messages[i].topic == topic {
			return b.messages[i], true
		}
	}
	return published{}, false
}

func (b *mockBus) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.messages {
		if m.topic == topic {
			n++
		}
	}
	return n
}

type mockBroadcaster struct {
	mu       sync.Mutex
	channels []string
}

func (m *mockBroadcaster) Broadcast(channel string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
}

func (m *mockBroadcaster) has(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.channels {
		if c == channel {
			return true
		}
	}
	return false
}

var testTopics = mqtt.NewTopics("hublink")

func sampleRecord() device.Record {
	return device.NewRecord(device.SnapshotEntry{
		DeviceID:     "dev-1",
		Name:         "Hall Light",
		Capabilities: device.Capabilities{"Switch", "SwitchLevel", "Refresh"},
		Attributes:   device.Attributes{"switch": "on", "level": float64(40), "checkInterval": float64(720)},
	}, []string{"Refresh"})
}

func decode[T any](t *testing.T, payload []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", payload, err)
	}
	return v
}

func TestHandleID(t *testing.T) {
	a := HandleID("dev-1")
	if a != HandleID("dev-1") {
		t.Error("HandleID not stable for the same device")
	}
	if a == HandleID("dev-2") {
		t.Error("HandleID collides for different devices")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("HandleID() = %q is not a UUID: %v", a, err)
	}
	if parsed.Version() != 5 {
		t.Errorf("UUID version = %d, want 5", parsed.Version())
	}
}

func TestCreatePublishesRetainedDocuments(t *testing.T) {
	bus := newMockBus()
	bc := &mockBroadcaster{}
	p := New(bus, nil, Options{Topics: testTopics, ExcludedAttributes: []string{"checkInterval"}})
	p.SetBroadcaster(bc)

	h := p.Create(sampleRecord())
	if h.ID != HandleID("dev-1") || h.DeviceID != "dev-1" {
		t.Fatalf("Create() handle = %+v", h)
	}
	if p.Accessories() != 1 {
		t.Errorf("Accessories() = %d, want 1", p.Accessories())
	}

	cfgMsg, ok := bus.last(testTopics.AccessoryConfig(h.ID))
	if !ok || !cfgMsg.retained {
		t.Fatalf("config not published retained: %+v", cfgMsg)
	}
	cfg := decode[ConfigMessage](t, cfgMsg.payload)
	if cfg.Name != "Hall Light" || cfg.TemperatureUnit != "F" {
		t.Errorf("config = %+v", cfg)
	}
	if len(cfg.Capabilities) != 2 || cfg.Capabilities[0] != "Switch" || cfg.Capabilities[1] != "SwitchLevel" {
		t.Errorf("capabilities = %v, want [Switch SwitchLevel]", cfg.Capabilities)
	}
	if cfg.CommandTopic != "hublink/accessory/"+h.ID+"/command" {
		t.Errorf("command topic = %q", cfg.CommandTopic)
	}

	stateMsg, ok := bus.last(testTopics.AccessoryState(h.ID))
	if !ok || !stateMsg.retained {
		t.Fatalf("state not published retained")
	}
	state := decode[StateMessage](t, stateMsg.payload)
	if state.State["switch"] != "on" {
		t.Errorf("state switch = %v", state.State["switch"])
	}
	if _, present := state.State["checkInterval"]; present {
		t.Error("excluded attribute published in state")
	}

	if !bc.has(ChannelConfig) || !bc.has(ChannelState) {
		t.Errorf("broadcast channels = %v", bc.channels)
	}
}

func TestReleaseClearsRetainedTopics(t *testing.T) {
	bus := newMockBus()
	p := New(bus, nil, Options{Topics: testTopics})

	h := p.Create(sampleRecord())
	p.Release(h)

	for _, topic := range []string{testTopics.AccessoryConfig(h.ID), testTopics.AccessoryState(h.ID)} {
		msg, ok := bus.last(topic)
		if !ok {
			t.Fatalf("nothing published on %s", topic)
		}
		if len(msg.payload) != 0 || !msg.retained {
			t.Errorf("%s: payload=%q retained=%v, want empty retained", topic, msg.payload, msg.retained)
		}
	}
	if p.Accessories() != 0 {
		t.Errorf("Accessories() = %d after release", p.Accessories())
	}

	// Zero handle is ignored.
	before := len(bus.messages)
	p.Release(device.Handle{})
	if len(bus.messages) != before {
		t.Error("Release(zero handle) published")
	}
}

func TestRefreshRepublishes(t *testing.T) {
	bus := newMockBus()
	p := New(bus, nil, Options{Topics: testTopics})

	rec := sampleRecord()
	h := p.Create(rec)
	rec.Name = "Hallway"
	p.Refresh(h, rec)

	cfg := decode[ConfigMessage](t, mustLast(t, bus, testTopics.AccessoryConfig(h.ID)).payload)
	if cfg.Name != "Hallway" {
		t.Errorf("config name = %q, want Hallway", cfg.Name)
	}
	if n := bus.count(testTopics.AccessoryConfig(h.ID)); n != 2 {
		t.Errorf("config publishes = %d, want 2", n)
	}
}

func TestRefreshAttribute(t *testing.T) {
	bus := newMockBus()
	cache := device.NewCache()
	p := New(bus, cache, Options{Topics: testTopics, ExcludedAttributes: []string{"checkInterval"}})

	rec := sampleRecord()
	h := p.Create(rec)
	rec.Handle = h
	cache.Put(rec)
	cache.UpdateAttribute("dev-1", "switch", "off", time.Now())

	p.RefreshAttribute(h, "switch", "off")

	attrMsg, ok := bus.last(testTopics.AccessoryAttribute(h.ID, "switch"))
	if !ok || attrMsg.retained {
		t.Fatalf("attribute message missing or retained: %+v", attrMsg)
	}
	attr := decode[AttributeMessage](t, attrMsg.payload)
	if attr.Value != "off" || attr.DeviceID != "dev-1" {
		t.Errorf("attribute message = %+v", attr)
	}

	state := decode[StateMessage](t, mustLast(t, bus, testTopics.AccessoryState(h.ID)).payload)
	if state.State["switch"] != "off" {
		t.Errorf("retained state switch = %v, want off", state.State["switch"])
	}

	p.RefreshAttribute(h, "checkInterval", float64(60))
	if _, ok := bus.last(testTopics.AccessoryAttribute(h.ID, "checkInterval")); ok {
		t.Error("excluded attribute published")
	}
}

func TestSetTemperatureUnit(t *testing.T) {
	bus := newMockBus()
	p := New(bus, nil, Options{Topics: testTopics})

	p.SetTemperatureUnit("C")
	p.SetTemperatureUnit("")
	if p.TemperatureUnit() != "C" {
		t.Fatalf("TemperatureUnit() = %q, want C", p.TemperatureUnit())
	}

	h := p.Create(sampleRecord())
	cfg := decode[ConfigMessage](t, mustLast(t, bus, testTopics.AccessoryConfig(h.ID)).payload)
	if cfg.TemperatureUnit != "C" {
		t.Errorf("config unit = %q, want C", cfg.TemperatureUnit)
	}
}

func TestPublishFailureDoesNotPanic(t *testing.T) {
	bus := newMockBus()
	bus.publishErr = errors.New("not connected")
	p := New(bus, nil, Options{Topics: testTopics})

	h := p.Create(sampleRecord())
	if h.IsZero() {
		t.Fatal("Create() should still return a handle when publishing fails")
	}
}

func TestNilBus(t *testing.T) {
	p := New(nil, nil, Options{})
	h := p.Create(sampleRecord())
	p.RefreshAttribute(h, "switch", "off")
	p.Release(h)

	if err := p.Start(context.Background()); !errors.Is(err, ErrNoBus) {
		t.Errorf("Start() error = %v, want ErrNoBus", err)
	}
}

func TestQoSPassedThrough(t *testing.T) {
	for _, qos := range []byte{0, 1, 2} {
		bus := newMockBus()
		p := New(bus, nil, Options{Topics: testTopics, QoS: qos})

		h := p.Create(sampleRecord())
		if got := mustLast(t, bus, testTopics.AccessoryState(h.ID)).qos; got != qos {
			t.Errorf("publish qos = %d, want %d", got, qos)
		}

		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		bus.mu.Lock()
		got := bus.subQoS[testTopics.AllAccessoryCommands()]
		bus.mu.Unlock()
		if got != qos {
			t.Errorf("subscribe qos = %d, want %d", got, qos)
		}
		p.Wait()
	}
}

func TestPublishTransportState(t *testing.T) {
	bus := newMockBus()
	bc := &mockBroadcaster{}
	p := New(bus, nil, Options{Topics: testTopics})
	p.SetBroadcaster(bc)

	p.PublishTransportState(transport.StateDisabled, transport.RouteRemote)

	msg := mustLast(t, bus, testTopics.SystemTransport())
	if !msg.retained {
		t.Error("transport state should be retained")
	}
	got := decode[TransportMessage](t, msg.payload)
	if got.State != "disabled" || got.Route != "remote" {
		t.Errorf("transport message = %+v", got)
	}
	if !bc.has(ChannelTransport) {
		t.Error("transport state was not broadcast")
	}
}

func mustLast(t *testing.T, bus *mockBus, topic string) published {
	t.Helper()
	msg, ok := bus.last(topic)
	if !ok {
		t.Fatalf("nothing published on %s", topic)
	}
	return msg
}

// compile-time checks against the consumer interfaces
var _ CommandSender = (*transport.Dispatcher)(nil)
