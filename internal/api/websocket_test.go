package api

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/logging"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(hub *Hub, channels ...string) *WSClient {
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		client.subscriptions[ch] = struct{}{}
	}
	hub.Register(client)
	return client
}

func TestHubBroadcastToSubscribed(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, "accessory.attribute")

	hub.Broadcast("accessory.attribute", map[string]any{"device_id": "dev-1", "value": "on"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "accessory.attribute" {
			t.Errorf("event_type = %q", wsMsg.EventType)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHubWildcardSubscription(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, WSChannelAll)

	hub.Broadcast("accessory.removed", map[string]string{"device_id": "dev-1"})

	select {
	case <-client.send:
	case <-time.After(time.Second):
		t.Error("wildcard client received nothing")
	}
}

func TestHubNoMessageForUnsubscribed(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, "accessory.ack")

	hub.Broadcast("accessory.state", map[string]any{"device_id": "dev-1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubClientCount(t *testing.T) {
	hub := newTestHub(t)
	if hub.ClientCount() != 0 {
		t.Errorf("initial count = %d", hub.ClientCount())
	}

	client := newTestClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister = %d, want 0", hub.ClientCount())
	}
}

func TestClientSubscribeMessages(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub)

	client.handleMessage([]byte(`{"type":"subscribe","id":"1","payload":{"channels":["accessory.state"]}}`))
	if !client.isSubscribed("accessory.state") {
		t.Fatal("subscribe not applied")
	}
	<-client.send

	client.handleMessage([]byte(`{"type":"unsubscribe","id":"2","payload":{"channels":["accessory.state"]}}`))
	if client.isSubscribed("accessory.state") {
		t.Fatal("unsubscribe not applied")
	}
	<-client.send

	client.handleMessage([]byte(`{"type":"ping","id":"3"}`))
	var pong WSMessage
	if err := json.Unmarshal(<-client.send, &pong); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pong.Type != WSTypePong || pong.ID != "3" {
		t.Errorf("pong = %+v", pong)
	}

	client.handleMessage([]byte(`{"type":"bogus"}`))
	var errMsg WSMessage
	if err := json.Unmarshal(<-client.send, &errMsg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errMsg.Type != WSTypeError {
		t.Errorf("type = %q, want error", errMsg.Type)
	}
}

func TestSplitChannels(t *testing.T) {
	got := splitChannels("accessory.state, accessory.ack,,")
	if len(got) != 2 || got[0] != "accessory.state" || got[1] != "accessory.ack" {
		t.Errorf("splitChannels() = %v", got)
	}
	if splitChannels("") != nil {
		t.Error("splitChannels(\"\") should be nil")
	}
}
