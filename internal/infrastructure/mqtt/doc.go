// Package mqtt provides MQTT client connectivity for HubLink.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// HubLink presents each hub device as an accessory on the MQTT bus.
// Automation clients read retained config and state topics and publish
// commands back, which the accessory layer dispatches to the hub.
//
//	Hub ↔ HubLink ↔ MQTT Broker ↔ Automation clients
//
// All topics live under a configurable prefix (default "hublink"); see
// Topics for the layout.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllAccessoryCommands(), client.QoS(), handleCommand)
package mqtt
