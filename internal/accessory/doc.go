// Package accessory presents cached hub devices on the MQTT bus.
//
// Each device becomes an accessory identified by a stable name-based UUID.
// The Presenter publishes two retained documents per accessory:
//
//	hublink/accessory/{id}/config   name, exposed capabilities, temperature unit
//	hublink/accessory/{id}/state    full attribute map
//
// and a non-retained message per pushed attribute change on
// hublink/accessory/{id}/attribute/{name}. Releasing an accessory clears
// both retained topics with empty payloads.
//
// Automation clients publish a CommandMessage to
// hublink/accessory/{id}/command. The Presenter resolves the accessory to
// its device, hands the command to the dispatcher, and publishes an
// AckMessage on hublink/accessory/{id}/ack once the send completes.
//
// Every published document is also broadcast to the WebSocket hub when a
// Broadcaster is attached.
package accessory
