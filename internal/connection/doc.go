// Package connection subscribes to the control feed and keeps the
// subscription alive.
//
// A Transport is one broker session: MQTTTransport speaks MQTT through paho,
// WebSocketTransport speaks a JSON pub/sub protocol over a WebSocket. The
// Supervisor owns a Transport, queues inbound payloads on a bounded inbox,
// decodes them on its own goroutine and applies them to the display state.
// When the transport reports a lost connection the Supervisor redials with
// exponential backoff and resubscribes.
package connection
