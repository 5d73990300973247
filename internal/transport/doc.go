// Package transport owns the broker session used to publish packets.
//
// Ownership boundary:
// - Publisher handle and scheme based dialing
// - MQTT, NATS and AMQP backends plus an in-memory recorder
// - retry backoff primitives
//
// A Publisher is an explicit handle: callers dial one, pass it to the
// transfer layer, and close it when done. No package level client exists.
package transport
