package messenger

import "context"

// Message is a decoded MQTT message delivered to a handler.
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
	QoS     byte
}

// MQTT abstracts the MQTT client operations used by the messenger.
type MQTT interface {
	// Publish should be safe to call from multiple goroutines.
	Publish(ctx context.Context, topic string, payload []byte, retain bool, qos byte) error
	Subscribe(ctx context.Context, topic string, qos byte, handler func(Message)) (unsubscribe func() error, err error)
	SetWill(topic string, payload []byte, retain bool, qos byte) error

	// SetOnConnect registers a callback invoked every time the client
	// establishes or re-establishes a broker connection, so the caller
	// can re-run connect-time setup (subscriptions, announcements) after
	// every reconnect, not just the first one.
	SetOnConnect(fn func())

	// Disconnect closes the connection gracefully.
	Disconnect(ctx context.Context) error
}
