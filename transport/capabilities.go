package transport

// Capabilities describes what a transport backend guarantees.
type Capabilities struct {
	// Name is the registered name of the transport.
	Name string

	// SupportsOrdering indicates commands on one topic arrive in publish order.
	SupportsOrdering bool

	// SupportsAck indicates the transport supports explicit acknowledgment.
	SupportsAck bool

	// SupportsNack indicates a nacked message is redelivered.
	SupportsNack bool

	// Durable indicates published commands survive a restart of the consumer.
	Durable bool

	// MaxMessageSize is the largest payload in bytes, 0 when unlimited or unknown.
	MaxMessageSize int64
}

// SupportsReliableDelivery returns true if the transport supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Fits reports whether a payload of size bytes can be published.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

// Predefined capability sets for the built-in transports.
var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	NATSCapabilities = Capabilities{
		Name:           "nats",
		SupportsAck:    true,
		MaxMessageSize: 1024 * 1024, // default server max_payload
	}

	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsAck:      true,
		Durable:          true,
		MaxMessageSize:   1024 * 1024,
	}

	RabbitMQCapabilities = Capabilities{
		Name:           "rabbitmq",
		SupportsAck:    true,
		SupportsNack:   true,
		Durable:        true,
		MaxMessageSize: 128 * 1024 * 1024,
	}

	AWSCapabilities = Capabilities{
		Name:           "aws",
		SupportsAck:    true,
		SupportsNack:   true,
		Durable:        true,
		MaxMessageSize: 256 * 1024,
	}
)
