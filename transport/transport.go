// Package transport defines the bus abstraction carrying control commands
// between hosts and lambdabridge. Each backend lives in its own sub-package
// and registers itself with the transport registry on import.
package transport

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both halves. A pair backed by the same pub/sub is closed once.
func (t Transport) Close() error {
	var errs []error
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	if t.Subscriber != nil && !sameInstance(t.Publisher, t.Subscriber) {
		errs = append(errs, t.Subscriber.Close())
	}
	return errors.Join(errs...)
}

func sameInstance(pub message.Publisher, sub message.Subscriber) bool {
	other, ok := sub.(message.Publisher)
	return ok && pub != nil && other == pub
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config exposes the settings transports read, without tying them to the
// config package.
type Config interface {
	// GetControlTransport returns the registered transport name.
	GetControlTransport() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
	GetNATSClientName() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}
