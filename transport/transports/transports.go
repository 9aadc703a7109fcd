// Package transports imports every built-in control transport so each
// registers itself with the default registry.
package transports

import (
	_ "github.com/drblury/lambdabridge/transport/aws"
	_ "github.com/drblury/lambdabridge/transport/channel"
	_ "github.com/drblury/lambdabridge/transport/kafka"
	_ "github.com/drblury/lambdabridge/transport/nats"
	_ "github.com/drblury/lambdabridge/transport/rabbitmq"
)
