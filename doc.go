// Package lambdabridge bridges the AWS Lambda Runtime API to an in-process
// dispatch target. For every bound tenant (one Runtime API endpoint) a poller
// fetches the next invocation, decides whether the payload is an ALB HTTP
// request or an opaque Lambda event, hands it to the configured Target and
// posts the outcome back to the endpoint.
//
// Tenants are bound and removed with BindActor/RemoveActor commands. The
// commands travel over a watermill control bus whose backend is chosen by
// Config.ControlTransport:
//   - channel: in-process Go channels (default)
//   - nats: NATS core subjects
//   - kafka: Kafka topics with a consumer group
//   - rabbitmq: durable AMQP fanout exchanges
//   - aws: SNS topics consumed through SQS, with LocalStack support
//
// Import github.com/drblury/lambdabridge/transport/transports (or a single
// transport package) to register the backends.
//
// A minimal embedding loads a Config, builds a Bridge, installs a Target and
// binds its tenant:
//
//	cfg, _ := lambdabridge.LoadConfig()
//	bridge, err := lambdabridge.NewBridge(ctx, cfg, logger, lambdabridge.BridgeOptions{Target: target})
//	go bridge.Start(ctx)
//	<-bridge.Running()
//	bridge.Bind(ctx, "my-function", map[string]string{lambdabridge.RuntimeAPIKey: os.Getenv("AWS_LAMBDA_RUNTIME_API")})
//
// # Observability
//
// Invocations are logged through ServiceLogger, traced with OpenTelemetry and,
// when Config.MetricsEnabled is set, counted in Prometheus collectors served on
// /metrics. Hooks add custom callbacks around each invocation.
package lambdabridge
