package control

import (
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/lambdabridge/internal/runtime/ids"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
	mdpkg "github.com/drblury/lambdabridge/internal/runtime/metadata"
)

const (
	metricsNamespace = "lambdabridge"
	tracerName       = "github.com/drblury/lambdabridge/control"

	// CorrelationIDKey is set on every consumed command that lacks one.
	CorrelationIDKey = "correlation_id"
)

// MiddlewareBuilder constructs a handler middleware using the provided service instance.
type MiddlewareBuilder func(*Service) (message.HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware should be registered on a Service router.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// RetryConfig customises the retry middleware behaviour. Only errors the
// handler reports as transient reach it.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	return cfg
}

// DefaultMiddlewares returns the chain registered by NewService. Earlier
// entries wrap later ones.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		CorrelationIDMiddleware(),
		LogMessagesMiddleware(nil),
		TracerMiddleware(),
		MetricsMiddleware(),
		PoisonQueueMiddleware(),
		RetryMiddleware(),
		RecovererMiddleware(),
	}
}

// MetricsMiddleware adds watermill's Prometheus router metrics and serves
// /metrics when metrics are enabled.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if !s.Conf.MetricsEnabled {
				return nil, nil
			}

			metricsBuilder := metrics.NewPrometheusMetricsBuilder(
				s.registerer,
				metricsNamespace,
				"control",
			)
			metricsBuilder.AddPrometheusRouterMetrics(s.router)

			publisher, err := metricsBuilder.DecoratePublisher(s.publisher)
			if err != nil {
				return nil, err
			}
			s.publisher = publisher

			if s.pollerMetrics != nil {
				if err := s.pollerMetrics.Register(); err != nil {
					return nil, err
				}
			}
			if s.Conf.MetricsPort > 0 {
				s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
			}

			// AddPrometheusRouterMetrics already installed the router middleware.
			return nil, nil
		},
	}
}

// CorrelationIDMiddleware ensures each processed command carries a correlation identifier.
func CorrelationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "correlation_id",
		Middleware: correlationIDMiddleware,
	}
}

// LogMessagesMiddleware logs the metadata and payload of handled commands.
func LogMessagesMiddleware(logger logging.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = s.Logger
			}
			if l == nil {
				return nil, errors.New("log messages middleware requires a logger")
			}
			return logMessagesMiddleware(l), nil
		},
	}
}

// TracerMiddleware wraps handler execution in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			return tracerMiddleware(otel.Tracer(tracerName)), nil
		},
	}
}

// PoisonQueueMiddleware moves commands that still fail after retries to
// Config.PoisonTopic, so they are acknowledged instead of redelivered forever.
func PoisonQueueMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "poison_queue",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if s.Conf.PoisonTopic == "" {
				return nil, nil
			}
			return middleware.PoisonQueue(s.transport.Publisher, s.Conf.PoisonTopic)
		},
	}
}

// RetryMiddleware retries transient handler failures with exponential backoff.
func RetryMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "retry",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			return middleware.Retry{
				MaxRetries:      s.retry.MaxRetries,
				InitialInterval: s.retry.InitialInterval,
				MaxInterval:     s.retry.MaxInterval,
				Multiplier:      2,
				Logger:          logging.NewWatermillAdapter(s.Logger),
			}.Middleware, nil
		},
	}
}

// RecovererMiddleware converts handler panics into errors.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

// RegisterMiddleware attaches the supplied middleware to the router.
func (s *Service) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if s.router == nil {
		return errors.New("router is not initialised")
	}

	var mw message.HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(s)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	s.router.AddMiddleware(mw)
	return nil
}

func correlationIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		if msg.Metadata.Get(CorrelationIDKey) == "" {
			msg.Metadata.Set(CorrelationIDKey, ids.CreateULID())
		}
		return h(msg)
	}
}

func logMessagesMiddleware(logger logging.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger.Debug("Processing control command", logging.LogFields{
				"message_uuid": msg.UUID,
				"payload":      string(msg.Payload),
				"metadata":     msg.Metadata,
			})
			return h(msg)
		}
	}
}

func tracerMiddleware(tracer trace.Tracer) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			md := mdpkg.FromWatermill(msg.Metadata)
			ctx, span := tracer.Start(msg.Context(), "lambdabridge.control",
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(
					attribute.String("message.uuid", msg.UUID),
					attribute.String("lambdabridge.op", md.Operation()),
					attribute.String("lambdabridge.actor", md.Actor()),
				),
			)
			defer span.End()
			msg.SetContext(ctx)

			produced, err := h(msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return produced, err
		}
	}
}
