package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/ids"
	"github.com/drblury/lambdabridge/internal/runtime/lifecycle"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
	mdpkg "github.com/drblury/lambdabridge/internal/runtime/metadata"
)

// ErrMessageTooLarge is returned by Send when the encoded command exceeds the
// transport's message size limit.
var ErrMessageTooLarge = errors.New("control: command exceeds transport message size")

// handleCommand forwards one command to the Commander. Rejected commands are
// acknowledged; only transient failures are returned for retry.
func (s *Service) handleCommand(msg *message.Message) error {
	md := mdpkg.FromWatermill(msg.Metadata)
	fields := logging.LogFields{
		"op":         md.Operation(),
		"actor":      md.Actor(),
		"command_id": md.CommandID(),
	}

	_, err := s.commander.HandleCall(msg.Context(), md.Actor(), md.Operation(), msg.Payload)
	switch {
	case err == nil:
		s.Logger.Debug("Control command applied", fields)
		return nil
	case IsRejected(err):
		fields["reason"] = err.Error()
		fields["category"] = string(lberrors.Kind(err))
		s.Logger.Warn("Control command rejected", fields)
		return nil
	default:
		s.Logger.Error("Control command failed", err, fields)
		return err
	}
}

// IsRejected reports whether err comes from the command itself, so
// redelivering it cannot succeed.
func IsRejected(err error) bool {
	switch lberrors.Kind(err) {
	case lberrors.CategoryConfig, lberrors.CategorySerialization:
		return true
	}
	return errors.Is(err, lberrors.ErrUnsupportedOperation) ||
		errors.Is(err, lberrors.ErrPollerRunning) ||
		errors.Is(err, lberrors.ErrTenantRequired)
}

// Send publishes a command on the control topic and returns its command id.
func (s *Service) Send(ctx context.Context, op, actor string, cfg lifecycle.CapabilityConfiguration) (string, error) {
	payload, err := lifecycle.EncodeConfiguration(cfg)
	if err != nil {
		return "", &lberrors.SerializationError{Stage: lberrors.StageEncode, What: "capability configuration", Err: err}
	}
	if !s.capabilities.Fits(len(payload)) {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, len(payload), s.capabilities.MaxMessageSize)
	}

	commandID := ids.CreateULID()
	msg := message.NewMessage(commandID, payload)
	msg.Metadata = mdpkg.ToWatermill(mdpkg.Command(op, actor, commandID))
	msg.SetContext(ctx)

	if err := s.publisher.Publish(s.Conf.ControlTopic, msg); err != nil {
		return "", fmt.Errorf("publish %s command: %w", op, err)
	}
	s.Logger.Debug("Control command sent", logging.LogFields{
		"op":         op,
		"actor":      actor,
		"tenant":     cfg.Module,
		"command_id": commandID,
	})
	return commandID, nil
}

// Bind asks the service to start a poller for tenantID.
func (s *Service) Bind(ctx context.Context, tenantID string, values map[string]string) (string, error) {
	return s.Send(ctx, lifecycle.OpBindActor, lifecycle.SystemActor, lifecycle.CapabilityConfiguration{Module: tenantID, Values: values})
}

// Remove asks the service to stop the poller of tenantID.
func (s *Service) Remove(ctx context.Context, tenantID string) (string, error) {
	return s.Send(ctx, lifecycle.OpRemoveActor, lifecycle.SystemActor, lifecycle.CapabilityConfiguration{Module: tenantID})
}
