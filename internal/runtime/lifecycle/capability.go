package lifecycle

import (
	"context"
	"fmt"

	lberrors "github.com/drblury/lambdabridge/internal/runtime/errors"
	"github.com/drblury/lambdabridge/internal/runtime/jsoncodec"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
)

const (
	// CapabilityID identifies the provider to the host.
	CapabilityID = "awslambda:runtime"

	// OpBindActor starts a tenant's poller.
	OpBindActor = "BindActor"
	// OpRemoveActor stops a tenant's poller.
	OpRemoveActor = "RemoveActor"

	// SystemActor is the only caller allowed to bind and remove tenants.
	SystemActor = "system"

	providerName = "lambdabridge AWS Lambda runtime provider"
)

// CapabilityConfiguration is the payload of BindActor and RemoveActor.
type CapabilityConfiguration struct {
	Module string            `json:"module"`
	Values map[string]string `json:"values,omitempty"`
}

// CapabilityID returns the capability id in namespace:id form.
func (m *Manager) CapabilityID() string { return CapabilityID }

// Name returns a human readable name of the provider.
func (m *Manager) Name() string { return providerName }

// HandleCall executes a host command. BindActor and RemoveActor are accepted
// from SystemActor only; anything else yields ErrUnsupportedOperation.
func (m *Manager) HandleCall(ctx context.Context, actor, op string, msg []byte) ([]byte, error) {
	m.logger.Info("Handling call", logging.LogFields{"op": op, "actor": actor})

	switch {
	case op == OpBindActor && actor == SystemActor:
		cfg, err := decodeConfiguration(msg)
		if err != nil {
			return nil, err
		}
		if err := m.Start(ctx, cfg.Module, cfg.Values); err != nil {
			return nil, err
		}
	case op == OpRemoveActor && actor == SystemActor:
		cfg, err := decodeConfiguration(msg)
		if err != nil {
			return nil, err
		}
		if err := m.Stop(cfg.Module); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", lberrors.ErrUnsupportedOperation, op)
	}

	return []byte{}, nil
}

func decodeConfiguration(msg []byte) (CapabilityConfiguration, error) {
	var cfg CapabilityConfiguration
	if err := jsoncodec.Unmarshal(msg, &cfg); err != nil {
		return cfg, &lberrors.SerializationError{Stage: lberrors.StageDecode, What: "capability configuration", Err: err}
	}
	if cfg.Module == "" {
		return cfg, lberrors.ErrTenantRequired
	}
	return cfg, nil
}

// EncodeConfiguration renders cfg as a HandleCall payload.
func EncodeConfiguration(cfg CapabilityConfiguration) ([]byte, error) {
	return jsoncodec.Marshal(cfg)
}
