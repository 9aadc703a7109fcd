package lambdabridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	raw, err := Marshal(payload)
	if err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if err := Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestCommandEncodingExport(t *testing.T) {
	raw, err := EncodeCommand(CapabilityConfiguration{Module: "fn", Values: map[string]string{RuntimeAPIKey: "127.0.0.1:9001"}})
	if err != nil {
		t.Fatalf("encode command: %v", err)
	}
	var decoded CapabilityConfiguration
	if err := Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if decoded.Module != "fn" || decoded.Values[RuntimeAPIKey] != "127.0.0.1:9001" {
		t.Fatalf("unexpected command %#v", decoded)
	}
}

func TestManagerExportHandlesCalls(t *testing.T) {
	manager := NewManager(ManagerOptions{})
	if manager.CapabilityID() != CapabilityID {
		t.Fatalf("expected capability id %q, got %q", CapabilityID, manager.CapabilityID())
	}

	_, err := manager.HandleCall(context.Background(), "guest", OpBindActor, nil)
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported operation, got %v", err)
	}
	if !IsRejected(err) {
		t.Fatal("expected unsupported operation to be rejected")
	}
}

func TestNewBridgeRequiresConfig(t *testing.T) {
	logger := NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := NewBridge(context.Background(), nil, logger, BridgeOptions{}); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}
}

func TestErrorKindExport(t *testing.T) {
	if got := ErrorKind(&DuplicateDispatchError{RequestID: "r1"}); got != "duplicate" {
		t.Fatalf("expected duplicate category, got %q", got)
	}
	if got := ErrorKind(ErrNoTarget); got != "target" {
		t.Fatalf("expected target category, got %q", got)
	}
}

func TestTraceIDFromContextExport(t *testing.T) {
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}

func TestLogLevelExport(t *testing.T) {
	if ParseLogLevel("warn") != slog.LevelWarn {
		t.Fatal("expected warn level")
	}
}
