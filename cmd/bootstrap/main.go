// Command bootstrap runs lambdabridge as a Lambda custom runtime. It binds the
// function's own Runtime API endpoint as a tenant and keeps polling until it
// receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	runtimepkg "github.com/drblury/lambdabridge/internal/runtime"
	"github.com/drblury/lambdabridge/internal/runtime/config"
	"github.com/drblury/lambdabridge/internal/runtime/dispatch"
	"github.com/drblury/lambdabridge/internal/runtime/logging"
	"github.com/drblury/lambdabridge/internal/runtime/runtimeapi"
	_ "github.com/drblury/lambdabridge/transport/transports"
)

// lambdaEnv is what the Lambda service exports to a custom runtime.
type lambdaEnv struct {
	FunctionName    string `env:"AWS_LAMBDA_FUNCTION_NAME" envDefault:"lambdabridge"`
	FunctionVersion string `env:"AWS_LAMBDA_FUNCTION_VERSION" envDefault:"$LATEST"`
	LogGroupName    string `env:"AWS_LAMBDA_LOG_GROUP_NAME"`
	LogStreamName   string `env:"AWS_LAMBDA_LOG_STREAM_NAME"`
	RuntimeAPI      string `env:"AWS_LAMBDA_RUNTIME_API"`
	RuntimeDir      string `env:"LAMBDA_RUNTIME_DIR"`
	TaskRoot        string `env:"LAMBDA_TASK_ROOT"`

	// Target picks the built-in dispatch target: "echo" or "none".
	Target string `env:"LAMBDABRIDGE_BOOTSTRAP_TARGET" envDefault:"echo"`
}

// values is the tenant configuration handed to the bind command.
func (e lambdaEnv) values() map[string]string {
	out := map[string]string{
		config.RuntimeAPIKey:          e.RuntimeAPI,
		"AWS_LAMBDA_FUNCTION_NAME":    e.FunctionName,
		"AWS_LAMBDA_FUNCTION_VERSION": e.FunctionVersion,
	}
	for k, v := range map[string]string{
		"AWS_LAMBDA_LOG_GROUP_NAME":  e.LogGroupName,
		"AWS_LAMBDA_LOG_STREAM_NAME": e.LogStreamName,
		"LAMBDA_RUNTIME_DIR":         e.RuntimeDir,
		"LAMBDA_TASK_ROOT":           e.TaskRoot,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	conf, err := config.Load()
	if err != nil {
		return err
	}
	lenv, err := env.ParseAs[lambdaEnv]()
	if err != nil {
		return fmt.Errorf("parse lambda environment: %w", err)
	}
	if lenv.RuntimeAPI == "" {
		return fmt.Errorf("%s is not set", config.RuntimeAPIKey)
	}

	log := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(conf.LogLevel)).With(logging.LogFields{
		"function": lenv.FunctionName,
		"version":  lenv.FunctionVersion,
	})

	target, err := targetByName(lenv.Target)
	if err != nil {
		reportInitError(ctx, lenv.RuntimeAPI, err)
		return err
	}

	bridge, err := runtimepkg.NewBridge(ctx, conf, log, runtimepkg.BridgeOptions{Target: target})
	if err != nil {
		reportInitError(ctx, lenv.RuntimeAPI, err)
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- bridge.Start(ctx) }()

	select {
	case <-bridge.Running():
	case err := <-errCh:
		reportInitError(ctx, lenv.RuntimeAPI, err)
		return err
	}

	if _, err := bridge.Bind(ctx, lenv.FunctionName, lenv.values()); err != nil {
		reportInitError(ctx, lenv.RuntimeAPI, err)
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runtimepkg.DefaultShutdownTimeout)
		defer cancel()
		return errors.Join(err, bridge.Close(closeCtx))
	}
	log.Info("Bootstrap ready", logging.LogFields{"tenant": lenv.FunctionName, "target": lenv.Target})

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func targetByName(name string) (dispatch.Target, error) {
	switch name {
	case "", "echo":
		return echoTarget{}, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown bootstrap target %q", name)
	}
}

func reportInitError(ctx context.Context, endpoint string, cause error) {
	client, err := runtimeapi.NewClient(endpoint, runtimeapi.WithPostTimeout(5*time.Second))
	if err != nil {
		return
	}
	_ = client.PostInitError(context.WithoutCancel(ctx), cause)
}
