package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dittobus/busrpc/internal/logger"
	"github.com/dittobus/busrpc/internal/rpcregistry"
	"github.com/dittobus/busrpc/internal/rpcwire"
	"github.com/dittobus/busrpc/internal/telemetry"
	"github.com/dittobus/busrpc/pkg/bus"
	"github.com/dittobus/busrpc/pkg/bus/loopbus"
	appconfig "github.com/dittobus/busrpc/pkg/config"
	metricsprom "github.com/dittobus/busrpc/pkg/metrics/prometheus"
	"github.com/dittobus/busrpc/pkg/rpcclient"
	"github.com/dittobus/busrpc/pkg/rpcerrors"
	"github.com/dittobus/busrpc/pkg/rpcserver"
)

// addFunctionID is the one demo RPC function busrpcd registers: it adds
// two INT32 arguments and returns their sum.
const addFunctionID uint32 = 1

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a demo server and client over an in-process bus",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	loggerCfg := logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "busrpc",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "busrpc",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	var clientMetrics *metricsprom.ClientMetrics
	var serverMetrics *metricsprom.ServerMetrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		clientMetrics = metricsprom.NewClientMetrics(reg)
		serverMetrics = metricsprom.NewServerMetrics(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer metricsSrv.Close()
		logger.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	registry := rpcregistry.NewRegistry()
	serverEngine := rpcserver.NewEngine(nil, registry, rpcserver.Config{
		PendingCalls: cfg.Server.PendingCalls,
		WorkerCount:  cfg.Server.WorkerCount,
	}, serverMetrics)

	err = serverEngine.RegisterHandler(addFunctionID,
		[]rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32},
		[]rpcwire.TypeTag{rpcwire.Int32},
		func(_ context.Context, _ bus.Address, _ uint32, callArgs []rpcwire.Argument) ([]rpcwire.Argument, rpcerrors.Code) {
			a, errA := callArgs[0].Int32()
			b, errB := callArgs[1].Int32()
			if errA != nil || errB != nil {
				return nil, rpcerrors.InvalidArgument
			}
			return []rpcwire.Argument{rpcwire.NewInt32(a + b)}, rpcerrors.OK
		})
	if err != nil {
		return fmt.Errorf("failed to register demo handler: %w", err)
	}

	clientEngine := rpcclient.NewEngine(nil, "", rpcclient.Config{
		PendingCalls:   cfg.Client.PendingCalls,
		DefaultTimeout: cfg.Client.DefaultTimeout,
	}, clientMetrics)
	err = clientEngine.Register(addFunctionID,
		[]rpcwire.TypeTag{rpcwire.Int32, rpcwire.Int32},
		[]rpcwire.TypeTag{rpcwire.Int32})
	if err != nil {
		return fmt.Errorf("failed to register demo function on client: %w", err)
	}

	clientSide, serverSide := loopbus.NewPair(clientEngine, serverEngine)
	serverEngine.SetBus(serverSide)
	clientEngine.Rebind(clientSide, clientSide.ServerAddr())
	clientSide.Start()

	logger.Info("busrpcd serving", "worker_count", cfg.Server.WorkerCount, "pending_calls", cfg.Server.PendingCalls)

	callCtx, callCancel := context.WithTimeout(ctx, cfg.Client.DefaultTimeout)
	reply, err := clientEngine.Call(callCtx, addFunctionID, cfg.Client.DefaultTimeout, false,
		[]rpcwire.Argument{rpcwire.NewInt32(2), rpcwire.NewInt32(40)})
	callCancel()
	if err != nil {
		logger.Error("demo call failed", "error", err)
	} else {
		sum, _ := mustArg(reply, 0).Int32()
		logger.Info("demo call succeeded", "function_id", addFunctionID, "result", sum)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("busrpcd is running, press Ctrl+C to stop")
	<-sigChan
	logger.Info("shutdown signal received")
	cancel()
	return nil
}

func mustArg(pkt *rpcwire.Packet, i int) *rpcwire.Argument {
	arg, err := pkt.Arg(i)
	if err != nil {
		return &rpcwire.Argument{}
	}
	return arg
}
