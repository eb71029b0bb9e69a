// Command worker runs the confidential genetic-analysis worker: it polls
// the analysis contract for pending requests, computes pairwise relatedness
// inside the enclave and submits results through the host runtime.
//
// Exit codes: 0 on clean shutdown, 2 on a configuration error at startup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/worldtree/genetics-worker/analysis"
	"github.com/worldtree/genetics-worker/config"
	"github.com/worldtree/genetics-worker/contract"
	"github.com/worldtree/genetics-worker/engine/api"
	"github.com/worldtree/genetics-worker/engine/processor"
	"github.com/worldtree/genetics-worker/module/lifecycle"
	"github.com/worldtree/genetics-worker/module/metrics"
	"github.com/worldtree/genetics-worker/rofl"
)

const startupProbeTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}
	log.Info().
		Str("contract", cfg.ContractAddress.Hex()).
		Str("host_socket", cfg.HostSocketPath).
		Dur("poll_interval", cfg.PollInterval).
		Int("max_parallel", cfg.MaxParallel).
		Msg("starting genetics worker")

	registry := prometheus.NewRegistry()
	collector := metrics.NewWorkerCollector(registry)

	hostCfg := rofl.Config{
		SocketPath:       cfg.HostSocketPath,
		CallMethod:       cfg.HostCallMethod,
		SubmitMethod:     cfg.HostSubmitMethod,
		CallTimeout:      cfg.CallTimeout,
		MaxResponseBytes: rofl.DefaultMaxResponseBytes,
		GasLimit:         cfg.HostGasLimit,
		StripHexPrefix:   cfg.HostStripHexPrefix,
	}
	host := rofl.NewClient(log, collector, hostCfg)

	// reachability is probed but never fatal: the poll loop backs off until
	// the host socket appears
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), startupProbeTimeout)
	if err := host.Probe(probeCtx); err != nil {
		log.Warn().Err(err).Msg("host socket not reachable yet, the poll loop will keep retrying")
	}
	cancelProbe()

	worldtree := contract.NewWorldtree(log, host, cfg.ContractAddress)
	engine := analysis.NewEngine(log, analysis.DefaultConfig())

	var tips processor.TipsProvider = processor.NoopTips{}
	if cfg.EnableTips {
		// the tips adjunct is feature-flagged but not shipped with the
		// worker; the flag keeps deployments forward-compatible
		log.Info().Msg("tips adjunct enabled with no provider configured, using none")
	}

	proc := processor.New(log, collector, worldtree, engine, tips, processor.Config{
		PollInterval:     cfg.PollInterval,
		PollBackoffMax:   5 * time.Minute,
		RetryMax:         cfg.RetryMax,
		RetryBackoffBase: cfg.RetryBackoffBase,
		CallTimeout:      cfg.CallTimeout,
		RequestDeadline:  cfg.RequestDeadline,
		MaxParallel:      cfg.MaxParallel,
		ShutdownGrace:    cfg.ShutdownGrace,
	})
	server := api.NewServer(log, api.Config{
		ListenAddr:    cfg.APIListenAddr,
		EnableAnalyze: cfg.EnableManualAnalyze,
	}, cfg.ContractAddress.Hex(), proc.Results(), engine, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group := lifecycle.NewGroup(log, proc, server)
	group.Start(ctx)

	go func() {
		select {
		case <-group.Ready():
			log.Info().Msg("worker startup complete")
		case <-ctx.Done():
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-group.Done():
		// still a graceful stop: a single failing worker must not turn into
		// a non-zero exit, the supervisor restarts on 0
		if err := group.Err(); err != nil {
			log.Error().Err(err).Msg("worker failed, shutting down")
		}
	}
	cancel()

	select {
	case <-group.Done():
		log.Info().Msg("worker shutdown complete")
	case <-time.After(cfg.ShutdownGrace + 15*time.Second):
		log.Warn().Msg("workers did not shut down within the grace period")
	}
	return 0
}

// applyFlags overlays command-line flags on the environment-derived
// configuration. Flags mirror the most commonly overridden variables.
func applyFlags(cfg *config.Config) {
	contractAddr := pflag.String("contract-address", cfg.ContractAddress.Hex(), "address of the analysis contract")
	pflag.StringVar(&cfg.HostSocketPath, "host-socket", cfg.HostSocketPath, "path of the host runtime unix socket")
	pflag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "period of the pending-request poll")
	pflag.IntVar(&cfg.MaxParallel, "max-parallel", cfg.MaxParallel, "number of requests analyzed concurrently")
	pflag.StringVar(&cfg.APIListenAddr, "api-addr", cfg.APIListenAddr, "listen address of the local status api")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace|debug|info|warn|error)")
	pflag.Parse()

	if pflag.CommandLine.Changed("contract-address") {
		cfg.ContractAddress = common.HexToAddress(*contractAddr)
	}
}

func buildLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("%s: %w", config.EnvLogLevel, err)
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger(), nil
}
