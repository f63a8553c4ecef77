// Package main is the ft-replay CLI: read a pcap, classify/partition/
// replicate its packets, and send them out through a configurable output
// backend at a configurable rate (§4.9-§4.12, §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/CESNET/ft-generator/internal/ftlog"
	"github.com/CESNET/ft-generator/internal/ftmetrics"
	"github.com/CESNET/ft-generator/internal/ratelimit"
	"github.com/CESNET/ft-generator/internal/replay/engine"
	"github.com/CESNET/ft-generator/internal/replay/plugin"
	replconfig "github.com/CESNET/ft-generator/internal/replicator/config"
)

var (
	fConfig      = flag.String("c", "", "replicator YAML config")
	fOutput      = flag.String("o", "", "output plugin spec: pluginName:key=v,key=v,... (required)")
	fPcap        = flag.String("p", "", "input pcap (required)")
	fRate        = flag.Float64("r", 0, "replay-time rate multiplier (0 disables pacing)")
	fVerbose     = flag.Int("v", 0, "log verbosity level")
	fLoops       = flag.Int("l", 1, "number of times to replay the whole capture")
	fMetricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ft-replay -c replicator.yaml -o "pluginName:key=v,..." -p in.pcap [options]`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	log := ftlog.New(os.Stderr, ftlog.ParseVerbosity(*fVerbose))

	if *fOutput == "" || *fPcap == "" {
		usage()
		os.Exit(1)
	}

	if err := run(log); err != nil {
		log.Fatal("%v", err)
	}
}

func run(log *ftlog.Logger) error {
	repCfg, err := loadReplicatorConfig(log, *fConfig)
	if err != nil {
		return err
	}

	be, err := plugin.Open(*fOutput)
	if err != nil {
		return fmt.Errorf("ft-replay: %w", err)
	}
	defer be.Close()

	f, err := os.Open(*fPcap)
	if err != nil {
		return fmt.Errorf("ft-replay: open pcap: %w", err)
	}
	defer f.Close()

	var metrics *ftmetrics.Metrics
	if *fMetricsAddr != "" {
		metrics = ftmetrics.New()
		srv := &http.Server{Addr: *fMetricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server: %v", err)
			}
		}()
		log.Info("serving metrics on %s", *fMetricsAddr)
	}

	eng, err := engine.New(log, f, be, repCfg, engine.Config{
		Loops:      *fLoops,
		Multiplier: *fRate,
		RateMode:   ratelimit.ReplayTime,
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("ft-replay: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("ft-replay: %w", err)
	}

	for i := 0; i < eng.Partitioner().QueueCount(); i++ {
		pkts, bytes := eng.Partitioner().Share(i)
		log.Info("queue %d: %d packets, %d bytes", i, pkts, bytes)
	}
	return nil
}

func loadReplicatorConfig(log *ftlog.Logger, path string) (*replconfig.Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ft-replay: read config: %w", err)
	}
	cfg, err := replconfig.Load(data)
	if err != nil {
		return nil, err
	}
	if unknown, err := replconfig.UnknownSections(data); err == nil {
		for _, k := range unknown {
			log.Warn("replicator config: unknown top-level section %q", k)
		}
	}
	return cfg, nil
}
