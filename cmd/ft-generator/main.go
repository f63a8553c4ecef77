// Package main is the ft-generator CLI: read a profiles CSV (and an
// optional YAML config), synthesize every biflow, and write the result as
// a pcap plus an optional report CSV (§4.7, §6).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/CESNET/ft-generator/internal/ftlog"
	"github.com/CESNET/ft-generator/internal/ftmeter"
	"github.com/CESNET/ft-generator/internal/flowmaker"
	"github.com/CESNET/ft-generator/internal/genconfig"
	"github.com/CESNET/ft-generator/internal/generator"
)

// verbosity counts repeated -v flags, matching cmd/minimega's convention
// that more -v lowers the log floor (ftlog.ParseVerbosity).
type verbosity int

func (v *verbosity) String() string     { return fmt.Sprintf("%d", *v) }
func (v *verbosity) Set(string) error   { *v++; return nil }
func (v *verbosity) IsBoolFlag() bool   { return true }

var (
	fProfiles          = flag.String("p", "", "profiles CSV (required)")
	fOutput            = flag.String("o", "", "output pcap (required)")
	fConfig            = flag.String("c", "", "generator YAML config")
	fReport            = flag.String("r", "", "report CSV output path")
	fSeed              = flag.Uint64("seed", 1, "global PRNG seed")
	fSkipUnknown       = flag.Bool("skip-unknown", false, "skip profile rows with unrecognized L3/L4 instead of failing")
	fNoDiskspaceCheck  = flag.Bool("no-diskspace-check", false, "skip the free-space preflight before writing the pcap")
	fNoCollisionCheck  = flag.Bool("no-collision-check", false, "disable flow-tuple collision detection")
	fNumWorkers        = flag.Int("workers", 4, "flow maker worker pool size")
	fQueueDepth        = flag.Int("queue-depth", flowmaker.DefaultQueueDepth, "flow maker outstanding-futures bound")
	fVerbose           verbosity
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ft-generator -p profiles.csv -o out.pcap [options]")
	flag.PrintDefaults()
}

func main() {
	flag.Var(&fVerbose, "v", "increase log verbosity (repeatable)")
	flag.Usage = usage
	flag.Parse()

	log := ftlog.New(os.Stderr, ftlog.ParseVerbosity(int(fVerbose)))

	if *fProfiles == "" || *fOutput == "" {
		usage()
		os.Exit(1)
	}

	if err := run(log); err != nil {
		log.Fatal("%v", err)
	}
}

func run(log *ftlog.Logger) error {
	cfg, err := loadConfig(*fConfig)
	if err != nil {
		return err
	}

	rows, err := loadProfiles(*fProfiles)
	if err != nil {
		return err
	}
	log.Info("loaded %d profile rows from %s", len(rows), *fProfiles)

	pool, err := generator.NewAddressPool(cfg.IPv4, cfg.IPv6, *fSeed)
	if err != nil {
		return err
	}

	opts, err := builderOptions(cfg)
	if err != nil {
		return err
	}
	builder := generator.NewBuilder(opts)

	fm := flowmaker.New(*fNumWorkers, *fQueueDepth, *fSeed, !*fNoCollisionCheck, pool.Sample, builder.Build)
	defer fm.Close()

	sink, err := ftmeter.NewPcapSink(*fOutput, *fNoDiskspaceCheck)
	if err != nil {
		return err
	}
	defer sink.Close()

	meter := ftmeter.New(log)

	gen := generator.New(log, rows, fm, meter, sink, *fQueueDepth)
	emitted, err := gen.Run()
	if err != nil {
		return fmt.Errorf("ft-generator: %w", err)
	}
	log.Info("emitted %d packets to %s", emitted, *fOutput)

	if *fReport != "" {
		if err := writeReport(meter, *fReport); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(path string) (*genconfig.Config, error) {
	if path == "" {
		return &genconfig.Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ft-generator: read config: %w", err)
	}
	return genconfig.Load(data)
}

func loadProfiles(path string) ([]genconfig.ProfileRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ft-generator: open profiles: %w", err)
	}
	defer f.Close()
	return genconfig.LoadProfiles(f, *fSkipUnknown)
}

func writeReport(meter *ftmeter.Meter, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ft-generator: create report: %w", err)
	}
	defer f.Close()
	meter.SortByStartTime()
	return meter.WriteReport(f)
}

// builderOptions translates the parsed YAML config's string-valued
// fields (percentages, durations) into the Options the Builder actually
// consumes, using genconfig's own suffix parsers.
func builderOptions(cfg *genconfig.Config) (generator.Options, error) {
	opts := generator.Options{
		Encapsulation:    cfg.Encapsulation,
		EnabledProtocols: toSet(cfg.Payload.EnabledProtocols),
		AlwaysTLSPorts:   toPortSet(cfg.Payload.TLSEncryption.AlwaysEncryptPorts),
		NeverTLSPorts:    toPortSet(cfg.Payload.TLSEncryption.NeverEncryptPorts),
		TLSOtherwiseProb: cfg.Payload.TLSEncryption.OtherwiseWithProbability,
	}

	if cfg.IPv4.FragmentationProb != "" {
		p, err := genconfig.ParsePercentOrFraction(cfg.IPv4.FragmentationProb)
		if err != nil {
			return opts, err
		}
		opts.FragProbabilityV4 = p
		opts.MinPacketSizeToFragment = uint64(cfg.IPv4.MinPacketSizeToFragment)
	}
	if cfg.IPv6.FragmentationProb != "" {
		p, err := genconfig.ParsePercentOrFraction(cfg.IPv6.FragmentationProb)
		if err != nil {
			return opts, err
		}
		opts.FragProbabilityV6 = p
	}

	if cfg.Timestamps.FlowMaxInterpacketGap != "" {
		d, err := genconfig.ParseDuration(cfg.Timestamps.FlowMaxInterpacketGap)
		if err != nil {
			return opts, err
		}
		gap := uint64(d)
		opts.MaxInterpacketGap = &gap
	}
	return opts, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

func toPortSet(ports []int) map[int]bool {
	m := make(map[int]bool, len(ports))
	for _, p := range ports {
		m[p] = true
	}
	return m
}
