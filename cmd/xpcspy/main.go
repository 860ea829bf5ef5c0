// xpcspy prints XPC messages intercepted by an injected agent, correlating the
// agent's symbol and data notifications into one record per call.
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mrzor/xpcspy/internal/attributes"
	"github.com/mrzor/xpcspy/internal/config"
	"github.com/mrzor/xpcspy/internal/conninfo"
	"github.com/mrzor/xpcspy/internal/connstats"
	"github.com/mrzor/xpcspy/internal/correlator"
	"github.com/mrzor/xpcspy/internal/decoder"
	"github.com/mrzor/xpcspy/internal/eventprocessor"
	"github.com/mrzor/xpcspy/internal/eventstream"
	"github.com/mrzor/xpcspy/internal/filter"
	"github.com/mrzor/xpcspy/internal/metrics"
	"github.com/mrzor/xpcspy/internal/otel"
	"github.com/mrzor/xpcspy/internal/output"
	"github.com/mrzor/xpcspy/internal/timesync"
	"github.com/mrzor/xpcspy/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
)

//go:embed LICENSE
var licenseText string

// Version information injected by GoReleaser at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// setupOTEL initializes the OTEL provider and returns a tracer and cleanup function.
func setupOTEL(versionInfo string) (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}

	tp, err := otel.InitProvider(otelCfg, versionInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("ABORT: failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			log.Printf("Error shutting down OTEL provider: %v", err)
		}
	}

	return tp.Tracer("xpcspy"), cleanup, nil
}

// setupDecoders registers the built-in property list decoder and, when
// configured, the external decoder command for its tags. Without a command
// those tags are left unregistered, so their payloads pass through raw.
func setupDecoders(envCfg *config.EnvConfig) (*decoder.Registry, error) {
	registry := decoder.NewRegistry()
	registry.Register("bplist00", decoder.WithTimeout(decoder.PlistDecoder{}, envCfg.DecodeTimeout))

	if envCfg.DecoderCommand == "" {
		return registry, nil
	}

	cmdDecoder, err := decoder.NewCommandDecoder(envCfg.DecoderCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid XPCSPY_DECODER_COMMAND: %w", err)
	}
	for _, tag := range envCfg.DecoderTags {
		registry.Register(tag, decoder.WithTimeout(cmdDecoder, envCfg.DecodeTimeout))
	}
	return registry, nil
}

// setupOutputs builds one handler per requested output format.
// The returned cleanup closes every formatter and the OTEL provider.
func setupOutputs(cfg *config.Config, resolver *conninfo.Resolver, converter *timesync.Converter) (*output.MultiHandler, func(), error) {
	handlers := output.NewMultiHandler()
	cleanupOTEL := func() {}

	var otelFormatter *output.OTELFormatter
	if cfg.HasOutput(config.OutputOTEL) {
		opts, err := otelOptions(cfg)
		if err != nil {
			return nil, nil, err
		}
		tracer, cleanup, err := setupOTEL(fmt.Sprintf("%s (%s)", version, commit))
		if err != nil {
			return nil, nil, err
		}
		cleanupOTEL = cleanup
		otelFormatter = output.NewOTELFormatter(tracer, resolver, converter, opts)
	}

	for _, format := range cfg.Outputs {
		switch format {
		case config.OutputText:
			handlers.Add(output.NewTextFormatter(os.Stdout, converter, cfg.Timestamp))
		case config.OutputJSON:
			handlers.Add(output.NewJSONFormatter(os.Stdout, output.NewBuilder(resolver, converter, cfg.Timestamp)))
		case config.OutputYAML:
			handlers.Add(output.NewYAMLFormatter(os.Stdout, output.NewBuilder(resolver, converter, cfg.Timestamp)))
		case config.OutputOTEL:
			handlers.Add(otelFormatter)
		}
	}

	cleanup := func() {
		if err := handlers.Close(); err != nil {
			log.Printf("Error closing outputs: %v", err)
		}
		cleanupOTEL()
	}
	return handlers, cleanup, nil
}

func otelOptions(cfg *config.Config) (output.OTELOptions, error) {
	attrs, err := attributes.NewEvaluator(cfg.CustomAttributes)
	if err != nil {
		return output.OTELOptions{}, fmt.Errorf("failed to create attribute evaluator: %w", err)
	}
	traceID, err := attributes.NewTraceIDEvaluator(cfg.TraceID)
	if err != nil {
		return output.OTELOptions{}, err
	}
	parentID, err := attributes.NewParentIDEvaluator(cfg.ParentID)
	if err != nil {
		return output.OTELOptions{}, err
	}
	return output.OTELOptions{Attributes: attrs, TraceID: traceID, ParentID: parentID}, nil
}

// setupMetrics registers pipeline and per-service metrics and, when addr is
// set, serves them over HTTP.
func setupMetrics(addr string, stats *connstats.Manager, logger *slog.Logger) (*metrics.Metrics, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		connstats.NewExporter(stats),
	)

	m, err := metrics.New(reg)
	if err != nil {
		return nil, nil, err
	}
	if addr == "" {
		return m, func() {}, nil
	}

	server := metrics.NewServer(addr, reg, logger)
	if err := server.Start(); err != nil {
		return nil, nil, err
	}
	log.Printf("Serving metrics on http://%s/metrics", server.Addr())

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Printf("Error stopping metrics server: %v", err)
		}
	}
	return m, cleanup, nil
}

// printSummary logs the busiest services once the stream has ended.
func printSummary(stats *connstats.Manager, resolver *conninfo.Resolver, streamStats eventstream.Stats) {
	log.Printf("Read %d notifications (%d malformed), emitted %d records over %d connection descriptors",
		streamStats.Lines, streamStats.Malformed, stats.Total(), resolver.Cached())

	services := stats.Services()
	if len(services) > 10 {
		services = services[:10]
	}
	for _, s := range services {
		log.Printf("  %-48s %6d records, %d incomplete", s.Service, s.Records, s.Sentinels)
	}
}

func run() error {
	envCfg, err := config.ParseEnvConfig()
	if err != nil {
		return err
	}

	cfg, err := config.ParseArgs(os.Args, envCfg)
	if errors.Is(err, config.ErrHelp) {
		fmt.Println(config.Usage(os.Args[0]))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w\n\n%s", err, config.Usage(os.Args[0]))
	}

	if cfg.ShowVersion {
		fmt.Printf("xpcspy %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}
	if cfg.ShowLicense {
		fmt.Print(licenseText)
		return nil
	}

	level, err := envCfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	log.Printf("Starting xpcspy %s (commit: %s, built: %s)", version, commit, date)

	converter, err := timesync.NewConverter(envCfg.Timezone)
	if err != nil {
		return fmt.Errorf("failed to create time converter: %w", err)
	}

	registry, err := setupDecoders(envCfg)
	if err != nil {
		return err
	}
	if cfg.Parse {
		log.Printf("Decoding payload tags: %s", strings.Join(registry.Tags(), ", "))
		if envCfg.DecoderCommand == "" {
			log.Printf("Warning: XPCSPY_DECODER_COMMAND is not set, %s payloads are printed undecoded",
				strings.Join(envCfg.DecoderTags, ", "))
		}
	}

	symbolFilter, err := filter.New(cfg.Filters)
	if err != nil {
		return err
	}
	if patterns := symbolFilter.Patterns(); len(patterns) > 0 {
		log.Printf("Filtering symbols: %s", strings.Join(patterns, ", "))
	}

	resolver := conninfo.New()
	stats := connstats.NewManager()

	m, cleanupMetrics, err := setupMetrics(envCfg.MetricsAddr, stats, logger)
	if err != nil {
		return err
	}
	defer cleanupMetrics()

	handlers, cleanupOutputs, err := setupOutputs(cfg, resolver, converter)
	if err != nil {
		return err
	}
	defer cleanupOutputs()
	handlers.Add(connstats.NewCollector(stats, resolver))

	processor := eventprocessor.NewProcessor(correlator.NewBuffer(envCfg.MaxPending), handlers, eventprocessor.Options{
		Parse:    cfg.Parse,
		Decoders: registry,
		Filter:   symbolFilter,
		Status: eventprocessor.StatusFunc(func(state eventprocessor.State) {
			if state == eventprocessor.StateRunning {
				log.Println("Hooks installed, intercepting messages...")
			}
		}),
		Metrics: m,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := transport.Open(ctx, cfg.Input, cfg.Follow)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Printf("Error closing input: %v", err)
		}
	}()

	stream := eventstream.New(source, processor, eventstream.Options{
		PendingTimeout: envCfg.PendingTimeout,
		ExpireInterval: envCfg.ExpireInterval,
		Logger:         logger,
	})

	log.Println("Installing hooks...")
	if err := stream.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			log.Printf("Error stopping stream: %v", err)
		}
	}()

	select {
	case <-stream.Done():
	case <-ctx.Done():
		log.Println("Received signal, terminating...")
	}
	streamErr := stream.Wait()
	if ctx.Err() != nil {
		// The loop has exited, so the processor has no other owner.
		if err := processor.Drain(context.Background()); err != nil {
			slog.Debug("draining pending records", "error", err)
		}
	}
	printSummary(stats, resolver, stream.Stats())

	return streamErr
}
