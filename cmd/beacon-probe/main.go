// Command beacon-probe checks collector connectivity and, optionally, emits
// a demo trace so a new deployment can be verified end to end.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	beacon "github.com/beaconlabs/beacon-go"
)

func main() {
	endpoint := flag.String("endpoint", "", "Collector base URL (overrides BEACON_ENDPOINT)")
	demo := flag.Bool("demo", false, "Emit a demo trace after the health check")
	timeout := flag.Duration("timeout", 10*time.Second, "Overall probe timeout")
	flag.Parse()

	cfg := beacon.LoadOrDefault()
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	client, err := beacon.New(cfg, beacon.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		log.Fatalf("Collector unreachable at %s: %v", cfg.Endpoint, err)
	}
	logger.Info("collector healthy", zap.String("endpoint", cfg.Endpoint))

	if !*demo {
		return
	}

	trace, err := client.StartTrace(beacon.TraceOptions{
		TraceType: "probe",
		Title:     "beacon-probe connectivity check",
	})
	if err != nil {
		log.Fatalf("Failed to start demo trace: %v", err)
	}

	step := trace.StartStep(beacon.StepOptions{Name: "ping"})
	trace.Log("demo trace emitted by beacon-probe")
	if err := step.Finish(map[string]any{"ok": true}, nil); err != nil {
		log.Fatalf("Failed to finish demo step: %v", err)
	}
	if err := trace.Finish(map[string]any{"ok": true}, nil); err != nil {
		log.Fatalf("Failed to finish demo trace: %v", err)
	}

	if err := client.Flush(); err != nil {
		log.Fatalf("Flush reported delivery failures: %v", err)
	}
	logger.Info("demo trace delivered", zap.String("trace_id", trace.ID()))
}
