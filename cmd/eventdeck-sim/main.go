// eventdeck-sim is the development event source: it serves the admin event
// stream and probe metrics endpoint, emitting synthetic probe snapshots and
// scripted service events so the dashboard can be exercised without the
// production service.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eventdeck/eventdeck/internal/httpserver"
	"github.com/eventdeck/eventdeck/internal/model"
)

func main() {
	var addr string
	var scenarioPath string
	var probeEvery time.Duration

	flag.StringVar(&addr, "addr", fmt.Sprintf("127.0.0.1:%d", model.DefaultPort), "listen address")
	flag.StringVar(&scenarioPath, "scenario", "", "YAML scenario of scripted events")
	flag.DurationVar(&probeEvery, "probe-interval", model.DefaultProbeInterval, "probe snapshot period")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	sc := defaultScenario()
	if scenarioPath != "" {
		loaded, err := loadScenario(scenarioPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", scenarioPath).Msg("scenario unusable")
		}
		sc = loaded
	}

	if err := run(addr, sc, probeEvery, log); err != nil {
		log.Fatal().Err(err).Msg("simulator stopped")
	}
}

func run(addr string, sc Scenario, probeEvery time.Duration, log zerolog.Logger) error {
	srv := httpserver.NewServer(addr, log)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()
	log.Info().Str("addr", srv.Addr()).Msg("simulator listening")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return emitProbes(ctx, srv, probeEvery) })
	for _, ev := range sc.Events {
		g.Go(func() error { return emitScripted(ctx, srv, ev) })
	}

	return g.Wait()
}

// emitProbes publishes periodic probe snapshots and keeps the one-shot
// fetch endpoint in sync with the latest one.
func emitProbes(ctx context.Context, srv *httpserver.Server, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()

	var phase float64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		phase += 0.3
		stats := syntheticStats(phase)
		srv.SetStats(stats)
		srv.Publish(model.KindProbeMetrics, stats)
	}
}

// syntheticStats drifts each resource through its badge thresholds so the
// dashboard shows all three severity bands over time.
func syntheticStats(phase float64) httpserver.ProbeStats {
	const gib = int64(1) << 30

	cpu := 55 + 44*math.Sin(phase/3)
	memTotal := 32 * gib
	memUsed := int64(float64(memTotal) * (0.55 + 0.42*math.Sin(phase/5)))
	gpuTotal := 24 * gib
	gpuUsed := int64(float64(gpuTotal) * (0.6 + 0.38*math.Sin(phase/7)))

	return httpserver.ProbeStats{
		CPU:    httpserver.CPUStats{Avg: cpu},
		Memory: httpserver.MemoryStats{Used: memUsed, Total: memTotal},
		GPUs: []httpserver.GPUStats{
			{MemUsed: gpuUsed / 2, MemTotal: gpuTotal / 2},
			{MemUsed: gpuUsed - gpuUsed/2, MemTotal: gpuTotal - gpuTotal/2},
		},
	}
}

func emitScripted(ctx context.Context, srv *httpserver.Server, ev ScriptedEvent) error {
	t := time.NewTicker(ev.Interval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			srv.Publish(ev.Kind, ev.Payload)
		}
	}
}
