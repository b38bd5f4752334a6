package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	_ "github.com/KimMachineGun/automemlimit/memlimit" // sets GOMEMLIMIT from the container/cgroup limit, as a side effect of import
)

var (
	serveAddr     string
	serveTickCron string
)

// serveCmd runs a long-lived instance behind a Prometheus metrics
// endpoint, with a cron-driven "host tick" standing in for the kind
// of periodic interrupt-checkpoint callback a real embedded host
// would drive. The oklog/run group coordinates the metrics server,
// the ticker and the signal handler as one actor group with unified
// shutdown.
var serveCmd = &cobra.Command{
	Use:   "serve <file.js>",
	Short: "Load a script once and keep its engine alive behind a metrics endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(args[0])
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", ":9477", "address to serve /metrics on")
	serveCmd.Flags().StringVar(&serveTickCron, "tick", "@every 1m", "cron schedule for the host tick")
}

var (
	cellsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ejs",
		Name:      "pool_cells_in_use",
		Help:      "Cells currently allocated out of the engine's pool.",
	})
	cellsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ejs",
		Name:      "pool_cells_total",
		Help:      "Total cell capacity of the engine's pool.",
	})
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ejs",
		Name:      "host_ticks_total",
		Help:      "Number of host-tick callbacks delivered to the engine.",
	})
	poolFull = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ejs",
		Name:      "pool_full",
		Help:      "1 if the engine's pool has no free cells left, else 0.",
	})
	poolOOM = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ejs",
		Name:      "pool_out_of_memory",
		Help:      "1 once an allocation has failed even after GC and the pressure callback, else 0.",
	})
)

func runServe(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	e := newEngineFromFlags()
	e.SetPrintHook(func(s string) { fmt.Print(s) })
	if _, err := e.Exec(string(src)); err != nil {
		fmt.Fprintf(os.Stderr, "Uncaught %s\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group

	// Metrics HTTP server.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: serveAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Add(func() error {
		return srv.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	// Cron-driven host tick, refreshing the pool gauges and counting
	// ticks delivered — the periodic poll a long-running host drives
	// against its engine.
	c := cron.New()
	_, err = c.AddFunc(serveTickCron, func() {
		cellsInUse.Set(float64(e.MemoryUsage()))
		cellsTotal.Set(float64(e.MemoryTotal()))
		if e.IsFull() {
			poolFull.Set(1)
		} else {
			poolFull.Set(0)
		}
		if e.OutOfMemory() {
			poolOOM.Set(1)
		} else {
			poolOOM.Set(0)
		}
		ticksTotal.Inc()
	})
	if err != nil {
		return fmt.Errorf("invalid --tick schedule: %w", err)
	}
	cronCtx, cronCancel := context.WithCancel(ctx)
	g.Add(func() error {
		c.Start()
		<-cronCtx.Done()
		<-c.Stop().Done()
		return nil
	}, func(error) {
		cronCancel()
	})

	// Signal handling, the third actor in the group.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sigCtx, sigCancel := context.WithCancel(ctx)
	g.Add(func() error {
		select {
		case <-sigCh:
			return nil
		case <-sigCtx.Done():
			return nil
		}
	}, func(error) {
		sigCancel()
	})

	fmt.Fprintf(os.Stderr, "serving %s metrics on %s\n", path, serveAddr)
	return g.Run()
}
