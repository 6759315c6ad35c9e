package cli

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/reelvault/worker/internal/config"
	"github.com/reelvault/worker/internal/httpclient"
	"github.com/reelvault/worker/internal/jobrunner"
	"github.com/reelvault/worker/internal/jobstore"
	"github.com/reelvault/worker/internal/metrics"
	"github.com/reelvault/worker/internal/muxer"
	"github.com/reelvault/worker/internal/queue"
	"github.com/reelvault/worker/internal/queueloop"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the queue consumer loop (C6): block on the job queue and process jobs as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWorker(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	store, err := jobstore.Open(cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("cli: open job store: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.QueueDSN)
	if err != nil {
		return fmt.Errorf("cli: parse queue DSN: %w", err)
	}
	q := queue.NewRedisQueue(redis.NewClient(redisOpts), "reelvault:jobs")

	standard := httpclient.Standard(httpclient.StandardConfig{})
	impersonating := httpclient.Impersonating(httpclient.ImpersonatingConfig{})

	mux, err := muxer.New("")
	if err != nil {
		return fmt.Errorf("cli: locate muxer binary: %w", err)
	}
	probe, err := muxer.NewProbe("")
	if err != nil {
		log.Printf("[cli] duration probe unavailable: %v", err)
		probe = nil
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	runner := &jobrunner.Runner{
		Store:         store,
		Standard:      standard,
		Impersonating: impersonating,
		Muxer:         mux,
		Probe:         probe,
		Config: jobrunner.Config{
			SegmentWorkers:   cfg.MaxDownloadWorkers,
			FFmpegThreads:    cfg.FFmpegThreads,
			MaxRetryAttempts: cfg.MaxRetryAttempts,
			AllowReencode:    cfg.AllowReencode,
			SkipTSValidation: cfg.SkipTSValidation,
			OutputDir:        cfg.OutputDir,
		},
	}

	loop := &queueloop.Loop{Queue: q, Store: store, Runner: runner}

	admin := queueloop.NewAdminServer(registry)
	ln, err := net.Listen("tcp", cfg.AdminAddr)
	if err != nil {
		return fmt.Errorf("cli: bind admin address %s: %w", cfg.AdminAddr, err)
	}
	go func() {
		log.Printf("[cli] admin endpoint listening on %s", cfg.AdminAddr)
		if err := admin.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[cli] admin server stopped: %v", err)
		}
	}()
	defer admin.Close()

	return loop.Run(ctx)
}
