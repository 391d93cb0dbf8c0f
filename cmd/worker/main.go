package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hrstack/authhub/internal/config"
	"github.com/hrstack/authhub/internal/db"
	"github.com/hrstack/authhub/internal/notifications"
	"github.com/hrstack/authhub/internal/observability"
	"github.com/hrstack/authhub/internal/queue/redisclient"
	"github.com/hrstack/authhub/internal/queue/worker"
	"github.com/hrstack/authhub/internal/repo/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "authhub-worker", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			sctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	jobsRepo := postgres.NewEmailJobsRepo(pool, prom)

	// Mail provider behind a circuit breaker so a dead SMTP relay fails fast
	// and the retry/backoff machinery takes over.
	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(),
		notifications.ProtectedNotifierConfig{},
	)

	var nudger worker.Nudger

	rc := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancelPing := config.WithTimeout(2 * time.Second)

	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, draining on poll interval only", "err", err)
		_ = rc.Close()
	} else {
		nudger = rc
		defer rc.Close()
	}

	cancelPing()

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  2 * time.Second,
		WorkerID:      workerID,
		ShutdownGrace: 10 * time.Second,
	}, jobsRepo, notifier, nudger, prom, log)

	// health probes on a side port
	healthSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port+1),
		Handler:           w.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := healthSrv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker starting", "worker_id", workerID, "env", cfg.Env)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	sctx, cancel := config.WithTimeout(5 * time.Second)

	_ = healthSrv.Shutdown(sctx)

	cancel()

	log.Info("worker shutdown complete")
}
