package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lsuits/ues-sync/internal/handler"
	"github.com/lsuits/ues-sync/internal/models"
	"github.com/lsuits/ues-sync/internal/repository"
	"github.com/lsuits/ues-sync/internal/service"
	"github.com/lsuits/ues-sync/internal/source"
	"github.com/lsuits/ues-sync/internal/target"
	"github.com/lsuits/ues-sync/pkg/cache"
	"github.com/lsuits/ues-sync/pkg/config"
	"github.com/lsuits/ues-sync/pkg/database"
	"github.com/lsuits/ues-sync/pkg/jobs"
	"github.com/lsuits/ues-sync/pkg/logger"
	"github.com/lsuits/ues-sync/pkg/metrics"
)

func main() {
	serve := flag.Bool("serve", false, "run the ops server and background queue instead of a one-shot sync")
	force := flag.Bool("force", false, "bypass the grace-period guard for a one-shot sync")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, run guard degrades to the run table", "error", err)
		rdb = nil
	}

	var src source.RosterSource
	if cfg.Sync.Provider != "" {
		src, err = source.New(cfg.Sync.Provider)
		if err != nil {
			logr.Sugar().Fatalw("cannot build roster provider", "provider", cfg.Sync.Provider, "error", err)
		}
	}
	var tgt target.EnrollmentTarget
	if cfg.Sync.Target != "" {
		tgt, err = target.New(cfg.Sync.Target)
		if err != nil {
			logr.Sugar().Fatalw("cannot build enrollment target", "target", cfg.Sync.Target, "error", err)
		}
	}
	if src != nil && tgt == nil {
		logr.Sugar().Fatalw("SYNC_TARGET must be set when a provider is configured")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	store := repository.NewStore(db)
	semesters := repository.NewSemesterRepository(store)
	courses := repository.NewCourseRepository(store)
	sections := repository.NewSectionRepository(store)
	users := repository.NewUserRepository(store)
	enrollments := repository.NewEnrollmentRepository(store)
	errorRepo := repository.NewErrorRepository(store)
	runs := repository.NewRunRepository(store)

	diff := service.NewDiffService(enrollments, users, cfg.Users, nil, logr)
	namer := service.NewNamer(cfg.Naming)
	manifest := service.NewManifestService(sections, courses, enrollments, tgt, namer, cfg.Roles, cfg.Sync.RecoverGrades, m, logr)
	errorQueue := service.NewErrorQueueService(errorRepo, cfg.Sync.ErrorThreshold, m, logr)
	guard := service.NewGuardService(rdb, runs, cfg.Sync, logr)
	reconcile := service.NewReconcileService(src, semesters, courses, sections, diff, manifest, errorQueue, guard, cfg.Sync, m, nil, logr)

	if !*serve {
		run, err := reconcile.Run(context.Background(), *force)
		if err != nil {
			logr.Sugar().Errorw("sync failed", "error", err)
			os.Exit(1)
		}
		logr.Sugar().Infow("sync finished",
			"run_id", run.ID,
			"semesters", run.SemestersSeen,
			"sections_processed", run.SectionsProcessed,
			"sections_skipped", run.SectionsSkipped,
			"enrolls", run.EnrollsApplied,
			"unenrolls", run.UnenrollsApplied,
			"errors_queued", run.ErrorsQueued,
		)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := jobs.NewQueue("sync", func(ctx context.Context, job jobs.Job[handler.SyncJob]) error {
		switch job.Payload.Kind {
		case handler.JobRun:
			_, err := reconcile.Run(ctx, job.Payload.Force)
			return err
		case handler.JobReplay:
			record, err := errorQueue.Find(ctx, job.Payload.ErrorID)
			if err != nil {
				return err
			}
			rc := service.NewRunContext(&models.Run{ID: job.ID, StartedAt: time.Now().UTC()}, logr, nil)
			return errorQueue.Replay(ctx, rc, record, reconcile)
		default:
			return fmt.Errorf("unknown job kind %q", job.Payload.Kind)
		}
	}, jobs.QueueConfig{
		Workers:    cfg.Sync.ReplayWorkers,
		MaxRetries: cfg.Sync.ReplayRetries,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	syncHandler := handler.NewSyncHandler(runs, queue, logr)
	errorHandler := handler.NewErrorHandler(errorQueue, queue)
	metricsHandler := handler.NewMetricsHandler(registry)
	router := handler.NewRouter(cfg, syncHandler, errorHandler, metricsHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.OpsPort),
		Handler: router,
	}
	go func() {
		logr.Sugar().Infow("ops server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("ops server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("ops server shutdown", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
