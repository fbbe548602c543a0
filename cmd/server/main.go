package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skrivenk/runcoach/internal/api"
	"github.com/skrivenk/runcoach/internal/coach"
	"github.com/skrivenk/runcoach/internal/config"
	"github.com/skrivenk/runcoach/internal/planner"
	"github.com/skrivenk/runcoach/internal/repository"
	"github.com/skrivenk/runcoach/internal/repository/memory"
	mongorepo "github.com/skrivenk/runcoach/internal/repository/mongo"
	"github.com/skrivenk/runcoach/internal/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// repos bundles the persistence surface so the two backends wire identically.
type repos struct {
	plans       repository.PlanRepository
	baselines   repository.BaselineRunRepository
	workouts    repository.WorkoutVersionRepository
	constraints repository.ConstraintRepository
	snapshots   repository.SnapshotRepository
	usage       repository.UsageLogRepository
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Info("Starting RunCoach server...")

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.WithError(err).Fatal("could not load config")
	}

	var (
		r          repos
		disconnect func()
	)
	switch cfg.Database.Driver {
	case "memory":
		log.Info("Using in-memory store, nothing will be persisted")
		store := memory.NewStore()
		r = repos{
			plans:       memory.NewPlanRepository(store),
			baselines:   memory.NewBaselineRunRepository(store),
			workouts:    memory.NewWorkoutVersionRepository(store),
			constraints: memory.NewConstraintRepository(store),
			snapshots:   memory.NewSnapshotRepository(store),
			usage:       memory.NewUsageLogRepository(store),
		}
		disconnect = func() {}
	case "mongo":
		dbClient, err := mongorepo.ConnectDB(cfg.Database.URI)
		if err != nil {
			log.WithError(err).Fatal("could not connect to MongoDB")
		}
		disconnect = func() {
			log.Info("Disconnecting MongoDB...")
			if err := mongorepo.DisconnectDB(dbClient); err != nil {
				log.WithError(err).Error("failed to disconnect MongoDB")
			}
		}
		appDB := dbClient.Database(cfg.Database.Name)
		log.WithField("database", cfg.Database.Name).Info("Database connection established")

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()
			mongorepo.EnsurePlanIndexes(ctx, appDB.Collection("plans"))
			mongorepo.EnsureWorkoutVersionIndexes(ctx, appDB.Collection("workout_versions"))
			mongorepo.EnsureBaselineRunIndexes(ctx, appDB.Collection("baseline_runs"))
			mongorepo.EnsureConstraintIndexes(ctx, appDB.Collection("plan_constraints"))
			mongorepo.EnsureSnapshotIndexes(ctx, appDB.Collection("status_snapshots"))
			log.Info("Index creation process completed")
		}()

		r = repos{
			plans:       mongorepo.NewMongoPlanRepository(appDB),
			baselines:   mongorepo.NewMongoBaselineRunRepository(appDB),
			workouts:    mongorepo.NewMongoWorkoutVersionRepository(appDB),
			constraints: mongorepo.NewMongoConstraintRepository(appDB),
			snapshots:   mongorepo.NewMongoSnapshotRepository(appDB),
			usage:       mongorepo.NewMongoUsageLogRepository(appDB),
		}
	default:
		log.Fatalf("unknown database driver %q", cfg.Database.Driver)
	}
	defer disconnect()

	policy := planner.DefaultPolicy()
	if cfg.Planner.RecoveryWeekPeriod > 0 {
		policy.RecoveryWeekPeriod = cfg.Planner.RecoveryWeekPeriod
	}
	if cfg.Planner.RecoveryFactor > 0 {
		policy.RecoveryFactor = cfg.Planner.RecoveryFactor
	}

	var coachClient coach.Client = coach.Disabled{}
	if cfg.Coach.Enabled {
		coachClient = coach.NewOpenAIClient(cfg.Coach.BaseURL, cfg.Coach.APIKey, cfg.Coach.Model, nil)
		log.WithField("model", cfg.Coach.Model).Info("Coach commentary enabled")
	}

	locks := service.NewPlanLocker()
	plannerService := service.NewPlannerService(r.plans, r.baselines, r.workouts, r.constraints, policy, locks)
	planService := service.NewPlanService(r.plans, r.baselines, r.constraints, plannerService)
	scheduleService := service.NewScheduleService(r.plans, r.workouts, plannerService, locks)
	statusService := service.NewStatusService(r.plans, r.workouts, r.snapshots, r.usage, coachClient, policy)

	router := gin.New()
	router.Use(gin.Recovery())

	units := api.NewUnitConverter(cfg.Units.System)
	api.SetupRoutes(router, units, planService, plannerService, scheduleService, statusService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.WithField("address", cfg.Server.Address).Info("Server starting")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("ListenAndServe error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("Server exiting.")
}
