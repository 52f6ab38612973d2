package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/repository"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/service"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/cache"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/clock"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/config"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/database"
	apperrors "github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/errors"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/jobs"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/lock"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/logger"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/middleware/requestid"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/notify"
)

func main() {
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	eventRepo := repository.NewEventRepository(db)
	regRepo := repository.NewRegistrationRepository(db)
	refRepo := repository.NewParticipationRefRepository(db)
	attRepo := repository.NewAttendanceRepository(db)

	locker := lock.New(redisClient, cfg.Lock.KeyPrefix, cfg.Lock.TTL)
	publisher := notify.NewPublisher(redisClient, cfg.Notify)
	clk := clock.Real{}
	validate := validator.New()
	metrics := service.NewMetricsService()

	regService := service.NewRegistrationService(regRepo, refRepo, eventRepo, locker, publisher, clk, validate, logr)
	regService.AttachMetrics(metrics)

	repairQueue := jobs.NewQueue(func(ctx context.Context, job jobs.RepairJob) error {
		return regService.RepairParticipant(ctx, job.ParticipantID)
	}, jobs.QueueConfig{
		Workers:    cfg.Repair.Workers,
		MaxRetries: cfg.Repair.MaxRetries,
		RetryDelay: cfg.Repair.RetryDelay,
		Logger:     logr,
	})
	regService.AttachRepairQueue(repairQueue)

	attService := service.NewAttendanceService(attRepo, eventRepo, regRepo, eventRepo, cfg.Attendance.DefaultPassThreshold, validate, logr)
	statusService := service.NewStatusService(eventRepo, clk, publisher, logr)
	statusService.AttachMetrics(metrics)
	eligibilityService := service.NewEligibilityService(regRepo, eventRepo, attService, logr)

	scheduler := service.NewSchedulerService(eventRepo, clk, publisher, cfg.Scheduler.TickInterval, logr)
	scheduler.AttachMetrics(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repairQueue.Start(ctx)
	if cfg.Scheduler.Enabled {
		scheduler.Start(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(logr))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "postgres unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Pull-based queries for the external certificate service.
	r.GET("/events/:id/status", func(c *gin.Context) {
		status, err := statusService.GetCurrentStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			appErr := apperrors.FromError(err)
			c.JSON(appErr.Status, gin.H{"code": appErr.Code, "message": appErr.Message})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	})

	r.GET("/registrations/:id/eligibility", func(c *gin.Context) {
		result, err := eligibilityService.IsEligible(c.Request.Context(), c.Param("id"))
		if err != nil {
			appErr := apperrors.FromError(err)
			c.JSON(appErr.Status, gin.H{"code": appErr.Code, "message": appErr.Message})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
	scheduler.Stop()
	repairQueue.Stop()
}
