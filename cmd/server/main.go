package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/examfeed"
	"github.com/planwerk/stundenplan-api/internal/handler"
	"github.com/planwerk/stundenplan-api/internal/mappings"
	"github.com/planwerk/stundenplan-api/internal/middleware"
	"github.com/planwerk/stundenplan-api/internal/repository"
	"github.com/planwerk/stundenplan-api/internal/service"
	profilesync "github.com/planwerk/stundenplan-api/internal/sync"
	"github.com/planwerk/stundenplan-api/internal/untis"
	"github.com/planwerk/stundenplan-api/pkg/cache"
	"github.com/planwerk/stundenplan-api/pkg/config"
	"github.com/planwerk/stundenplan-api/pkg/database"
	"github.com/planwerk/stundenplan-api/pkg/logger"
	corsmiddleware "github.com/planwerk/stundenplan-api/pkg/middleware/cors"
	reqidmiddleware "github.com/planwerk/stundenplan-api/pkg/middleware/requestid"
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching degrades to pass-through", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	examRepo := repository.NewExamRepository(db)
	vacationRepo := repository.NewVacationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	untisClient := untis.NewClient(cfg.Untis, logr)
	feedClient := examfeed.NewClient(cfg.ExamFeed, logr)
	mappingTables := mappings.NewLoader(cfg.Mappings, logr).Load()

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, profileRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	examSvc := service.NewExamService(examRepo, feedClient, cacheRepo, logr, cfg.Cache.ExamTTL)
	vacationSvc := service.NewVacationService(vacationRepo, cacheRepo, validate, logr)
	timetableSvc := service.NewTimetableService(untisClient, vacationRepo, profileRepo, examSvc, cacheRepo, mappingTables, logr, service.TimetableTTLs{
		Lessons:   cfg.Cache.LessonTTL,
		Vacations: cfg.Cache.VacationTTL,
	})
	courseSvc := service.NewCourseService(mappingTables, untisClient, logr)
	exportSvc := service.NewExportService(logr)

	var profileSvc *service.ProfileService
	if cfg.Sync.Enabled && cfg.Sync.UpstreamURL != "" {
		coordinator := newSyncCoordinator(cfg.Sync, profileRepo, logr)
		coordinator.SetSession(true)
		defer coordinator.Stop()
		profileSvc = service.NewProfileService(profileRepo, examRepo, coordinator, validate, logr)
	} else {
		profileSvc = service.NewProfileService(profileRepo, examRepo, nil, validate, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc)
	examHandler := handler.NewExamHandler(examSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	vacationHandler := handler.NewVacationHandler(vacationSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	healthHandler := handler.NewHealthHandler(db, redisClient, metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RateLimit(cfg.RateLimit))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", healthHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/status", middleware.OptionalJWT(authSvc), authHandler.Status)

		api.GET("/vacations", vacationHandler.List)

		protected := api.Group("")
		protected.Use(middleware.JWT(authSvc))
		{
			protected.GET("/courses", courseHandler.Options)
			protected.GET("/mappings", courseHandler.Mappings)

			protected.GET("/timetable", timetableHandler.Week)
			protected.GET("/timetable/ics", timetableHandler.ICS)
			protected.GET("/timetable/pdf", timetableHandler.PDF)

			protected.GET("/exams", examHandler.List)
			protected.GET("/exams/merged", examHandler.Merged)
			protected.POST("/exams", examHandler.Create)
			protected.DELETE("/exams/:id", examHandler.Delete)

			protected.GET("/profile", profileHandler.Get)
			protected.PUT("/profile", profileHandler.Update)

			protected.POST("/vacations", vacationHandler.Create)
			protected.DELETE("/vacations/:id", vacationHandler.Delete)
		}
	}

	var refreshJobs *cron.Cron
	if cfg.Refresh.Enabled && cfg.Refresh.Spec != "" {
		refreshJobs = cron.New()
		_, err := refreshJobs.AddFunc(cfg.Refresh.Spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := timetableSvc.RefreshWeek(ctx, ""); err != nil {
				logr.Warn("warm refresh of lessons failed", zap.Error(err))
			}
			if err := examSvc.RefreshRemote(ctx); err != nil {
				logr.Warn("warm refresh of remote exams failed", zap.Error(err))
			}
		})
		if err != nil {
			logr.Sugar().Fatalw("invalid refresh cron spec", "spec", cfg.Refresh.Spec, "error", err)
		}
		refreshJobs.Start()
		defer refreshJobs.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown incomplete", zap.Error(err))
	}
}

// newSyncCoordinator builds the debounced profile push: the snapshot is the
// full profile table serialised deterministically, the sender POSTs it to
// the configured upstream.
func newSyncCoordinator(cfg config.SyncConfig, profiles *repository.ProfileRepository, logr *zap.Logger) *profilesync.Coordinator {
	client := resty.New().SetTimeout(cfg.Timeout)

	snapshot := func(ctx context.Context) ([]byte, error) {
		all, err := profiles.All(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(all)
	}

	send := func(ctx context.Context, payload []byte) error {
		resp, err := client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post(cfg.UpstreamURL)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("profile sync upstream returned %s", resp.Status())
		}
		return nil
	}

	return profilesync.NewCoordinator(snapshot, send,
		profilesync.WithDebounce(cfg.Debounce),
		profilesync.WithLogger(logr),
	)
}
