package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nexlearn/mocktest/config"
	"github.com/nexlearn/mocktest/database"
	_ "github.com/nexlearn/mocktest/docs" // Swagger docs - auto-generated
	adminctrl "github.com/nexlearn/mocktest/internal/controller/admin"
	userctrl "github.com/nexlearn/mocktest/internal/controller/user"
	"github.com/nexlearn/mocktest/internal/logger"
	"github.com/nexlearn/mocktest/internal/model"
	"github.com/nexlearn/mocktest/internal/repository"
	"github.com/nexlearn/mocktest/internal/service"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Mock Test Attempt Engine API
// @version 1.0
// @description Server-authoritative engine for timed multi-section mock test attempts: sectioned navigation, incremental answer persistence, deadline-driven auto-advance and idempotent submission.
// @contact.name API Support
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core Application Components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
		),

		// Repositories Layer
		fx.Provide(
			repository.NewTestRepository,
			repository.NewAttemptRepository,
		),

		// Services Layer
		fx.Provide(
			service.NewTestService,
			service.NewAdminTestService,
			service.NewReportService,
			service.NewAttemptService,
			service.NewDeadlineWatcher,
		),

		// API Controllers Layer
		fx.Provide(
			adminctrl.NewAdminTestController,
			userctrl.NewAttemptController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(RunDeadlineWatcher),
		fx.Invoke(AutoMigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	// Access logs via the global zerolog instance instead of Gin's default.
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger UI at /swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	adminTestCtrl *adminctrl.AdminTestController,
	attemptCtrl *userctrl.AttemptController,
) {
	adminAPIGroup := router.Group("/api/v1/admin")
	{
		testsAdminGroup := adminAPIGroup.Group("/tests")
		testsAdminGroup.POST("", adminTestCtrl.CreateTest)
		testsAdminGroup.GET("/:test_id/results/export", adminTestCtrl.ExportResults)
	}

	userAPIGroup := router.Group("/api/v1")
	{
		userAPIGroup.GET("/tests", attemptCtrl.GetAllTests)
		userAPIGroup.GET("/tests/:test_id", attemptCtrl.GetTestDetails)
		userAPIGroup.GET("/tests/:test_id/my-attempts", attemptCtrl.GetUserAttempts)

		userAPIGroup.POST("/tests/:test_id/attempts", attemptCtrl.StartOrResumeAttempt)
		userAPIGroup.GET("/attempts/:attempt_id", attemptCtrl.GetAttemptState)
		userAPIGroup.POST("/attempts/:attempt_id/visit", attemptCtrl.VisitQuestion)
		userAPIGroup.PUT("/attempts/:attempt_id/responses", attemptCtrl.SaveResponse)
		userAPIGroup.POST("/attempts/:attempt_id/responses/:question_id/mark", attemptCtrl.ToggleMark)
		userAPIGroup.DELETE("/attempts/:attempt_id/responses/:question_id", attemptCtrl.ClearResponse)
		userAPIGroup.POST("/attempts/:attempt_id/sections/:section_index/complete", attemptCtrl.CompleteSection)
		userAPIGroup.POST("/attempts/:attempt_id/submit", attemptCtrl.SubmitAttempt)
		userAPIGroup.GET("/attempts/:attempt_id/result", attemptCtrl.GetAttemptResult)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Mock test engine starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

// RunDeadlineWatcher ties the timeout sweep to the app lifecycle.
func RunDeadlineWatcher(lc fx.Lifecycle, watcher *service.DeadlineWatcher) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			watcher.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			return nil
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Test{},
		&model.Section{},
		&model.Question{},
		&model.Attempt{},
		&model.Response{},
		&model.SectionResult{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
