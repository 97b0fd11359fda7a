package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/xX-youssuf-Xx/student-portal/config"
	"github.com/xX-youssuf-Xx/student-portal/database"
	adminctrl "github.com/xX-youssuf-Xx/student-portal/internal/controller/admin"
	studentctrl "github.com/xX-youssuf-Xx/student-portal/internal/controller/student"
	"github.com/xX-youssuf-Xx/student-portal/internal/logger"
	"github.com/xX-youssuf-Xx/student-portal/internal/middleware"
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"github.com/xX-youssuf-Xx/student-portal/internal/repository"
	"github.com/xX-youssuf-Xx/student-portal/internal/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title School Test Portal API
// @version 1.0
// @description Test administration portal: availability, submissions, scoring, ranking and batch grading of scanned bubble sheets.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
		),

		// Repositories layer
		fx.Provide(
			repository.NewTestRepository,
			repository.NewStudentRepository,
			repository.NewSubmissionRepository,
			repository.NewTestImageRepository,
		),

		// Services layer
		fx.Provide(
			service.NewScoringService,
			service.NewDetectorService,
			service.NewAdminTestService,
			service.NewTestService,
			service.NewRankService,
			service.NewSubmissionService,
			service.NewBatchGradingService,
		),

		// API controllers layer
		fx.Provide(
			adminctrl.NewAdminTestController,
			adminctrl.NewAdminGradingController,
			studentctrl.NewStudentTestController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages the HTTP
// server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	adminTestCtrl *adminctrl.AdminTestController,
	adminGradingCtrl *adminctrl.AdminGradingController,
	studentTestCtrl *studentctrl.StudentTestController,
) {
	adminGroup := router.Group("/api/v1/admin", middleware.RequireAuth(cfg, middleware.RoleAdmin))
	{
		tests := adminGroup.Group("/tests")
		tests.POST("", adminTestCtrl.CreateTest)
		tests.GET("", adminTestCtrl.ListTests)
		tests.GET("/:test_id", adminTestCtrl.GetTest)
		tests.PUT("/:test_id", adminTestCtrl.UpdateTest)
		tests.DELETE("/:test_id", adminTestCtrl.DeleteTest)
		tests.PUT("/:test_id/images", adminTestCtrl.ReplaceTestImages)
		tests.GET("/:test_id/submissions", adminGradingCtrl.GetTestSubmissions)
		tests.POST("/:test_id/batch-grade", adminGradingCtrl.BatchGrade)

		submissions := adminGroup.Group("/submissions")
		submissions.POST("/:submission_id/grade", adminGradingCtrl.GradeSubmission)
		submissions.POST("/:submission_id/manual-grades", adminGradingCtrl.SetManualGrades)
		submissions.PUT("/:submission_id/answers", adminGradingCtrl.UpdateSubmissionAnswers)
		submissions.DELETE("/:submission_id", adminGradingCtrl.DeleteSubmission)
	}

	studentGroup := router.Group("/api/v1", middleware.RequireAuth(cfg, middleware.RoleStudent))
	{
		studentGroup.GET("/tests", studentTestCtrl.GetAvailableTests)
		studentGroup.GET("/tests/:test_id/questions", studentTestCtrl.GetTestQuestions)
		studentGroup.POST("/tests/:test_id/start", studentTestCtrl.StartTest)
		studentGroup.POST("/tests/:test_id/submit", studentTestCtrl.SubmitTest)
		studentGroup.POST("/tests/:test_id/bubble-sheet", studentTestCtrl.UploadBubbleSheet)
		studentGroup.GET("/tests/:test_id/rank", studentTestCtrl.GetMyRank)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Test portal API server starting on port %s", cfg.Server.Port)
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

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Student{},
		&model.Test{},
		&model.TestImage{},
		&model.Submission{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
