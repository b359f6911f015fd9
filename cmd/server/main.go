package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/database"
	"github.com/intellego/platform/internal/domain/fiber/handler"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/matcher"
	"github.com/intellego/platform/internal/middleware"
	"github.com/intellego/platform/internal/queue"
	"github.com/intellego/platform/internal/repository"
	"github.com/intellego/platform/internal/service"
	"github.com/intellego/platform/internal/usecase"
	"github.com/intellego/platform/internal/util"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}

	appConfig := config.LoadAppConfig()
	dbConfig := config.LoadDBConfig()
	geminiConfig := config.LoadGeminiConfig()
	storageConfig := config.LoadStorageConfig()
	batchConfig := config.LoadBatchConfig()

	appLog, err := logger.New(appConfig.Env, appConfig.LogLevel)
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	useVectors := dbConfig.Driver == config.DriverPostgres && geminiConfig.EnableEmbeddings
	db, err := database.Open(dbConfig, appConfig, useVectors)
	if err != nil {
		appLog.Fatal("database unavailable", "error", err)
	}

	students := repository.NewStudentRepository(db)
	reports := repository.NewReportRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	evaluations := repository.NewEvaluationRepository(db)

	// Gemini is the primary provider when configured; OpenRouter is always
	// available as the fallback.
	openRouter := service.NewOpenRouterService(config.LoadOpenRouterConfig(), appLog)
	var (
		generator service.FeedbackGenerator = openRouter
		grader    service.ExamGrader        = openRouter
		prior     usecase.PriorContext      = usecase.NewRecentReports(reports)
	)
	gemini, err := service.NewGeminiService(ctx, geminiConfig, appLog)
	if err != nil {
		appLog.Warn("gemini disabled, using openrouter only", "error", err)
	} else {
		generator = service.NewFallbackGenerator(gemini, openRouter)
		grader = service.NewFallbackGrader(gemini, openRouter)
		if useVectors {
			prior = usecase.NewSimilarReports(reports, repository.NewEmbeddingRepository(db), gemini, appLog)
		}
	}

	jobs := newJobStore(ctx, appLog)
	archiver := service.NewArchiver(ctx, storageConfig, appLog)
	if closer, ok := archiver.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	sender := service.NewEmailService(config.LoadEmailConfig(), appLog.With("component", "email"))

	matcherConfig := config.LoadMatcherConfig()
	production := matcher.New(matcher.Config{Threshold: matcherConfig.Threshold, MinMargin: matcherConfig.MinMargin})
	preview := matcher.New(matcher.Config{Threshold: matcherConfig.PreviewThreshold, MinMargin: matcherConfig.MinMargin})

	clock := util.SystemClock{}
	reportUC := usecase.NewReportUsecase(reports, students, archiver, clock, appLog)
	feedbackUC := usecase.NewFeedbackUsecase(reports, feedbackRepo, students, generator, sender, prior, clock, appLog)
	batchUC := usecase.NewBatchUsecase(reports, feedbackUC, jobs, batchConfig, clock, appLog)
	evaluationUC := usecase.NewEvaluationUsecase(evaluations, students, grader, production, preview, clock, appLog)

	app := fiber.New(fiber.Config{
		AppName:   appConfig.Name,
		BodyLimit: 6 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}
			return util.ErrorResponse(c, util.ErrorResponseFormat{Code: code, Message: message})
		},
	})
	app.Use(fiberLogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.HeaderUserRole + ", " + middleware.HeaderUserID,
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !appConfig.IsProduction(),
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.IsProduction()
		},
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.RateLimiter(120, time.Minute))

	handler.NewReportHandler(reportUC).RegisterRoutes(app)
	handler.NewFeedbackHandler(feedbackUC).RegisterRoutes(app)
	handler.NewBatchHandler(batchUC).RegisterRoutes(app)
	handler.NewEvaluationHandler(evaluationUC, storageConfig.UploadDir, appLog).RegisterRoutes(app)

	if batchConfig.AutoFeedbackInterval > 0 {
		appLog.Info("auto feedback enabled", "interval", batchConfig.AutoFeedbackInterval)
		go batchUC.RunAuto(ctx, batchConfig.AutoFeedbackInterval)
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				appLog.Debug("runtime stats", "goroutines", runtime.NumGoroutine())
			}
		}
	}()

	go func() {
		<-ctx.Done()
		appLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLog.Error("http shutdown", "error", err)
		}
		if err := batchUC.Shutdown(shutdownCtx); err != nil {
			appLog.Error("batch shutdown", "error", err)
		}
	}()

	appLog.Info("server running", "port", appConfig.Port, "db_driver", dbConfig.Driver, "embeddings", useVectors)
	if err := app.Listen(appConfig.Port); err != nil {
		appLog.Fatal("server stopped", "error", err)
	}
	batchUC.Wait()
}

// newJobStore keeps batch progress in Redis when configured so it survives
// restarts and is visible to every replica.
func newJobStore(ctx context.Context, log *logger.Logger) queue.JobStore {
	cfg := config.LoadRedisConfig()
	if cfg.Addr == "" {
		return queue.NewMemoryJobStore()
	}
	rdb, err := queue.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		log.Warn("redis unavailable, keeping batch progress in memory", "addr", cfg.Addr, "error", err)
		return queue.NewMemoryJobStore()
	}
	return queue.NewRedisJobStore(rdb, cfg.KeyPrefix)
}
