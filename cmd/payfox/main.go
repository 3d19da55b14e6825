package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/PayFox/app/controllers"
	"github.com/ManuelReschke/PayFox/internal/pkg/accountlock"
	"github.com/ManuelReschke/PayFox/internal/pkg/apidocs"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
	"github.com/ManuelReschke/PayFox/internal/pkg/database"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
	"github.com/ManuelReschke/PayFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PayFox/internal/pkg/mail"
	"github.com/ManuelReschke/PayFox/internal/pkg/middleware"
	"github.com/ManuelReschke/PayFox/internal/pkg/router"
)

const shutdownTimeout = 15 * time.Second

type Application struct {
	App     *fiber.App
	Manager *jobqueue.Manager
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	a := NewApplication()
	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("[PayFox] Listening on %s", addr)
		return a.App.Listen(addr)
	})

	g.Go(func() error {
		a.Manager.Start()
		<-ctx.Done()
		a.Manager.Stop()
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("[PayFox] Shutting down HTTP server")
		return a.App.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("[PayFox] Stopped")
	return nil
}

func NewApplication() *Application {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	cfg := billing.ConfigFromEnv()
	if cfg.WebhookSecret == "" {
		log.Warn("[PayFox] STRIPE_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}

	repo := billing.NewRepository(database.GetDB())
	dispatcher := billing.NewDispatcher(
		repo,
		accountlock.FromEnv(cache.GetClient()),
		mail.NewTrialNotifier(nil),
		cfg,
	)
	queue.SetDispatcher(dispatcher)

	service := billing.NewService(repo, queue)
	controllers.InitializeBillingController(billing.NewIntake(repo, queue, cfg), service)
	controllers.InitializeAdminBillingController(service, queue)

	return &Application{
		App:     newFiberApp(findBasePath()),
		Manager: manager,
	}
}

func newFiberApp(basePath string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "PayFox",
		// gateway payloads are small; reject anything unreasonable early
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics + prometheus
	app.Get("/metrics", middleware.AdminBasicAuthFromEnv(), monitor.New())
	app.Get("/metrics/prometheus", middleware.AdminBasicAuthFromEnv(), adaptor.HTTPHandler(promhttp.Handler()))

	// SWAGGER / OPENAPI
	specPath := basePath + apidocs.DefaultPath
	if _, err := apidocs.Load(context.Background(), specPath); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: specPath,
			Path:     "v1",
		}))
	} else {
		log.Warnf("[PayFox] API docs disabled: %v", err)
	}

	// ROUTER
	router.InstallRouter(app)

	return app
}

// findBasePath locates the project root from the usual working directories.
func findBasePath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/payfox to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); err == nil {
			return path
		}
	}
	return "./"
}
