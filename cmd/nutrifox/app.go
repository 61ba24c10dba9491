package main

import (
	"context"
	"fmt"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	flog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/NutriFox/app/controllers"
	"github.com/ManuelReschke/NutriFox/app/repository"
	apiv1 "github.com/ManuelReschke/NutriFox/internal/api/v1"
	"github.com/ManuelReschke/NutriFox/internal/pkg/archive"
	"github.com/ManuelReschke/NutriFox/internal/pkg/billing"
	"github.com/ManuelReschke/NutriFox/internal/pkg/cache"
	"github.com/ManuelReschke/NutriFox/internal/pkg/database"
	"github.com/ManuelReschke/NutriFox/internal/pkg/directory"
	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
	zlog "github.com/ManuelReschke/NutriFox/internal/pkg/logger"
	"github.com/ManuelReschke/NutriFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/NutriFox/internal/pkg/ratelimit"
	"github.com/ManuelReschke/NutriFox/internal/pkg/router"
	"github.com/ManuelReschke/NutriFox/internal/pkg/usercontext"
)

// webhook bodies are small JSON documents
const bodyLimit = 1 << 20

type serverConfig struct {
	Host        string
	Port        string
	Development bool
	LogLevel    string
}

func loadServerConfig() serverConfig {
	return serverConfig{
		Host:        env.GetEnv("APP_HOST", "localhost"),
		Port:        env.GetEnv("APP_PORT", "4000"),
		Development: env.IsDev(),
		LogLevel:    env.GetEnv("LOG_LEVEL", "info"),
	}
}

// NewApplication connects the stores and builds the fiber app.
func NewApplication(ctx context.Context, cfg serverConfig) (*fiber.App, error) {
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	outcomes := counter.Default()
	opts := []billing.Option{
		billing.WithLogger(zlog.L()),
		billing.WithOutcomeRecorder(outcomes),
	}

	archiveCfg, err := archive.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("archive config: %w", err)
	}
	if archiveCfg.Enabled {
		client, err := archive.NewClient(ctx, archiveCfg)
		if err != nil {
			return nil, fmt.Errorf("archive client: %w", err)
		}
		opts = append(opts, billing.WithArchiver(client))
		flog.Infof("[Archive] webhook bodies archived to bucket %s", archiveCfg.BucketName)
	}

	billingCfg := billing.LoadConfig()
	if billingCfg.WebhookSecret == "" {
		flog.Warn("[Billing] BILLING_WEBHOOK_SECRET is empty, every webhook will be answered with 500")
	}
	dir := directory.FromEnv(repos.User, cache.GetClient())
	svc := billing.NewServiceFromDB(billingCfg, database.GetDB(), directory.IDLookup{Directory: dir}, opts...)
	controllers.InitializeBillingController(svc, repos.Subscription, outcomes)

	appCfg := fiber.Config{
		AppName:   "NutriFox",
		BodyLimit: bodyLimit,
	}
	ratelimit.TrustProxies(&appCfg)
	app := fiber.New(appCfg)

	// recovery and logging
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Development}), logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | user=${locals:" + usercontext.KeyUserID + "} | ${error}\n",
	}))

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath:    "/docs/api/",
		FilePath:    "openapi.yml",
		FileContent: apiv1.RawSpec(),
		Path:        "v1",
		Title:       "NutriFox Billing API",
	}))

	// ROUTER
	router.InstallRouter(app)

	return app, nil
}
