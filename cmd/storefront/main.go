package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/vikrampresence-a11y/storefront/internal/pkg/cache"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/constants"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/database"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/env"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/jobqueue"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/notifier"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/payment"
	"github.com/vikrampresence-a11y/storefront/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Shut the queue down cleanly so in-flight fulfillments finish.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Fulfillment pipeline: explicitly constructed notifier, injected into
	// the queue workers.
	fulfiller := payment.NewFulfiller(
		payment.NewServiceFromDB(database.GetDB()),
		notifier.NewSMTPNotifierFromEnv(),
		env.GetEnv("DEFAULT_ASSET_URL", ""),
	)
	jobqueue.Setup(fulfiller).Start()

	// init fiber app
	app := fiber.New(fiber.Config{})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get(constants.MetricsRoute, basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
