// book-catalog serves the book catalog: it keeps validated content from a
// remote config backend fresh and exposes the library and details views
// over HTTP.
//
// Environment Variables:
//
//	REMOTE_CONFIG_BACKEND   store (default), http, redis, graphql or file
//	REMOTE_CONFIG_URL       Base URL of an upstream catalog server (http backend)
//	REMOTE_CONFIG_TOKEN     Bearer token for the upstream (http backend) and for /parameters
//	REMOTE_CONFIG_DEV_MODE  Disable the minimum fetch interval
//	REMOTE_CONFIG_REFRESH_INTERVAL  Go duration between refreshes, 0 to disable
//	DATABASE_TYPE           sqlite (default), postgres, mysql or mariadb
//	LOG_LEVEL               debug, info, warn, error
//
// Endpoints:
//
//	GET    /healthz
//	GET    /api/library
//	GET    /api/books/{id}
//	POST   /api/refresh
//	GET    /parameters?keys=a,b
//	PUT    /parameters/{key}
//	DELETE /parameters/{key}
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drallgood/book-catalog/internal/app"
	"github.com/drallgood/book-catalog/internal/config"
	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/server"
)

var (
	version = "dev" // Set during build
)

func main() {
	flags := parseFlags()

	if flags.help {
		showHelp()
		return
	}
	if flags.version {
		showVersion()
		return
	}

	cfg, err := config.Load(flags.configFile, flags.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	lc := cfg.LoggerConfig()
	lc.Output = os.Stdout
	lc.TimeFormat = time.RFC3339
	logger.Setup(lc)
	log := logger.Get()

	log.Info("Starting book-catalog", map[string]interface{}{
		"version":    version,
		"backend":    cfg.RemoteConfig.Backend,
		"dev_mode":   cfg.RemoteConfig.DevMode,
		"log_level":  log.GetLevel().String(),
		"log_format": cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the parameter store is always served so operators can publish content
	a, err := app.New(ctx, cfg, app.Options{OpenStore: true, Logger: log})
	if err != nil {
		log.Error("Failed to initialize", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Error closing resources", map[string]interface{}{"error": err.Error()})
		}
	}()

	a.Pipeline.Initialize(ctx)

	opts := server.Options{
		Addr:     ":" + cfg.Server.Port,
		Pipeline: a.Pipeline,
		Catalog:  a.Catalog,
		Store:    a.Store,
		Token:    cfg.RemoteConfig.Token,
		Logger:   log,
	}
	if a.DB != nil {
		opts.Database = a.DB
	}
	srv := server.New(opts)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	if cfg.RemoteConfig.RefreshInterval > 0 {
		StartPeriodicRefresh(ctx, a, cfg.RemoteConfig.RefreshInterval)
	} else {
		log.Info("Periodic refresh is disabled (set REMOTE_CONFIG_REFRESH_INTERVAL to enable)", nil)
	}

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	case err := <-errCh:
		log.Error("Fatal error occurred", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	log.Info("Initiating graceful shutdown...", map[string]interface{}{
		"timeout": cfg.Server.ShutdownTimeout.String(),
	})
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Shutdown completed", nil)
}

// StartPeriodicRefresh refreshes the pipeline every interval until ctx ends
func StartPeriodicRefresh(ctx context.Context, a *app.App, interval time.Duration) {
	log := logger.Get()
	log.Info("Periodic refresh enabled", map[string]interface{}{
		"interval": interval.String(),
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// failures are logged by the pipeline
				a.Pipeline.Refresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func showHelp() {
	fmt.Println("Book catalog server")
	fmt.Println("\nUsage:")
	fmt.Println("  book-catalog [flags]")
	fmt.Println("\nFlags:")
	fmt.Println("  --config PATH\tYAML config file")
	fmt.Println("  --env-file PATH\t.env file (default: .env)")
	fmt.Println("  --port PORT\tHTTP port (env: PORT)")
	fmt.Println("  --backend NAME\tRemote config backend (env: REMOTE_CONFIG_BACKEND)")
	fmt.Println("  --dev\tDisable the minimum fetch interval (env: REMOTE_CONFIG_DEV_MODE)")
	fmt.Println("  --refresh-interval DURATION\tRefresh period, 0 to disable")
	fmt.Println("  -h, --help\tShow this help message")
	fmt.Println("  -v, --version\tShow version information")
	fmt.Println("\nExample:")
	fmt.Println(`  book-catalog --backend redis --dev --refresh-interval 1m`)
}

func showVersion() {
	fmt.Printf("book-catalog version %s\n", version)
}
