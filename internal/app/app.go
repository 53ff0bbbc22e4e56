// Package app assembles the catalog components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/drallgood/book-catalog/internal/api/users"
	"github.com/drallgood/book-catalog/internal/carousel"
	"github.com/drallgood/book-catalog/internal/catalog"
	"github.com/drallgood/book-catalog/internal/config"
	"github.com/drallgood/book-catalog/internal/database"
	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/paramstore"
	"github.com/drallgood/book-catalog/internal/remoteconfig"
	"github.com/drallgood/book-catalog/internal/validation"
)

// App holds the wired components. Optional parts are nil when not configured.
type App struct {
	Config   *config.Config
	Pipeline *remoteconfig.Service
	Client   *remoteconfig.Client
	Catalog  *catalog.Catalog
	// DB and Store are set when a database is opened (store backend, or
	// when the server publishes parameters)
	DB    *database.Database
	Store *paramstore.Store
	Users *users.Client

	log     *logger.Logger
	closers []func() error
}

// Options tweaks what New opens
type Options struct {
	// OpenStore opens the parameter store even when the backend is not "store"
	OpenStore bool
	Logger    *logger.Logger
}

// New wires the components described by cfg
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	a := &App{Config: cfg, log: log.Component("app")}

	v := validation.New()

	if cfg.RemoteConfig.Backend == config.BackendStore || opts.OpenStore {
		db, err := database.Open(cfg.DatabaseSettings(), log)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.DB = db
		a.Store = paramstore.New(db.GetDB(), v, log)
	}

	fetcher, err := a.newFetcher(ctx, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	clientOpts := []remoteconfig.ClientOption{remoteconfig.WithLogger(log)}
	if len(cfg.RemoteConfig.Keys) > 0 {
		clientOpts = append(clientOpts, remoteconfig.WithKeys(cfg.RemoteConfig.Keys...))
	}
	a.Client = remoteconfig.NewClient(fetcher, clientOpts...)
	a.Pipeline = remoteconfig.NewService(a.Client, remoteconfig.Options{
		DevMode:              cfg.RemoteConfig.DevMode,
		MinimumFetchInterval: cfg.RemoteConfig.MinimumFetchInterval,
		FetchTimeout:         cfg.RemoteConfig.FetchTimeout,
		Logger:               log,
		Validator:            v,
	})
	a.Catalog = catalog.New(a.Pipeline, log)

	if cfg.Users.BaseURL != "" {
		a.Users, err = NewUsersClient(cfg, log)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	fields := map[string]interface{}{
		"backend": cfg.RemoteConfig.Backend,
		"store":   a.Store != nil,
		"users":   a.Users != nil,
	}
	if a.DB != nil {
		fields["database"] = string(a.DB.Config().Type)
	}
	a.log.Info("Components wired", fields)
	return a, nil
}

// NewUsersClient builds the users API client from the users section
func NewUsersClient(cfg *config.Config, log *logger.Logger) (*users.Client, error) {
	if cfg.Users.BaseURL == "" {
		return nil, fmt.Errorf("users API URL is not configured (users.base_url or USERS_API_URL)")
	}
	return users.NewClient(users.Config{
		BaseURL:  cfg.Users.BaseURL,
		Timeout:  cfg.Users.Timeout,
		CacheTTL: cfg.Users.CacheTTL,
	}, log)
}

func (a *App) newFetcher(ctx context.Context, log *logger.Logger) (remoteconfig.Fetcher, error) {
	cfg := a.Config
	rc := cfg.RemoteConfig
	switch rc.Backend {
	case config.BackendStore:
		return a.Store, nil
	case config.BackendHTTP:
		return remoteconfig.NewHTTPFetcher(remoteconfig.HTTPConfig{
			BaseURL:   rc.URL,
			Token:     rc.Token,
			Timeout:   rc.FetchTimeout,
			RateLimit: rc.RateLimit,
			Burst:     rc.Burst,
		}, log)
	case config.BackendGraphQL:
		return remoteconfig.NewGraphQLFetcher(remoteconfig.GraphQLConfig{
			Endpoint: cfg.GraphQL.Endpoint,
			Token:    cfg.GraphQL.Token,
			Timeout:  cfg.GraphQL.Timeout,
		}, log)
	case config.BackendFile:
		return remoteconfig.NewFileFetcher(rc.File, log), nil
	case config.BackendRedis:
		rdb, err := remoteconfig.NewRedisClient(ctx, a.redisConfig())
		if err != nil {
			return nil, err
		}
		// closed through Client.Dispose
		return remoteconfig.NewRedisFetcher(rdb, a.redisConfig().Prefix, log), nil
	default:
		return nil, fmt.Errorf("unsupported remote config backend %q", rc.Backend)
	}
}

func (a *App) redisConfig() remoteconfig.RedisConfig {
	r := a.Config.Redis
	prefix := r.Prefix
	if prefix == "" {
		prefix = remoteconfig.DefaultRedisPrefix
	}
	return remoteconfig.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB, Prefix: prefix}
}

// NewRedisPublisher connects to the configured Redis for writing parameters
func (a *App) NewRedisPublisher(ctx context.Context) (*remoteconfig.RedisPublisher, func() error, error) {
	cfg := a.redisConfig()
	rdb, err := remoteconfig.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return remoteconfig.NewRedisPublisher(rdb, cfg.Prefix), rdb.Close, nil
}

// ScreenOptions returns carousel screen options from the carousel section
func (a *App) ScreenOptions() catalog.ScreenOptions {
	c := a.Config.Carousel
	return catalog.ScreenOptions{
		Layout: carousel.Layout{
			PageWidth:  c.PageWidth,
			SmallWidth: c.SmallWidth,
			LargeWidth: c.LargeWidth,
			Gap:        c.Gap,
		},
		Interval:    c.Interval,
		AutoAdvance: c.AutoAdvance,
	}
}

// Close disposes the pipeline and closes opened resources
func (a *App) Close() error {
	if a.Pipeline != nil {
		a.Pipeline.Dispose()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
