package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/book-catalog/internal/app"
	"github.com/drallgood/book-catalog/internal/config"
	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
	"github.com/drallgood/book-catalog/internal/remoteconfig"
	"github.com/drallgood/book-catalog/internal/validation"
)

const (
	targetStore = "store"
	targetRedis = "redis"
)

func readDocument(c *cli.Context) (string, error) {
	path := c.String("file")
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// describeInvalid prints the failing fields of a validation error
func describeInvalid(w io.Writer, err error) {
	fields, ok := validation.Fields(err)
	if !ok {
		fmt.Fprintf(w, "invalid: %v\n", err)
		return
	}
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	fmt.Fprintln(w, "invalid:")
	for _, p := range paths {
		fmt.Fprintf(w, "  %s %s\n", p, fields[p])
	}
}

func validateDocument(c *cli.Context) error {
	raw, err := readDocument(c)
	if err != nil {
		return err
	}
	key := c.String("key")
	if err := models.ValidateDocument(key, raw, validation.New()); err != nil {
		describeInvalid(c.App.ErrWriter, err)
		return cli.Exit(fmt.Sprintf("%s: document rejected", key), 2)
	}
	fmt.Fprintf(c.App.Writer, "%s: ok\n", key)
	return nil
}

func pushDocument(c *cli.Context) error {
	raw, err := readDocument(c)
	if err != nil {
		return err
	}
	key := c.String("key")
	if err := models.ValidateDocument(key, raw, validation.New()); err != nil {
		describeInvalid(c.App.ErrWriter, err)
		return cli.Exit(fmt.Sprintf("%s: document rejected", key), 2)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	switch c.String("target") {
	case targetStore:
		// the store is opened regardless of the configured fetch backend
		a, err := app.New(ctx, storeOnly(cfg), app.Options{OpenStore: true, Logger: logger.Get()})
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.Store.Put(ctx, key, raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: stored version %d\n", key, p.Version)
	case targetRedis:
		a := &app.App{Config: cfg}
		pub, closeFn, err := a.NewRedisPublisher(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := pub.Put(ctx, key, raw); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: published to redis\n", key)
	default:
		return cli.Exit(fmt.Sprintf("unknown target %q (want %s or %s)", c.String("target"), targetStore, targetRedis), 2)
	}
	return nil
}

// storeOnly returns a copy of cfg fetching from the parameter store
func storeOnly(cfg *config.Config) *config.Config {
	cp := *cfg
	cp.RemoteConfig.Backend = config.BackendStore
	return &cp
}

func showContent(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	// one-shot read, never throttled
	cfg.RemoteConfig.DevMode = true

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, app.Options{Logger: logger.Get()})
	if err != nil {
		return err
	}
	defer a.Close()

	a.Pipeline.Initialize(ctx)

	out := struct {
		Status          remoteconfig.Status   `json:"status"`
		JSONData        models.ConfigSnapshot `json:"json_data"`
		DetailsCarousel models.CarouselData   `json:"details_carousel"`
	}{
		Status:          a.Pipeline.Status(),
		JSONData:        a.Pipeline.JSONData(),
		DetailsCarousel: a.Pipeline.DetailsCarousel(),
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
