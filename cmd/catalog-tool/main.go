// catalog-tool validates, publishes and inspects catalog content and
// exercises the carousel engine from the command line.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/book-catalog/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	logger.Setup(logger.Config{
		Level:      "warn",
		Format:     logger.FormatJSON,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	})
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "catalog-tool",
		Usage:   "Validate, publish and inspect book catalog content, and manage users",
		Version: fmt.Sprintf("%s (%s) %s", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE`",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Check a content document against the schema",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "Parameter key (json_data, details_carousel)", Required: true},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Document `FILE`, - for stdin", Required: true},
				},
				Action: validateDocument,
			},
			{
				Name:  "push",
				Usage: "Validate a document and publish it to the parameter store or Redis",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "Parameter key", Required: true},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Document `FILE`, - for stdin", Required: true},
					&cli.StringFlag{Name: "target", Usage: "store or redis", Value: targetStore},
				},
				Action: pushDocument,
			},
			{
				Name:   "show",
				Usage:  "Fetch content from the configured backend and print the validated documents",
				Action: showContent,
			},
			usersCommand(),
			{
				Name:  "carousel",
				Usage: "Carousel engine utilities",
				Subcommands: []*cli.Command{
					{
						Name:  "simulate",
						Usage: "Drive an auto-advancing carousel with a manual clock and print focus changes",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "items", Usage: "Number of items", Value: 3},
							&cli.BoolFlag{Name: "loop", Usage: "Infinite loop mode"},
							&cli.BoolFlag{Name: "variable", Usage: "Variable item sizes"},
							&cli.IntFlag{Name: "ticks", Usage: "Auto-advance steps to run", Value: 5},
							&cli.BoolFlag{Name: "verbose", Usage: "Print viewport scrolls"},
						},
						Action: simulateCarousel,
					},
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Get().Error("Error running application", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}
