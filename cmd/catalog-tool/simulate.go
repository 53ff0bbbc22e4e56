package main

import (
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/book-catalog/internal/carousel"
	"github.com/drallgood/book-catalog/internal/config"
	"github.com/drallgood/book-catalog/internal/logger"
)

type simulation struct {
	Items    int
	Loop     bool
	Variable bool
	Ticks    int
	Verbose  bool
	Layout   carousel.Layout
	Interval time.Duration
}

// runSimulation auto-advances a carousel of placeholder items on a manual
// clock, acknowledging every scroll immediately, and writes one line per
// focus change. It returns the visited item indices.
func runSimulation(w io.Writer, sim simulation) ([]int, error) {
	if sim.Items < 1 {
		return nil, fmt.Errorf("items must be at least 1, got %d", sim.Items)
	}
	if sim.Ticks < 0 {
		return nil, fmt.Errorf("ticks must not be negative, got %d", sim.Ticks)
	}
	if sim.Interval <= 0 {
		sim.Interval = carousel.DefaultInterval
	}

	items := make([]string, sim.Items)
	for i := range items {
		items[i] = fmt.Sprintf("item-%d", i)
	}

	clock := carousel.NewManualClock()
	var (
		lastOffset float64
		visited    []int
	)
	engine, err := carousel.New(carousel.Options[string]{
		Loop:         sim.Loop,
		VariableSize: sim.Variable,
		AutoAdvance:  true,
		Interval:     sim.Interval,
		Layout:       sim.Layout,
		Clock:        clock,
		Logger:       logger.Nop(),
		Viewport: carousel.ViewportFunc(func(offset float64, animated bool) {
			lastOffset = offset
			if sim.Verbose {
				fmt.Fprintf(w, "%8s scroll offset=%.1f animated=%t\n", clock.Now(), offset, animated)
			}
		}),
		OnItemChange: func(index int, item string) {
			visited = append(visited, index)
			fmt.Fprintf(w, "%8s focus index=%d item=%s\n", clock.Now(), index, item)
		},
	})
	if err != nil {
		return nil, err
	}
	defer engine.Unmount()

	engine.SetItems(items)
	for i := 0; i < sim.Ticks; i++ {
		clock.Advance(sim.Interval)
		engine.HandleScrollEnd(lastOffset)
	}
	fmt.Fprintf(w, "final index=%d state=%s pending_timers=%d\n", engine.CurrentIndex(), engine.State(), clock.Pending())
	return visited, nil
}

func simulateCarousel(c *cli.Context) error {
	def := config.Default().Carousel
	sim := simulation{
		Items:    c.Int("items"),
		Loop:     c.Bool("loop"),
		Variable: c.Bool("variable"),
		Ticks:    c.Int("ticks"),
		Verbose:  c.Bool("verbose"),
		Interval: def.Interval,
		Layout: carousel.Layout{
			PageWidth:  def.PageWidth,
			SmallWidth: def.SmallWidth,
			LargeWidth: def.LargeWidth,
			Gap:        def.Gap,
		},
	}
	_, err := runSimulation(c.App.Writer, sim)
	return err
}
