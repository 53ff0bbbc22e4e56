package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drallgood/book-catalog/internal/carousel"
	"github.com/drallgood/book-catalog/internal/models"
)

// ScreenOptions carries the host services a screen's carousel uses
type ScreenOptions struct {
	Layout      carousel.Layout
	Interval    time.Duration
	Clock       carousel.Clock
	Viewport    carousel.Viewport
	Navigator   Navigator
	AutoAdvance bool
}

// LibraryScreen drives the main screen: a looping auto-advancing banner
// above the genre shelves
type LibraryScreen struct {
	View   LibraryView
	Banner *carousel.Engine[models.TopBannerSlide]
	nav    Navigator

	mu     sync.Mutex
	active int
}

// OpenLibrary builds the library view and mounts its banner carousel
func (c *Catalog) OpenLibrary(ctx context.Context, opts ScreenOptions) (*LibraryScreen, error) {
	s := &LibraryScreen{
		View: c.Library(ctx),
		nav:  navigatorOrNop(opts.Navigator),
	}
	engine, err := carousel.New(carousel.Options[models.TopBannerSlide]{
		Loop:        true,
		AutoAdvance: opts.AutoAdvance,
		Interval:    opts.Interval,
		Layout:      opts.Layout,
		Clock:       opts.Clock,
		Viewport:    opts.Viewport,
		Logger:      c.base,
		OnItemChange: func(index int, _ models.TopBannerSlide) {
			s.mu.Lock()
			s.active = index
			s.mu.Unlock()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("banner carousel: %w", err)
	}
	s.Banner = engine
	engine.SetItems(s.View.Banner)
	return s, nil
}

// ActiveSlide returns the index of the banner indicator to highlight
func (s *LibraryScreen) ActiveSlide() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// PressSlide opens the book a banner slide points at
func (s *LibraryScreen) PressSlide(index int) bool {
	if index < 0 || index >= len(s.View.Banner) {
		return false
	}
	s.nav.Navigate(BookDetails(s.View.Banner[index].BookID, false))
	return true
}

// PressBook opens a book from a shelf
func (s *LibraryScreen) PressBook(bookID int64) {
	s.nav.Navigate(BookDetails(bookID, false))
}

// Close unmounts the banner carousel
func (s *LibraryScreen) Close() {
	s.Banner.Unmount()
}

// DetailsScreen drives the details screen: the featured-book carousel
// decides which book's details are shown
type DetailsScreen struct {
	View     DetailsView
	Carousel *carousel.Engine[models.Book]
	nav      Navigator

	mu      sync.Mutex
	current *models.Book
	// keepRequested ignores the engine's initial notification when the
	// requested book is known but not part of the carousel list
	keepRequested bool
}

// OpenDetails builds the details view for bookID and mounts its
// variable-size carousel, focused on the requested book. A known book
// missing from the carousel list stays displayed until the user swipes.
func (c *Catalog) OpenDetails(ctx context.Context, bookID int64, opts ScreenOptions) (*DetailsScreen, error) {
	view := c.Details(ctx, bookID)
	s := &DetailsScreen{
		View:          view,
		nav:           navigatorOrNop(opts.Navigator),
		current:       view.Current,
		keepRequested: view.Current != nil && !containsBook(view.Carousel, bookID),
	}
	engine, err := carousel.New(carousel.Options[models.Book]{
		VariableSize:     true,
		AutoAdvance:      opts.AutoAdvance,
		Interval:         opts.Interval,
		Layout:           opts.Layout,
		Clock:            opts.Clock,
		Viewport:         opts.Viewport,
		Logger:           c.base,
		InitialSelection: func(b models.Book) bool { return b.ID == bookID },
		OnItemChange: func(_ int, b models.Book) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.keepRequested {
				s.keepRequested = false
				return
			}
			s.current = &b
		},
	})
	if err != nil {
		return nil, fmt.Errorf("details carousel: %w", err)
	}
	s.Carousel = engine
	engine.SetItems(view.Carousel)
	return s, nil
}

// Current returns the book whose details are displayed
func (s *DetailsScreen) Current() (models.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.Book{}, false
	}
	return *s.current, true
}

// PressRecommendation replaces this screen with the pressed book
func (s *DetailsScreen) PressRecommendation(bookID int64) {
	s.nav.Navigate(BookDetails(bookID, true))
}

// Back leaves the details screen
func (s *DetailsScreen) Back() {
	s.nav.Navigate(Back())
}

// Close unmounts the carousel
func (s *DetailsScreen) Close() {
	s.Carousel.Unmount()
}

func containsBook(books []models.Book, id int64) bool {
	for _, b := range books {
		if b.ID == id {
			return true
		}
	}
	return false
}

func navigatorOrNop(nav Navigator) Navigator {
	if nav == nil {
		return NavigatorFunc(func(Intent) {})
	}
	return nav
}
