// Package catalog builds the library and details views from validated
// remote content and turns user actions into navigation intents.
package catalog

import (
	"context"

	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
)

// ContentProvider supplies validated content documents
type ContentProvider interface {
	Initialize(ctx context.Context)
	JSONData() models.ConfigSnapshot
	DetailsCarousel() models.CarouselData
}

// Shelf is a group of books sharing a genre
type Shelf struct {
	Genre string        `json:"genre"`
	Books []models.Book `json:"books"`
}

// LibraryView is the content of the main screen
type LibraryView struct {
	Banner  []models.TopBannerSlide `json:"banner"`
	Shelves []Shelf                 `json:"shelves"`
}

// DetailsView is the content of the details screen for one book
type DetailsView struct {
	Current      *models.Book  `json:"current"`
	Carousel     []models.Book `json:"carousel"`
	InitialIndex int           `json:"initial_index"`
	YouWillLike  []models.Book `json:"you_will_like"`
}

// Catalog assembles views from a content provider
type Catalog struct {
	content ContentProvider
	base    *logger.Logger
	log     *logger.Logger
}

// New creates a catalog over content
func New(content ContentProvider, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Get()
	}
	return &Catalog{content: content, base: log, log: log.Component("catalog")}
}

// Library initializes the content pipeline if needed and returns the
// banner slides and genre shelves
func (c *Catalog) Library(ctx context.Context) LibraryView {
	c.content.Initialize(ctx)
	snapshot := c.content.JSONData()

	view := LibraryView{
		Banner:  snapshot.TopBannerSlides,
		Shelves: GroupByGenre(snapshot.Books),
	}
	c.log.Debug("Library view built", map[string]interface{}{
		"slides":  len(view.Banner),
		"shelves": len(view.Shelves),
	})
	return view
}

// GroupByGenre groups books by genre, keeping genres in order of first
// appearance and books in their original order
func GroupByGenre(books []models.Book) []Shelf {
	shelves := make([]Shelf, 0)
	index := make(map[string]int)
	for _, b := range books {
		i, ok := index[b.Genre]
		if !ok {
			i = len(shelves)
			index[b.Genre] = i
			shelves = append(shelves, Shelf{Genre: b.Genre})
		}
		shelves[i].Books = append(shelves[i].Books, b)
	}
	return shelves
}

// Details returns the details view for bookID. Current is nil when the
// book is unknown.
func (c *Catalog) Details(ctx context.Context, bookID int64) DetailsView {
	c.content.Initialize(ctx)
	snapshot := c.content.JSONData()

	view := DetailsView{
		Carousel:    c.content.DetailsCarousel().Books,
		YouWillLike: make([]models.Book, 0, len(snapshot.YouWillLikeSection)),
	}
	if len(view.Carousel) == 0 {
		view.Carousel = snapshot.Books
	}

	if b, ok := snapshot.BookByID(bookID); ok {
		view.Current = &b
	} else {
		for i := range view.Carousel {
			if view.Carousel[i].ID == bookID {
				b := view.Carousel[i]
				view.Current = &b
				break
			}
		}
	}

	for i, b := range view.Carousel {
		if b.ID == bookID {
			view.InitialIndex = i
			break
		}
	}

	for _, id := range snapshot.YouWillLikeSection {
		if b, ok := snapshot.BookByID(id); ok {
			view.YouWillLike = append(view.YouWillLike, b)
		}
	}

	if view.Current == nil {
		c.log.Warn("Book not found", map[string]interface{}{"book_id": bookID})
	}
	return view
}

// Splash initializes the content pipeline and then leaves the splash
// screen. Initialization failures are handled by the provider.
func (c *Catalog) Splash(ctx context.Context, nav Navigator) {
	c.content.Initialize(ctx)
	if ctx.Err() != nil {
		return
	}
	nav.Navigate(Main())
}
