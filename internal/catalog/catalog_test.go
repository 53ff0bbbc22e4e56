package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/book-catalog/internal/carousel"
	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
)

type fakeContent struct {
	mu          sync.Mutex
	initialized int
	snapshot    models.ConfigSnapshot
	carousel    models.CarouselData
}

func (f *fakeContent) Initialize(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized++
}

func (f *fakeContent) JSONData() models.ConfigSnapshot     { return f.snapshot }
func (f *fakeContent) DetailsCarousel() models.CarouselData { return f.carousel }

type intentRecorder struct {
	mu      sync.Mutex
	intents []Intent
}

func (r *intentRecorder) Navigate(i Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, i)
}

func book(id int64, genre string) models.Book {
	return models.Book{ID: id, Name: "Book", Author: "Author", Genre: genre}
}

func testSnapshot() models.ConfigSnapshot {
	return models.ConfigSnapshot{
		Books: []models.Book{
			book(1, "Fantasy"),
			book(2, "Romance"),
			book(3, "Fantasy"),
			book(4, "Science"),
			book(5, "Romance"),
		},
		TopBannerSlides: []models.TopBannerSlide{
			{ID: 1, BookID: 3, Cover: "a.png"},
			{ID: 2, BookID: 99, Cover: "b.png"},
		},
		YouWillLikeSection: []int64{5, 42, 1},
	}
}

func TestGroupByGenre(t *testing.T) {
	shelves := GroupByGenre(testSnapshot().Books)

	require.Len(t, shelves, 3)
	assert.Equal(t, "Fantasy", shelves[0].Genre)
	assert.Equal(t, "Romance", shelves[1].Genre)
	assert.Equal(t, "Science", shelves[2].Genre)

	var ids []int64
	for _, b := range shelves[1].Books {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []int64{2, 5}, ids)

	assert.Empty(t, GroupByGenre(nil))
	assert.NotNil(t, GroupByGenre(nil))
}

func TestCatalog_Library(t *testing.T) {
	content := &fakeContent{snapshot: testSnapshot()}
	c := New(content, logger.Nop())

	view := c.Library(context.Background())
	assert.Equal(t, 1, content.initialized)
	assert.Len(t, view.Banner, 2)
	assert.Len(t, view.Shelves, 3)

	empty := New(&fakeContent{snapshot: models.EmptySnapshot()}, logger.Nop()).Library(context.Background())
	assert.Empty(t, empty.Banner)
	assert.Empty(t, empty.Shelves)
}

func TestCatalog_Details(t *testing.T) {
	tests := []struct {
		name        string
		carousel    []models.Book
		bookID      int64
		wantCurrent bool
		wantIndex   int
		wantLen     int
	}{
		{name: "falls back to all books", bookID: 3, wantCurrent: true, wantIndex: 2, wantLen: 5},
		{name: "uses details carousel", carousel: []models.Book{book(4, "Science"), book(1, "Fantasy")}, bookID: 1, wantCurrent: true, wantIndex: 1, wantLen: 2},
		{name: "book not in carousel", carousel: []models.Book{book(4, "Science")}, bookID: 2, wantCurrent: true, wantIndex: 0, wantLen: 1},
		{name: "book only in carousel", carousel: []models.Book{book(77, "Poetry")}, bookID: 77, wantCurrent: true, wantIndex: 0, wantLen: 1},
		{name: "unknown book", bookID: 1000, wantCurrent: false, wantIndex: 0, wantLen: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := &fakeContent{
				snapshot: testSnapshot(),
				carousel: models.CarouselData{Books: tt.carousel},
			}
			view := New(content, logger.Nop()).Details(context.Background(), tt.bookID)

			if tt.wantCurrent {
				require.NotNil(t, view.Current)
				assert.Equal(t, tt.bookID, view.Current.ID)
			} else {
				assert.Nil(t, view.Current)
			}
			assert.Equal(t, tt.wantIndex, view.InitialIndex)
			assert.Len(t, view.Carousel, tt.wantLen)

			// dangling id 42 is dropped, order kept
			require.Len(t, view.YouWillLike, 2)
			assert.Equal(t, int64(5), view.YouWillLike[0].ID)
			assert.Equal(t, int64(1), view.YouWillLike[1].ID)
		})
	}
}

func TestCatalog_Splash(t *testing.T) {
	content := &fakeContent{}
	nav := &intentRecorder{}
	New(content, logger.Nop()).Splash(context.Background(), nav)

	assert.Equal(t, 1, content.initialized)
	assert.Equal(t, []Intent{Main()}, nav.intents)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	nav = &intentRecorder{}
	New(content, logger.Nop()).Splash(ctx, nav)
	assert.Empty(t, nav.intents)
}

func TestIntents(t *testing.T) {
	i := BookDetails(7, false)
	assert.Equal(t, ActionNavigate, i.Action)
	assert.Equal(t, ScreenBookDetails, i.Screen)
	id, ok := i.BookID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	assert.Equal(t, ActionReplace, BookDetails(7, true).Action)

	_, ok = Back().BookID()
	assert.False(t, ok)
	assert.Equal(t, ActionBack, Back().Action)
}

func TestLibraryScreen(t *testing.T) {
	clock := carousel.NewManualClock()
	nav := &intentRecorder{}
	c := New(&fakeContent{snapshot: testSnapshot()}, logger.Nop())

	s, err := c.OpenLibrary(context.Background(), ScreenOptions{
		Layout:      carousel.Layout{PageWidth: 300},
		Clock:       clock,
		Navigator:   nav,
		AutoAdvance: true,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 0, s.ActiveSlide())
	assert.Len(t, s.Banner.RenderItems(), 4)

	clock.Advance(carousel.DefaultInterval)
	s.Banner.HandleScrollEnd(600)
	assert.Equal(t, 1, s.ActiveSlide())

	assert.True(t, s.PressSlide(1))
	assert.False(t, s.PressSlide(5))
	s.PressBook(4)

	require.Len(t, nav.intents, 2)
	assert.Equal(t, BookDetails(99, false), nav.intents[0], "dangling slide targets are passed through")
	assert.Equal(t, BookDetails(4, false), nav.intents[1])

	s.Close()
	assert.Equal(t, 0, clock.Pending())
}

func TestLibraryScreen_InvalidLayout(t *testing.T) {
	c := New(&fakeContent{snapshot: testSnapshot()}, logger.Nop())
	_, err := c.OpenLibrary(context.Background(), ScreenOptions{})
	assert.Error(t, err)
}

func TestDetailsScreen(t *testing.T) {
	nav := &intentRecorder{}
	c := New(&fakeContent{snapshot: testSnapshot()}, logger.Nop())

	s, err := c.OpenDetails(context.Background(), 3, ScreenOptions{
		Layout:    carousel.Layout{SmallWidth: 160, LargeWidth: 200, Gap: 16},
		Clock:     carousel.NewManualClock(),
		Navigator: nav,
	})
	require.NoError(t, err)
	defer s.Close()

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, int64(3), cur.ID)
	assert.Equal(t, 2, s.Carousel.CurrentIndex())

	// swipe to the next card: focus 2 is large, item 3 starts at 3*176+40
	s.Carousel.HandleDragStart()
	s.Carousel.HandleDragEnd(3*176 + 40)
	cur, _ = s.Current()
	assert.Equal(t, int64(4), cur.ID)

	s.PressRecommendation(5)
	s.Back()
	assert.Equal(t, []Intent{BookDetails(5, true), Back()}, nav.intents)
}

func TestDetailsScreen_KnownBookOutsideCarousel(t *testing.T) {
	snapshot := testSnapshot()
	content := &fakeContent{
		snapshot: snapshot,
		carousel: models.CarouselData{Books: []models.Book{snapshot.Books[3], snapshot.Books[4]}},
	}
	c := New(content, logger.Nop())

	s, err := c.OpenDetails(context.Background(), 2, ScreenOptions{
		Layout: carousel.Layout{SmallWidth: 160, LargeWidth: 200, Gap: 16},
		Clock:  carousel.NewManualClock(),
	})
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.View.Current)
	assert.Equal(t, int64(2), s.View.Current.ID)

	// the carousel rests on its first book but the requested book stays
	assert.Equal(t, 0, s.Carousel.CurrentIndex())
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), cur.ID)

	// swiping to the second card switches the details
	s.Carousel.HandleDragStart()
	s.Carousel.HandleDragEnd(176 + 40)
	cur, _ = s.Current()
	assert.Equal(t, int64(5), cur.ID)
}

func TestDetailsScreen_UnknownBook(t *testing.T) {
	c := New(&fakeContent{snapshot: testSnapshot()}, logger.Nop())
	s, err := c.OpenDetails(context.Background(), 404, ScreenOptions{
		Layout: carousel.Layout{SmallWidth: 160, LargeWidth: 200},
		Clock:  carousel.NewManualClock(),
	})
	require.NoError(t, err)
	defer s.Close()

	// the carousel focuses its first book and the screen follows it
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), cur.ID)
	assert.Nil(t, s.View.Current)
}
