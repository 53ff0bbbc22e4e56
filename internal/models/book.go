package models

// Book is a catalog entry delivered by the remote configuration.
// Views, Likes and Quotes are pre-formatted display strings.
type Book struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Author   string `json:"author"`
	Summary  string `json:"summary"`
	Genre    string `json:"genre"`
	CoverURL string `json:"cover_url"`
	Views    string `json:"views"`
	Likes    string `json:"likes"`
	Quotes   string `json:"quotes"`
}

// TopBannerSlide is a promotional banner entry. BookID is not checked
// against the book list; dangling references are tolerated.
type TopBannerSlide struct {
	ID     int64  `json:"id"`
	BookID int64  `json:"book_id"`
	Cover  string `json:"cover"`
}

// ConfigSnapshot is the root document stored under the json_data key
type ConfigSnapshot struct {
	Books              []Book           `json:"books"`
	TopBannerSlides    []TopBannerSlide `json:"top_banner_slides"`
	YouWillLikeSection []int64          `json:"you_will_like_section"`
}

// CarouselData is the document stored under the details_carousel key
type CarouselData struct {
	Books []Book `json:"books"`
}

// EmptySnapshot returns the canonical fallback snapshot
func EmptySnapshot() ConfigSnapshot {
	return ConfigSnapshot{
		Books:              []Book{},
		TopBannerSlides:    []TopBannerSlide{},
		YouWillLikeSection: []int64{},
	}
}

// EmptyCarouselData returns the canonical fallback carousel document
func EmptyCarouselData() CarouselData {
	return CarouselData{Books: []Book{}}
}

// IsEmpty reports whether the snapshot carries no content at all
func (s ConfigSnapshot) IsEmpty() bool {
	return len(s.Books) == 0 && len(s.TopBannerSlides) == 0 && len(s.YouWillLikeSection) == 0
}

// BookByID returns the first book with the given id
func (s ConfigSnapshot) BookByID(id int64) (Book, bool) {
	for _, b := range s.Books {
		if b.ID == id {
			return b, true
		}
	}
	return Book{}, false
}
