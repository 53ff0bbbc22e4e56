package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/drallgood/book-catalog/internal/validation"
)

// Remote configuration keys holding content documents
const (
	KeyJSONData        = "json_data"
	KeyDetailsCarousel = "details_carousel"
)

// ErrInvalidDocument matches every DocumentError
var ErrInvalidDocument = errors.New("invalid document")

// Document decoding stages
const (
	StageParse    = "parse"
	StageValidate = "validate"
)

// DocumentError describes why a content document was rejected
type DocumentError struct {
	Stage string
	Err   error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("invalid document (%s): %v", e.Stage, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidDocument) match any DocumentError
func (e *DocumentError) Is(target error) bool {
	return target == ErrInvalidDocument
}

// Wire shapes. Pointers distinguish an absent field from its zero value:
// every string field must be present, and name/author/genre must be non-empty.
// Members are decoded by exact key (encoding/json alone folds key case);
// the json tags name fields in validation errors.
type bookDocument struct {
	ID       *wholeNumber `json:"id" validate:"required,gte=0"`
	Name     *string      `json:"name" validate:"required,min=1"`
	Author   *string      `json:"author" validate:"required,min=1"`
	Summary  *string      `json:"summary" validate:"required"`
	Genre    *string      `json:"genre" validate:"required,min=1"`
	CoverURL *string      `json:"cover_url" validate:"required"`
	Views    *string      `json:"views" validate:"required"`
	Likes    *string      `json:"likes" validate:"required"`
	Quotes   *string      `json:"quotes" validate:"required"`
}

func (d *bookDocument) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	return decodeFields(fields, []field{
		{"id", &d.ID},
		{"name", &d.Name},
		{"author", &d.Author},
		{"summary", &d.Summary},
		{"genre", &d.Genre},
		{"cover_url", &d.CoverURL},
		{"views", &d.Views},
		{"likes", &d.Likes},
		{"quotes", &d.Quotes},
	})
}

type slideDocument struct {
	ID     *wholeNumber `json:"id" validate:"required,gte=0"`
	BookID *wholeNumber `json:"book_id" validate:"required,gte=0"`
	Cover  *string      `json:"cover" validate:"required"`
}

func (d *slideDocument) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	return decodeFields(fields, []field{
		{"id", &d.ID},
		{"book_id", &d.BookID},
		{"cover", &d.Cover},
	})
}

type snapshotDocument struct {
	Books              []bookDocument  `json:"books" validate:"dive"`
	TopBannerSlides    []slideDocument `json:"top_banner_slides" validate:"dive"`
	YouWillLikeSection []*wholeNumber  `json:"you_will_like_section" validate:"dive,required,gte=0"`
}

func (d *snapshotDocument) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	return decodeFields(fields, []field{
		{"books", &d.Books},
		{"top_banner_slides", &d.TopBannerSlides},
		{"you_will_like_section", &d.YouWillLikeSection},
	})
}

type carouselDocument struct {
	Books []bookDocument `json:"books" validate:"dive"`
}

func (d *carouselDocument) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	return decodeFields(fields, []field{{"books", &d.Books}})
}

// field binds an exact JSON key to its destination
type field struct {
	key string
	dst interface{}
}

var jsonNull = []byte("null")

// expectObject rejects anything that does not start as a JSON object
func expectObject(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("expected a JSON object, got %s", describeJSON(trimmed))
	}
	return nil
}

// objectFields splits a JSON object into its raw members. Anything but an
// object, null included, is an error.
func objectFields(data []byte) (map[string]json.RawMessage, error) {
	if err := expectObject(data); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// decodeFields decodes the members present in fields. A null array is
// rejected; a null scalar decodes to nil and fails validation.
func decodeFields(fields map[string]json.RawMessage, targets []field) error {
	for _, f := range targets {
		raw, ok := fields[f.key]
		if !ok {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(raw), jsonNull) && !isPointerField(f.dst) {
			return fmt.Errorf("%s: expected an array, got null", f.key)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
	}
	return nil
}

// isPointerField reports whether dst points at an optional scalar
func isPointerField(dst interface{}) bool {
	switch dst.(type) {
	case **string, **wholeNumber:
		return true
	}
	return false
}

func describeJSON(data []byte) string {
	switch {
	case len(data) == 0:
		return "nothing"
	case bytes.Equal(data, jsonNull):
		return "null"
	case data[0] == '[':
		return "an array"
	case data[0] == '{':
		return "an object"
	case data[0] == '"':
		return "a string"
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		return "a boolean"
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		return "a number"
	default:
		return "invalid JSON"
	}
}

// wholeNumber is a JSON number with an integral value; 3 and 3.0 both
// decode, 3.5 and "3" do not
type wholeNumber int64

func (n *wholeNumber) UnmarshalJSON(data []byte) error {
	text := string(bytes.TrimSpace(data))
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		*n = wholeNumber(i)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("expected an integer, got %s", describeJSON([]byte(text)))
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return fmt.Errorf("expected an integer, got %s", text)
	}
	*n = wholeNumber(f)
	return nil
}

func (d bookDocument) toBook() Book {
	return Book{
		ID:       int64(*d.ID),
		Name:     *d.Name,
		Author:   *d.Author,
		Summary:  *d.Summary,
		Genre:    *d.Genre,
		CoverURL: *d.CoverURL,
		Views:    *d.Views,
		Likes:    *d.Likes,
		Quotes:   *d.Quotes,
	}
}

func toBooks(docs []bookDocument) []Book {
	books := make([]Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, d.toBook())
	}
	return books
}

// DecodeSnapshot parses and validates a json_data document. Absent arrays
// become empty; any malformed element rejects the whole document.
func DecodeSnapshot(raw string, v *validation.Validator) (ConfigSnapshot, error) {
	var doc snapshotDocument
	if err := expectObject([]byte(raw)); err != nil {
		return EmptySnapshot(), &DocumentError{Stage: StageParse, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return EmptySnapshot(), &DocumentError{Stage: StageParse, Err: err}
	}
	if err := v.Validate(doc); err != nil {
		return EmptySnapshot(), &DocumentError{Stage: StageValidate, Err: err}
	}

	snapshot := ConfigSnapshot{
		Books:              toBooks(doc.Books),
		TopBannerSlides:    make([]TopBannerSlide, 0, len(doc.TopBannerSlides)),
		YouWillLikeSection: make([]int64, 0, len(doc.YouWillLikeSection)),
	}
	for _, s := range doc.TopBannerSlides {
		snapshot.TopBannerSlides = append(snapshot.TopBannerSlides, TopBannerSlide{
			ID:     int64(*s.ID),
			BookID: int64(*s.BookID),
			Cover:  *s.Cover,
		})
	}
	for _, id := range doc.YouWillLikeSection {
		snapshot.YouWillLikeSection = append(snapshot.YouWillLikeSection, int64(*id))
	}
	return snapshot, nil
}

// DecodeCarouselData parses and validates a details_carousel document.
// A bare JSON array of books is accepted as shorthand for {"books": [...]}.
func DecodeCarouselData(raw string, v *validation.Validator) (CarouselData, error) {
	var doc carouselDocument
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Books); err != nil {
			return EmptyCarouselData(), &DocumentError{Stage: StageParse, Err: err}
		}
	} else if err := expectObject(trimmed); err != nil {
		return EmptyCarouselData(), &DocumentError{Stage: StageParse, Err: err}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return EmptyCarouselData(), &DocumentError{Stage: StageParse, Err: err}
	}
	if err := v.Validate(doc); err != nil {
		return EmptyCarouselData(), &DocumentError{Stage: StageValidate, Err: err}
	}
	return CarouselData{Books: toBooks(doc.Books)}, nil
}

// ValidateDocument checks raw against the schema registered for key.
// Keys without a schema are accepted as-is.
func ValidateDocument(key, raw string, v *validation.Validator) error {
	switch key {
	case KeyJSONData:
		_, err := DecodeSnapshot(raw, v)
		return err
	case KeyDetailsCarousel:
		_, err := DecodeCarouselData(raw, v)
		return err
	default:
		return nil
	}
}
