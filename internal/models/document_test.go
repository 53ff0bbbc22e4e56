package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/book-catalog/internal/validation"
)

const validBookJSON = `{"id":1,"name":"A","author":"B","summary":"","genre":"Fiction","cover_url":"","views":"0","likes":"0","quotes":"0"}`

func TestDecodeSnapshot_ValidDocument(t *testing.T) {
	v := validation.New()
	raw := `{"books":[` + validBookJSON + `],"top_banner_slides":[],"you_will_like_section":[]}`

	snapshot, err := DecodeSnapshot(raw, v)
	require.NoError(t, err)

	expected := ConfigSnapshot{
		Books: []Book{{
			ID: 1, Name: "A", Author: "B", Summary: "", Genre: "Fiction",
			CoverURL: "", Views: "0", Likes: "0", Quotes: "0",
		}},
		TopBannerSlides:    []TopBannerSlide{},
		YouWillLikeSection: []int64{},
	}
	assert.Equal(t, expected, snapshot)

	// Re-encoding yields the same document
	encoded, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(encoded))
}

func TestDecodeSnapshot_DefaultsAbsentArrays(t *testing.T) {
	snapshot, err := DecodeSnapshot(`{"books":[`+validBookJSON+`]}`, validation.New())
	require.NoError(t, err)

	assert.Len(t, snapshot.Books, 1)
	assert.NotNil(t, snapshot.TopBannerSlides)
	assert.Empty(t, snapshot.TopBannerSlides)
	assert.NotNil(t, snapshot.YouWillLikeSection)
	assert.Empty(t, snapshot.YouWillLikeSection)
}

func TestDecodeSnapshot_FullDocument(t *testing.T) {
	raw := `{
		"books": [` + validBookJSON + `,
			{"id":0,"name":"Zero","author":"Z","summary":"s","genre":"Drama","cover_url":"https://x/0.png","views":"1.2k","likes":"300","quotes":"12"}],
		"top_banner_slides": [{"id":1,"book_id":1,"cover":"https://x/banner.png"},{"id":2,"book_id":99,"cover":""}],
		"you_will_like_section": [0, 1, 42],
		"unknown_section": {"ignored": true}
	}`

	snapshot, err := DecodeSnapshot(raw, validation.New())
	require.NoError(t, err)

	assert.Len(t, snapshot.Books, 2)
	assert.Equal(t, []TopBannerSlide{
		{ID: 1, BookID: 1, Cover: "https://x/banner.png"},
		{ID: 2, BookID: 99, Cover: ""},
	}, snapshot.TopBannerSlides)
	assert.Equal(t, []int64{0, 1, 42}, snapshot.YouWillLikeSection)

	book, ok := snapshot.BookByID(0)
	require.True(t, ok)
	assert.Equal(t, "Zero", book.Name)
	_, ok = snapshot.BookByID(99)
	assert.False(t, ok)
}

func TestDecodeSnapshot_IntegralFloatIDs(t *testing.T) {
	raw := `{
		"books": [{"id":1.0,"name":"A","author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}],
		"top_banner_slides": [{"id":2e0,"book_id":1.00,"cover":""}],
		"you_will_like_section": [1.0, 3]
	}`

	snapshot, err := DecodeSnapshot(raw, validation.New())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.Books[0].ID)
	assert.Equal(t, []TopBannerSlide{{ID: 2, BookID: 1, Cover: ""}}, snapshot.TopBannerSlides)
	assert.Equal(t, []int64{1, 3}, snapshot.YouWillLikeSection)
}

func TestDecodeSnapshot_UnknownKeysIgnored(t *testing.T) {
	// keys are matched exactly, so a mis-cased section is unknown and absent
	snapshot, err := DecodeSnapshot(`{"Books":[{"id":1}],"extra":null}`, validation.New())
	require.NoError(t, err)
	assert.Equal(t, EmptySnapshot(), snapshot)
}

func TestDecodeSnapshot_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		stage     string
		wantField string
	}{
		{name: "empty string", raw: "", stage: StageParse},
		{name: "not json", raw: "not json at all", stage: StageParse},
		{name: "truncated", raw: `{"books":[`, stage: StageParse},
		{name: "array root", raw: `[]`, stage: StageParse},
		{name: "books not an array", raw: `{"books":{}}`, stage: StageParse},
		{name: "string id", raw: `{"books":[{"id":"1","name":"A","author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`, stage: StageParse},
		{name: "fractional id", raw: `{"books":[{"id":1.5,"name":"A","author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`, stage: StageParse},
		{name: "numeric views", raw: `{"books":[{"id":1,"name":"A","author":"B","summary":"","genre":"G","cover_url":"","views":10,"likes":"","quotes":""}]}`, stage: StageParse},
		{name: "missing required fields", raw: `{"books":[{"id":1}]}`, stage: StageValidate, wantField: "books[0].name"},
		{name: "negative id", raw: `{"books":[{"id":-1,"name":"A","author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`, stage: StageValidate, wantField: "books[0].id"},
		{name: "empty genre", raw: `{"books":[{"id":1,"name":"A","author":"B","summary":"","genre":"","cover_url":"","views":"","likes":"","quotes":""}]}`, stage: StageValidate, wantField: "books[0].genre"},
		{name: "missing summary", raw: `{"books":[{"id":1,"name":"A","author":"B","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`, stage: StageValidate, wantField: "books[0].summary"},
		{name: "null name", raw: `{"books":[{"id":1,"name":null,"author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`, stage: StageValidate, wantField: "books[0].name"},
		{name: "second element bad", raw: `{"books":[` + validBookJSON + `,{"id":2,"name":"","author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`, stage: StageValidate, wantField: "books[1].name"},
		{name: "slide negative book id", raw: `{"top_banner_slides":[{"id":1,"book_id":-3,"cover":""}]}`, stage: StageValidate, wantField: "top_banner_slides[0].book_id"},
		{name: "slide missing cover", raw: `{"top_banner_slides":[{"id":1,"book_id":3}]}`, stage: StageValidate, wantField: "top_banner_slides[0].cover"},
		{name: "null root", raw: `null`, stage: StageParse},
		{name: "string root", raw: `"json_data"`, stage: StageParse},
		{name: "null books", raw: `{"books":null}`, stage: StageParse},
		{name: "null slides", raw: `{"top_banner_slides":null}`, stage: StageParse},
		{name: "null recommendations", raw: `{"you_will_like_section":null}`, stage: StageParse},
		{name: "null book element", raw: `{"books":[null]}`, stage: StageParse},
		{name: "string recommendation", raw: `{"you_will_like_section":["1"]}`, stage: StageParse},
		{name: "mis-cased keys", raw: `{"books":[{"ID":1,"NAME":"A","Author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`, stage: StageValidate, wantField: "books[0].id"},
		{name: "null recommendation element", raw: `{"you_will_like_section":[1,null]}`, stage: StageValidate, wantField: "you_will_like_section[1]"},
		{name: "negative recommendation", raw: `{"you_will_like_section":[1,-2]}`, stage: StageValidate, wantField: "you_will_like_section[1]"},
	}

	v := validation.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot, err := DecodeSnapshot(tt.raw, v)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDocument))
			assert.Equal(t, EmptySnapshot(), snapshot)

			var docErr *DocumentError
			require.True(t, errors.As(err, &docErr))
			assert.Equal(t, tt.stage, docErr.Stage)

			if tt.wantField != "" {
				fields, ok := validation.Fields(err)
				require.True(t, ok, "expected a validation error, got %v", err)
				assert.Contains(t, fields, tt.wantField)
			}
		})
	}
}

func TestDecodeCarouselData(t *testing.T) {
	v := validation.New()

	t.Run("object form", func(t *testing.T) {
		data, err := DecodeCarouselData(`{"books":[`+validBookJSON+`]}`, v)
		require.NoError(t, err)
		require.Len(t, data.Books, 1)
		assert.Equal(t, int64(1), data.Books[0].ID)
	})

	t.Run("bare array form", func(t *testing.T) {
		data, err := DecodeCarouselData(` [`+validBookJSON+`]`, v)
		require.NoError(t, err)
		assert.Len(t, data.Books, 1)
	})

	t.Run("empty array default", func(t *testing.T) {
		data, err := DecodeCarouselData(`[]`, v)
		require.NoError(t, err)
		assert.Equal(t, EmptyCarouselData(), data)
	})

	t.Run("absent books", func(t *testing.T) {
		data, err := DecodeCarouselData(`{}`, v)
		require.NoError(t, err)
		assert.NotNil(t, data.Books)
		assert.Empty(t, data.Books)
	})

	t.Run("invalid element", func(t *testing.T) {
		data, err := DecodeCarouselData(`{"books":[{"id":1}]}`, v)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidDocument))
		assert.Equal(t, EmptyCarouselData(), data)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeCarouselData(`<html>`, v)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	for _, raw := range []string{`null`, `{"books":null}`, `[null]`, `{"books":[{"Id":1,"name":"A","author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`} {
		t.Run("rejects "+raw, func(t *testing.T) {
			data, err := DecodeCarouselData(raw, v)
			assert.ErrorIs(t, err, ErrInvalidDocument)
			assert.Equal(t, EmptyCarouselData(), data)
		})
	}
}

func TestValidateDocument(t *testing.T) {
	v := validation.New()
	assert.NoError(t, ValidateDocument(KeyJSONData, `{}`, v))
	assert.Error(t, ValidateDocument(KeyJSONData, `{"books":[{"id":1}]}`, v))
	assert.Error(t, ValidateDocument(KeyDetailsCarousel, `nope`, v))
	assert.NoError(t, ValidateDocument("feature_flags", `anything`, v))
}

func TestEmptySnapshot(t *testing.T) {
	encoded, err := json.Marshal(EmptySnapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"books":[],"top_banner_slides":[],"you_will_like_section":[]}`, string(encoded))
	assert.True(t, EmptySnapshot().IsEmpty())
}
