package tour

import (
	"strings"
	"testing"
	"time"

	"github.com/tourhub/tourhub/internal/apperr"
)

func validTour() Tour {
	t := New(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	t.Name = "The Forest Hiker"
	t.Duration = 5
	t.MaxGroupSize = 25
	t.Difficulty = Easy
	t.Price = 397
	t.Summary = "Breathtaking hike through the Canadian Banff National Park"
	t.ImageCover = "tour-1-cover.jpg"
	return t
}

func TestPrepareWriteDerivesSlug(t *testing.T) {
	tr := validTour()
	tr.Name = "  The Forest Hiker  "

	if err := tr.PrepareWrite(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if tr.Slug != "the-forest-hiker" {
		t.Fatalf("got slug %q", tr.Slug)
	}
	if tr.RatingsAverage != DefaultRatingsAverage || tr.RatingsQuantity != 0 {
		t.Fatalf("rating defaults lost: %+v", tr)
	}
}

func TestPrepareWriteValidation(t *testing.T) {
	discount := 500.0

	tests := []struct {
		name    string
		mutate  func(*Tour)
		wantMsg string
	}{
		{"short name", func(tr *Tour) { tr.Name = "Short" }, "more or equal than 10"},
		{"long name", func(tr *Tour) { tr.Name = strings.Repeat("x", 41) }, "less or equal than 40"},
		{"bad difficulty", func(tr *Tour) { tr.Difficulty = "extreme" }, "Difficulty is either"},
		{"rating out of range", func(tr *Tour) { tr.RatingsAverage = 6 }, "Rating must be below 5.0"},
		{"discount above price", func(tr *Tour) { tr.PriceDiscount = &discount }, "should be below regular price"},
		{"missing cover", func(tr *Tour) { tr.ImageCover = "" }, "cover image"},
		{"bad point", func(tr *Tour) {
			tr.StartLocation = &Location{Coordinates: []float64{-500, 10}}
		}, "GeoJSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTour()
			tt.mutate(&tr)

			err := tr.PrepareWrite()
			if !apperr.IsKind(err, apperr.ValidationFailed) {
				t.Fatalf("got %v, want ValidationFailed", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("message %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestInputApplyLeavesNilFieldsAlone(t *testing.T) {
	tr := validTour()
	price := 499.0
	Input{Price: &price}.Apply(&tr)

	if tr.Price != 499 || tr.Name != "The Forest Hiker" || tr.Duration != 5 {
		t.Fatalf("unexpected patch result: %+v", tr)
	}
}

func TestDurationWeeksAndRounding(t *testing.T) {
	tr := Tour{Duration: 14}
	if tr.DurationWeeks() != 2 {
		t.Fatalf("got %v", tr.DurationWeeks())
	}
	if RoundRating(4.666666) != 4.7 {
		t.Fatalf("got %v", RoundRating(4.666666))
	}
}
