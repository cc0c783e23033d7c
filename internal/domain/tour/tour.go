package tour

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/tourhub/tourhub/internal/domain/validation"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Difficulty string

const (
	Easy      Difficulty = "easy"
	Medium    Difficulty = "medium"
	Difficult Difficulty = "difficult"
)

const (
	DefaultRatingsAverage = 4.5
	PointType             = "Point"
)

// Location is a GeoJSON point with optional metadata. Coordinates are [lng, lat].
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

type Tour struct {
	ID              bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string          `bson:"name" json:"name" validate:"required,min=10,max=40"`
	Slug            string          `bson:"slug" json:"slug"`
	Duration        int             `bson:"duration" json:"duration" validate:"required,min=1"`
	MaxGroupSize    int             `bson:"maxGroupSize" json:"maxGroupSize" validate:"required,min=1"`
	Difficulty      Difficulty      `bson:"difficulty" json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64         `bson:"ratingsAverage" json:"ratingsAverage" validate:"min=1,max=5"`
	RatingsQuantity int             `bson:"ratingsQuantity" json:"ratingsQuantity" validate:"min=0"`
	Price           float64         `bson:"price" json:"price" validate:"required,gt=0"`
	PriceDiscount   *float64        `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty"`
	Summary         string          `bson:"summary" json:"summary" validate:"required"`
	Description     string          `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string          `bson:"imageCover" json:"imageCover" validate:"required"`
	Images          []string        `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       time.Time       `bson:"createdAt" json:"createdAt"`
	StartDates      []time.Time     `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool            `bson:"secretTour" json:"secretTour"`
	StartLocation   *Location       `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location      `bson:"locations,omitempty" json:"locations,omitempty"`
	Guides          []bson.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`
	Version         int             `bson:"__v" json:"__v"`
}

// Input carries create and update payloads; nil fields are left untouched.
type Input struct {
	Name          *string         `json:"name"`
	Duration      *int            `json:"duration"`
	MaxGroupSize  *int            `json:"maxGroupSize"`
	Difficulty    *Difficulty     `json:"difficulty"`
	Price         *float64        `json:"price"`
	PriceDiscount *float64        `json:"priceDiscount"`
	Summary       *string         `json:"summary"`
	Description   *string         `json:"description"`
	ImageCover    *string         `json:"imageCover"`
	Images        []string        `json:"images"`
	StartDates    []time.Time     `json:"startDates"`
	SecretTour    *bool           `json:"secretTour"`
	StartLocation *Location       `json:"startLocation"`
	Locations     []Location      `json:"locations"`
	Guides        []bson.ObjectID `json:"guides"`
}

// Stat is one difficulty bucket of the tour statistics.
type Stat struct {
	Difficulty string  `bson:"_id" json:"_id"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthPlan counts tour starts in one month of a year.
type MonthPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

type Distance struct {
	ID       bson.ObjectID `bson:"_id" json:"id"`
	Name     string        `bson:"name" json:"name"`
	Distance float64       `bson:"distance" json:"distance"`
}

var messages = validation.Messages{
	"name.required":         "A tour must have a name",
	"name.max":              "A tour name must have less or equal than 40 characters",
	"name.min":              "A tour name must have more or equal than 10 characters",
	"duration.required":     "A tour must have a duration",
	"maxGroupSize.required": "A tour must have a group size",
	"difficulty.required":   "A tour must have a difficulty",
	"difficulty.oneof":      "Difficulty is either: easy, medium, difficult",
	"ratingsAverage.min":    "Rating must be above 1.0",
	"ratingsAverage.max":    "Rating must be below 5.0",
	"price.required":        "A tour must have a price",
	"summary.required":      "A tour must have a summary",
	"imageCover.required":   "A tour must have a cover image",
}

func New(now time.Time) Tour {
	return Tour{
		RatingsAverage: DefaultRatingsAverage,
		CreatedAt:      now.UTC(),
	}
}

func (in Input) Apply(t *Tour) {
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Duration != nil {
		t.Duration = *in.Duration
	}
	if in.MaxGroupSize != nil {
		t.MaxGroupSize = *in.MaxGroupSize
	}
	if in.Difficulty != nil {
		t.Difficulty = *in.Difficulty
	}
	if in.Price != nil {
		t.Price = *in.Price
	}
	if in.PriceDiscount != nil {
		d := *in.PriceDiscount
		t.PriceDiscount = &d
	}
	if in.Summary != nil {
		t.Summary = *in.Summary
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.ImageCover != nil {
		t.ImageCover = *in.ImageCover
	}
	if in.Images != nil {
		t.Images = in.Images
	}
	if in.StartDates != nil {
		t.StartDates = in.StartDates
	}
	if in.SecretTour != nil {
		t.SecretTour = *in.SecretTour
	}
	if in.StartLocation != nil {
		loc := *in.StartLocation
		t.StartLocation = &loc
	}
	if in.Locations != nil {
		t.Locations = in.Locations
	}
	if in.Guides != nil {
		t.Guides = in.Guides
	}
}

// PrepareWrite trims text, derives the slug and validates the record.
func (t *Tour) PrepareWrite() error {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.Slug = slug.Make(t.Name)

	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = PointType
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = PointType
		}
	}

	if err := validation.Check(t, messages); err != nil {
		return err
	}

	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		return validation.Failed(validation.FieldError{
			Field:   "priceDiscount",
			Rule:    "ltfield",
			Param:   "price",
			Message: fmt.Sprintf("Discount price (%v) should be below regular price", *t.PriceDiscount),
		})
	}
	return checkPoints(t)
}

func checkPoints(t *Tour) error {
	points := make([]Location, 0, len(t.Locations)+1)
	if t.StartLocation != nil {
		points = append(points, *t.StartLocation)
	}
	points = append(points, t.Locations...)

	for _, p := range points {
		if p.Type != PointType || len(p.Coordinates) != 2 ||
			math.Abs(p.Coordinates[0]) > 180 || math.Abs(p.Coordinates[1]) > 90 {
			return validation.Failed(validation.FieldError{
				Field:   "locations",
				Rule:    "geojson",
				Message: "Locations must be GeoJSON points as [lng, lat]",
			})
		}
	}
	return nil
}

// DurationWeeks is derived, never stored.
func (t Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// RoundRating keeps one decimal, as ratings are displayed.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
