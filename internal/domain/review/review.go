package review

import (
	"strings"
	"time"

	"github.com/tourhub/tourhub/internal/domain/validation"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Review struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string        `bson:"review" json:"review" validate:"required"`
	Rating    float64       `bson:"rating" json:"rating" validate:"required,min=1,max=5"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	Tour      bson.ObjectID `bson:"tour" json:"tour"`
	User      bson.ObjectID `bson:"user" json:"user"`
	Version   int           `bson:"__v" json:"__v"`
}

type Input struct {
	Review *string        `json:"review"`
	Rating *float64       `json:"rating"`
	Tour   *bson.ObjectID `json:"tour"`
	User   *bson.ObjectID `json:"user"`
}

// Summary is the rating aggregate of one tour.
type Summary struct {
	Quantity int
	Average  float64
}

var messages = validation.Messages{
	"review.required": "Review cannot be empty!",
	"rating.required": "A review must have a rating",
	"rating.min":      "Rating must be at least 1",
	"rating.max":      "Rating must be at most 5",
}

func New(now time.Time) Review {
	return Review{CreatedAt: now.UTC()}
}

func (in Input) Apply(r *Review) {
	if in.Review != nil {
		r.Review = *in.Review
	}
	if in.Rating != nil {
		r.Rating = *in.Rating
	}
	if in.Tour != nil {
		r.Tour = *in.Tour
	}
	if in.User != nil {
		r.User = *in.User
	}
}

func (r *Review) PrepareWrite() error {
	r.Review = strings.TrimSpace(r.Review)

	if err := validation.Check(r, messages); err != nil {
		return err
	}

	var missing []validation.FieldError
	if r.Tour.IsZero() {
		missing = append(missing, validation.FieldError{Field: "tour", Rule: "required", Message: "Review must belong to a tour."})
	}
	if r.User.IsZero() {
		missing = append(missing, validation.FieldError{Field: "user", Rule: "required", Message: "Review must belong to a user."})
	}
	if len(missing) > 0 {
		return validation.Failed(missing...)
	}
	return nil
}

// Summarize aggregates ratings; an empty set yields the zero Summary.
func Summarize(reviews []Review) Summary {
	if len(reviews) == 0 {
		return Summary{}
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	return Summary{Quantity: len(reviews), Average: sum / float64(len(reviews))}
}
