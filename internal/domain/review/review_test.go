package review

import (
	"testing"
	"time"

	"github.com/tourhub/tourhub/internal/apperr"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestPrepareWrite(t *testing.T) {
	valid := func() Review {
		r := New(time.Now())
		r.Review = "  Amazing tour  "
		r.Rating = 5
		r.Tour = bson.NewObjectID()
		r.User = bson.NewObjectID()
		return r
	}

	r := valid()
	if err := r.PrepareWrite(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if r.Review != "Amazing tour" {
		t.Fatalf("got %q, want trimmed text", r.Review)
	}

	tests := []struct {
		name   string
		mutate func(*Review)
	}{
		{"blank text", func(r *Review) { r.Review = "   " }},
		{"missing rating", func(r *Review) { r.Rating = 0 }},
		{"rating too high", func(r *Review) { r.Rating = 5.5 }},
		{"no tour", func(r *Review) { r.Tour = bson.ObjectID{} }},
		{"no author", func(r *Review) { r.User = bson.ObjectID{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			if err := r.PrepareWrite(); !apperr.IsKind(err, apperr.ValidationFailed) {
				t.Fatalf("got %v, want ValidationFailed", err)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != (Summary{}) {
		t.Fatalf("got %+v, want zero summary", got)
	}
	got := Summarize([]Review{{Rating: 5}, {Rating: 4}, {Rating: 4}})
	if got.Quantity != 3 || got.Average < 4.33 || got.Average > 4.34 {
		t.Fatalf("got %+v", got)
	}
}
