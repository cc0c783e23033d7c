package mongodb

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/tourhub/tourhub/internal/query"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var schema = query.Schema{
	"price":      query.Number,
	"duration":   query.Number,
	"difficulty": query.String,
}

func TestToFilterMergesOperatorsPerField(t *testing.T) {
	params, _ := url.ParseQuery("price[gte]=100&price[lt]=500&difficulty=easy&difficulty=medium")
	spec := query.Translate(params, schema)

	got := toFilter(spec.Predicates)
	want := bson.D{
		{Key: "difficulty", Value: bson.M{"$in": []any{"easy", "medium"}}},
		{Key: "price", Value: bson.M{"$gte": 100.0, "$lt": 500.0}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v\nwant %#v", got, want)
	}
}

func TestToFilterRepeatedOperatorGoesToAnd(t *testing.T) {
	tourID := bson.NewObjectID()
	other := bson.NewObjectID()
	preds := []query.Predicate{
		{Field: "tour", Op: query.OpEq, Value: tourID},
		{Field: "tour", Op: query.OpEq, Value: other},
	}

	got := toFilter(preds, activeOnly)
	if len(got) != 3 || got[1].Key != "active" || got[2].Key != "$and" {
		t.Fatalf("unexpected filter %#v", got)
	}
}

func TestToSort(t *testing.T) {
	tests := []struct {
		tokens []string
		want   bson.D
	}{
		{[]string{"-createdAt"}, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}},
		{[]string{"price", "-ratingsAverage"}, bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}, {Key: "_id", Value: 1}}},
		{[]string{"-id", "id"}, bson.D{{Key: "_id", Value: -1}}},
	}
	for _, tt := range tests {
		if got := toSort(tt.tokens); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("toSort(%v) = %v, want %v", tt.tokens, got, tt.want)
		}
	}
}

func TestToProjectionKeepsOneMode(t *testing.T) {
	tests := []struct {
		fields []string
		want   bson.D
	}{
		{[]string{"-__v"}, bson.D{{Key: "__v", Value: 0}}},
		{[]string{"name", "price", "-__v"}, bson.D{{Key: "name", Value: 1}, {Key: "price", Value: 1}}},
		{[]string{"id", "name"}, bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: 1}}},
	}
	for _, tt := range tests {
		got := toProjection(query.Spec{Fields: tt.fields})
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("toProjection(%v) = %v, want %v", tt.fields, got, tt.want)
		}
	}
}
