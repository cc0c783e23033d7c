// Package repo holds what the store adapters (mongo, memory) share: sentinel
// errors, id parsing and the field name mapping used by query specs.
package repo

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
	ErrInvalidID = errors.New("invalid id")
)

// DuplicateError names the unique field that rejected a write.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return "duplicate value for " + e.Field + ": " + e.Value
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

func ParseID(s string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return bson.ObjectID{}, ErrInvalidID
	}
	return id, nil
}

// StoreField maps a query field name to the stored document field.
func StoreField(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}

// EarthRadius in the supported distance units, for $centerSphere radii.
var EarthRadius = map[string]float64{
	"mi": 3963.2,
	"km": 6378.1,
}

// MetersTo converts meters into the supported distance units.
var MetersTo = map[string]float64{
	"mi": 0.000621371,
	"km": 0.001,
}
