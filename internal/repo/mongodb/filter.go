package mongodb

import (
	"errors"
	"strings"

	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// toFilter merges predicates on the same field into one operator document.
// A repeated operator on a field goes to $and so both constraints hold.
func toFilter(preds []query.Predicate, extra ...bson.E) bson.D {
	ops := map[string]bson.M{}
	var order []string
	var and bson.A

	for _, p := range preds {
		field := repo.StoreField(p.Field)
		op := "$" + string(p.Op)

		m, ok := ops[field]
		if !ok {
			m = bson.M{}
			ops[field] = m
			order = append(order, field)
		}
		if _, taken := m[op]; taken {
			and = append(and, bson.D{{Key: field, Value: bson.M{op: p.Value}}})
			continue
		}
		m[op] = p.Value
	}

	filter := make(bson.D, 0, len(order)+len(extra)+1)
	for _, field := range order {
		filter = append(filter, bson.E{Key: field, Value: ops[field]})
	}
	filter = append(filter, extra...)
	if len(and) > 0 {
		filter = append(filter, bson.E{Key: "$and", Value: and})
	}
	return filter
}

func toSort(tokens []string) bson.D {
	sort := make(bson.D, 0, len(tokens)+1)
	seen := map[string]bool{}
	for _, t := range tokens {
		field, desc := strings.CutPrefix(t, "-")
		field = repo.StoreField(field)
		if seen[field] {
			continue
		}
		seen[field] = true
		dir := 1
		if desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: field, Value: dir})
	}
	// ties resolve in insertion order
	if !seen["_id"] {
		sort = append(sort, bson.E{Key: "_id", Value: 1})
	}
	return sort
}

// toProjection keeps only one mode, since the store rejects mixed projections.
func toProjection(spec query.Spec) bson.D {
	include := spec.Inclusive()
	proj := bson.D{}
	for _, f := range spec.Fields {
		name, excluded := strings.CutPrefix(f, "-")
		if excluded == include {
			continue
		}
		v := 1
		if excluded {
			v = 0
		}
		proj = append(proj, bson.E{Key: repo.StoreField(name), Value: v})
	}
	return proj
}

func findOptions(spec query.Spec) *options.FindOptionsBuilder {
	opts := options.Find().
		SetSort(toSort(spec.Sort)).
		SetSkip(int64(spec.Skip))
	if spec.Limit > 0 {
		opts.SetLimit(int64(spec.Limit))
	}
	if proj := toProjection(spec); len(proj) > 0 {
		opts.SetProjection(proj)
	}
	return opts
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repo.ErrNotFound
	}
	return err
}

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
