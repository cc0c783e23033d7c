package observability

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

func (p *Prom) ObserveDB(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyDBErr(err error) string {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return "duplicate_key"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case mongo.IsNetworkError(err):
		return "network"
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Name != "" {
		return "cmd_" + cmdErr.Name
	}
	return "unknown"
}
