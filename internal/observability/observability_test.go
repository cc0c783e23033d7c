package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tourhub/tourhub/internal/actorctx"
	"github.com/tourhub/tourhub/internal/domain/user"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestObserveDBCountsErrorsByClass(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("tours.get", func() error { return nil })
	_ = p.ObserveDB("tours.get", func() error { return mongo.ErrNoDocuments })
	_ = p.ObserveDB("tours.get", func() error { return fmt.Errorf("find: %w", context.DeadlineExceeded) })

	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("tours.get", "timeout")); got != 1 {
		t.Fatalf("timeout errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 1 {
		t.Fatalf("a missing document is not a store error, got %d series", got)
	}
}

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "canceled"},
		{context.DeadlineExceeded, "timeout"},
		{mongo.CommandError{Code: 13, Name: "Unauthorized"}, "cmd_Unauthorized"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		if got := classifyDBErr(tt.err); got != tt.want {
			t.Fatalf("classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestLoggerLevelByEnv(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be dropped outside dev, got %s", buf.String())
	}

	newLogger(&buf, "dev").Debug("shown", "k", "v")
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if line["msg"] != "shown" || line["k"] != "v" {
		t.Fatalf("unexpected line: %v", line)
	}
}

func TestContextHandlerAddsActor(t *testing.T) {
	var buf bytes.Buffer
	u := user.New("Jonas", "jonas@example.com")
	u.ID = bson.NewObjectID()

	ctx := actorctx.WithUser(context.Background(), u)
	newLogger(&buf, "prod").InfoContext(ctx, "review created")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if line["actor_id"] != u.ID.Hex() {
		t.Fatalf("actor_id = %v, want %s", line["actor_id"], u.ID.Hex())
	}
	if _, ok := line["trace_id"]; ok {
		t.Fatalf("no span is active, trace_id should be absent: %v", line)
	}
}
