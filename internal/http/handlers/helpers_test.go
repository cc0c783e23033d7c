package handlers_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/account"
	"github.com/tourhub/tourhub/internal/catalog"
	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/http/handlers"
	"github.com/tourhub/tourhub/internal/http/middlewares"
	"github.com/tourhub/tourhub/internal/query"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// setupRouter mounts the error middleware the way the real router does.
func setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.RequestID(), middlewares.NewErrorHandler(quietLog, false, "").Handle())
	return r
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// fakeTours implements handlers.ToursService. Unset methods panic through the
// nil embedded interface, which keeps each test honest about what it calls.
type fakeTours struct {
	handlers.ToursService

	listFn   func(ctx context.Context, spec query.Spec) ([]catalog.TourView, error)
	createFn func(ctx context.Context, in tour.Input) (catalog.TourView, error)
	planFn   func(ctx context.Context, year int) ([]tour.MonthPlan, error)
}

func (f *fakeTours) ListTours(ctx context.Context, spec query.Spec) ([]catalog.TourView, error) {
	return f.listFn(ctx, spec)
}

func (f *fakeTours) CreateTour(ctx context.Context, in tour.Input) (catalog.TourView, error) {
	return f.createFn(ctx, in)
}

func (f *fakeTours) MonthlyPlan(ctx context.Context, year int) ([]tour.MonthPlan, error) {
	return f.planFn(ctx, year)
}

type fakeReviews struct {
	handlers.ReviewsService

	listFn   func(ctx context.Context, spec query.Spec) ([]catalog.ReviewView, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeReviews) ListReviews(ctx context.Context, spec query.Spec) ([]catalog.ReviewView, error) {
	return f.listFn(ctx, spec)
}

func (f *fakeReviews) DeleteReview(ctx context.Context, id string) error {
	return f.deleteFn(ctx, id)
}

type fakeAccounts struct {
	handlers.AccountService

	signupFn       func(ctx context.Context, in account.SignupInput, profileURL string) (account.Session, error)
	requestResetFn func(ctx context.Context, email string, resetURL func(raw string) string) error
}

func (f *fakeAccounts) Signup(ctx context.Context, in account.SignupInput, profileURL string) (account.Session, error) {
	return f.signupFn(ctx, in, profileURL)
}

func (f *fakeAccounts) RequestReset(ctx context.Context, email string, resetURL func(raw string) string) error {
	return f.requestResetFn(ctx, email, resetURL)
}

func sampleTours(names ...string) []catalog.TourView {
	out := make([]catalog.TourView, 0, len(names))
	for _, n := range names {
		out = append(out, catalog.TourView{Tour: tour.Tour{Name: n, Price: 397}, Guides: []user.Summary{}})
	}
	return out
}
