package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tourhub/tourhub/internal/account"
	"github.com/tourhub/tourhub/internal/cache"
	"github.com/tourhub/tourhub/internal/catalog"
	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/http/handlers"
	"github.com/tourhub/tourhub/internal/query"
)

type listResponse struct {
	Status  string `json:"status"`
	Results int    `json:"results"`
	Data    struct {
		Data []map[string]any `json:"data"`
	} `json:"data"`
}

func TestToursListIsCachedUntilWrite(t *testing.T) {
	calls := 0
	svc := &fakeTours{
		listFn: func(ctx context.Context, spec query.Spec) ([]catalog.TourView, error) {
			calls++
			return sampleTours("The Forest Hiker", "The Sea Explorer"), nil
		},
		createFn: func(ctx context.Context, in tour.Input) (catalog.TourView, error) {
			return catalog.TourView{Tour: tour.Tour{Name: *in.Name}}, nil
		},
	}
	h := handlers.NewToursHandlerWithCache(svc, cache.New(time.Minute), nil)

	r := setupRouter()
	r.GET("/api/v1/tours", h.List)
	r.POST("/api/v1/tours", h.Create)

	first := do(r, http.MethodGet, "/api/v1/tours?sort=price", "")
	if first.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", first.Code, http.StatusOK, first.Body.String())
	}
	var body listResponse
	if err := json.Unmarshal(first.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Results != 2 || body.Status != "success" {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if _, ok := body.Data.Data[0]["__v"]; ok {
		t.Fatalf("__v must be hidden by default: %v", body.Data.Data[0])
	}

	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	second := do(r, http.MethodGet, "/api/v1/tours?sort=price", "", "If-None-Match", etag)
	if second.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want %d", second.Code, http.StatusNotModified)
	}
	if calls != 1 {
		t.Fatalf("store called %d times, want 1", calls)
	}

	created := do(r, http.MethodPost, "/api/v1/tours", `{"name":"The Park Camper"}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", created.Code, http.StatusCreated, created.Body.String())
	}

	do(r, http.MethodGet, "/api/v1/tours?sort=price", "")
	if calls != 2 {
		t.Fatalf("a write must clear cached pages, store called %d times", calls)
	}
}

func TestAliasTopToursOverridesQuery(t *testing.T) {
	var got query.Spec
	svc := &fakeTours{
		listFn: func(ctx context.Context, spec query.Spec) ([]catalog.TourView, error) {
			got = spec
			return sampleTours("The Forest Hiker"), nil
		},
	}
	h := handlers.NewToursHandler(svc)

	r := setupRouter()
	r.GET("/api/v1/tours/top-5-cheap", handlers.AliasTopTours, h.List)

	w := do(r, http.MethodGet, "/api/v1/tours/top-5-cheap?limit=50&difficulty=easy", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if got.Limit != 5 {
		t.Fatalf("limit = %d, want 5", got.Limit)
	}
	if strings.Join(got.Sort, ",") != "-ratingsAverage,price" {
		t.Fatalf("sort = %v", got.Sort)
	}
	if len(got.Predicates) != 1 || got.Predicates[0].Field != "difficulty" {
		t.Fatalf("filters outside the preset should survive: %+v", got.Predicates)
	}

	var body listResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if _, ok := body.Data.Data[0]["guides"]; ok {
		t.Fatalf("projection should keep only preset fields: %v", body.Data.Data[0])
	}
}

func TestMonthlyPlanRejectsBadYear(t *testing.T) {
	svc := &fakeTours{
		planFn: func(ctx context.Context, year int) ([]tour.MonthPlan, error) {
			return []tour.MonthPlan{{Month: 7, NumTourStarts: 2}}, nil
		},
	}
	h := handlers.NewToursHandler(svc)
	r := setupRouter()
	r.GET("/api/v1/tours/monthly-plan/:year", h.MonthlyPlan)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/tours/monthly-plan/2026", http.StatusOK},
		{"/api/v1/tours/monthly-plan/next", http.StatusBadRequest},
		{"/api/v1/tours/monthly-plan/-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(r, http.MethodGet, tt.path, "")
		if w.Code != tt.want {
			t.Fatalf("%s: got status %d, want %d, body=%s", tt.path, w.Code, tt.want, w.Body.String())
		}
	}
}

func TestSignUpSetsSessionCookie(t *testing.T) {
	var gotProfileURL string
	svc := &fakeAccounts{
		signupFn: func(ctx context.Context, in account.SignupInput, profileURL string) (account.Session, error) {
			gotProfileURL = profileURL
			u := user.New(in.Name, in.Email)
			u.PasswordHash = "hash"
			return account.Session{User: u, Token: "signed.jwt.token"}, nil
		},
	}
	h := handlers.NewAuthHandler(svc, handlers.CookieConfig{TTL: 24 * time.Hour})
	r := setupRouter()
	r.POST("/api/v1/users/signup", h.SignUp)

	w := do(r, http.MethodPost, "/api/v1/users/signup",
		`{"name":"Jonas","email":"jonas@example.com","password":"pass1234","passwordConfirm":"pass1234"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	if gotProfileURL != "http://example.com/me" {
		t.Fatalf("profile url = %q", gotProfileURL)
	}

	cookie := w.Result().Cookies()
	if len(cookie) != 1 || cookie[0].Name != "jwt" || cookie[0].Value != "signed.jwt.token" || !cookie[0].HttpOnly {
		t.Fatalf("unexpected cookies: %+v", cookie)
	}
	if strings.Contains(w.Body.String(), "hash") || strings.Contains(w.Body.String(), "password") {
		t.Fatalf("password material leaked: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"token":"signed.jwt.token"`) {
		t.Fatalf("token missing from body: %s", w.Body.String())
	}
}

func TestLogoutOverwritesCookie(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeAccounts{}, handlers.CookieConfig{TTL: time.Hour})
	r := setupRouter()
	r.GET("/api/v1/users/logout", h.Logout)

	w := do(r, http.MethodGet, "/api/v1/users/logout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	c := w.Result().Cookies()
	if len(c) != 1 || c[0].Value != "loggedout" || c[0].MaxAge != 5 {
		t.Fatalf("unexpected cookies: %+v", c)
	}
}

func TestForgotPasswordBuildsResetURL(t *testing.T) {
	var link string
	svc := &fakeAccounts{
		requestResetFn: func(ctx context.Context, email string, resetURL func(raw string) string) error {
			if email == "ghost@example.com" {
				return errors.New("should not be reached")
			}
			link = resetURL("abc123")
			return nil
		},
	}
	h := handlers.NewAuthHandler(svc, handlers.CookieConfig{})
	r := setupRouter()
	r.POST("/api/v1/users/forgotPassword", h.ForgotPassword)

	w := do(r, http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"jonas@example.com"}`, "X-Forwarded-Proto", "https")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if link != "https://example.com/api/v1/users/resetPassword/abc123" {
		t.Fatalf("reset url = %q", link)
	}

	missing := do(r, http.MethodPost, "/api/v1/users/forgotPassword", `{}`)
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", missing.Code, http.StatusBadRequest)
	}
}

func TestUsersCreatePointsToSignup(t *testing.T) {
	h := handlers.NewUsersHandler(&fakeAccounts{})
	r := setupRouter()
	r.POST("/api/v1/users", h.Create)

	w := do(r, http.MethodPost, "/api/v1/users", `{"name":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(w.Body.String(), "/signup") {
		t.Fatalf("message should point to signup: %s", w.Body.String())
	}
}

func TestNestedReviewsFilterByTour(t *testing.T) {
	var got query.Spec
	svc := &fakeReviews{
		listFn: func(ctx context.Context, spec query.Spec) ([]catalog.ReviewView, error) {
			got = spec
			return nil, nil
		},
	}
	h := handlers.NewReviewsHandler(svc, nil)
	r := setupRouter()
	r.GET("/api/v1/tours/:id/reviews", h.List)

	bad := do(r, http.MethodGet, "/api/v1/tours/not-an-id/reviews", "")
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", bad.Code, http.StatusBadRequest, bad.Body.String())
	}

	ok := do(r, http.MethodGet, "/api/v1/tours/5c88fa8cf4afda39709c2951/reviews?rating[gte]=4", "")
	if ok.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", ok.Code, http.StatusOK, ok.Body.String())
	}
	if len(got.Predicates) != 2 || got.Predicates[0].Field != "tour" {
		t.Fatalf("tour predicate must come first: %+v", got.Predicates)
	}
}

func TestReviewDeleteClearsTourCache(t *testing.T) {
	c := cache.New(time.Minute)
	c.Set("tours:v1:q=", "page")
	svc := &fakeReviews{
		deleteFn: func(ctx context.Context, id string) error { return nil },
	}
	h := handlers.NewReviewsHandler(svc, c)
	r := setupRouter()
	r.DELETE("/api/v1/reviews/:reviewId", h.Delete)

	w := do(r, http.MethodDelete, "/api/v1/reviews/5c8a34ed14eb5c17645c9108", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNoContent)
	}
	if c.Len() != 0 {
		t.Fatalf("tour pages should be dropped after a rating change")
	}
}

func TestReadyzReportsStore(t *testing.T) {
	tests := []struct {
		name string
		ping func(ctx context.Context) error
		want int
	}{
		{"no store", nil, http.StatusOK},
		{"store up", func(ctx context.Context) error { return nil }, http.StatusOK},
		{"store down", func(ctx context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewHealthHandler(tt.ping)
			r := setupRouter()
			r.GET("/readyz", h.Readyz)

			w := do(r, http.MethodGet, "/readyz", "")
			if w.Code != tt.want {
				t.Fatalf("got status %d, want %d", w.Code, tt.want)
			}
		})
	}
}
