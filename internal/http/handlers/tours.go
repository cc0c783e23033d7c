package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/cache"
	"github.com/tourhub/tourhub/internal/catalog"
	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/observability"
	"github.com/tourhub/tourhub/internal/query"
)

type ToursService interface {
	ListTours(ctx context.Context, spec query.Spec) ([]catalog.TourView, error)
	GetTour(ctx context.Context, id string) (catalog.TourView, error)
	CreateTour(ctx context.Context, in tour.Input) (catalog.TourView, error)
	UpdateTour(ctx context.Context, id string, in tour.Input) (catalog.TourView, error)
	DeleteTour(ctx context.Context, id string) error
	TourStats(ctx context.Context) ([]tour.Stat, error)
	MonthlyPlan(ctx context.Context, year int) ([]tour.MonthPlan, error)
	ToursWithin(ctx context.Context, distance, latlng, unit string) ([]catalog.TourView, error)
	Distances(ctx context.Context, latlng, unit string) ([]tour.Distance, error)
}

// toursCacheNS prefixes every cached tour list page.
const toursCacheNS = "tours"

// topCheap is the preset behind the "top 5 cheap" alias.
var topCheap = url.Values{
	"limit":  {"5"},
	"sort":   {"-ratingsAverage,price"},
	"fields": {"name,price,ratingsAverage,summary,difficulty"},
}

type ToursHandler struct {
	tours ToursService
	cache *cache.Cache
	prom  *observability.Prom
}

func NewToursHandler(tours ToursService) *ToursHandler {
	return &ToursHandler{tours: tours}
}

// NewToursHandlerWithCache serves list pages from c until a tour or review
// write clears it.
func NewToursHandlerWithCache(tours ToursService, c *cache.Cache, prom *observability.Prom) *ToursHandler {
	return &ToursHandler{tours: tours, cache: c, prom: prom}
}

// AliasTopTours rewrites the query string to the top 5 cheap preset.
func AliasTopTours(ctx *gin.Context) {
	ctx.Request.URL.RawQuery = query.Override(ctx.Request.URL.Query(), topCheap).Encode()
	ctx.Next()
}

func (h *ToursHandler) List(ctx *gin.Context) {
	spec := query.Translate(ctx.Request.URL.Query(), catalog.TourSchema)

	key := spec.CacheKey(toursCacheNS)
	if payload, ok := h.cached(key); ok {
		RespondJSONWithETag(ctx, http.StatusOK, payload)
		return
	}

	tours, err := h.tours.ListTours(ctx.Request.Context(), spec)
	if err != nil {
		Fail(ctx, err)
		return
	}
	items, err := query.Project(tours, spec.Fields)
	if err != nil {
		Fail(ctx, err)
		return
	}

	payload := listPayload(items, len(tours))
	if h.cache != nil {
		h.cache.Set(key, payload)
	}
	RespondJSONWithETag(ctx, http.StatusOK, payload)
}

func (h *ToursHandler) Get(ctx *gin.Context) {
	t, err := h.tours.GetTour(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondDoc(ctx, http.StatusOK, t)
}

func (h *ToursHandler) Create(ctx *gin.Context) {
	var req tour.Input
	if !BindJSON(ctx, &req) {
		return
	}

	t, err := h.tours.CreateTour(ctx.Request.Context(), req)
	if err != nil {
		Fail(ctx, err)
		return
	}
	h.invalidate()
	RespondDoc(ctx, http.StatusCreated, t)
}

func (h *ToursHandler) Update(ctx *gin.Context) {
	var req tour.Input
	if !BindJSON(ctx, &req) {
		return
	}

	t, err := h.tours.UpdateTour(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		Fail(ctx, err)
		return
	}
	h.invalidate()
	RespondDoc(ctx, http.StatusOK, t)
}

func (h *ToursHandler) Delete(ctx *gin.Context) {
	if err := h.tours.DeleteTour(ctx.Request.Context(), ctx.Param("id")); err != nil {
		Fail(ctx, err)
		return
	}
	h.invalidate()
	RespondNoContent(ctx)
}

func (h *ToursHandler) Stats(ctx *gin.Context) {
	stats, err := h.tours.TourStats(ctx.Request.Context())
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondData(ctx, http.StatusOK, gin.H{"stats": stats})
}

func (h *ToursHandler) MonthlyPlan(ctx *gin.Context) {
	year, err := strconv.Atoi(ctx.Param("year"))
	if err != nil || year < 1 {
		Fail(ctx, apperr.New(apperr.BadRequest, "Please provide a valid year."))
		return
	}

	plan, err := h.tours.MonthlyPlan(ctx.Request.Context(), year)
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondData(ctx, http.StatusOK, gin.H{"plan": plan})
}

func (h *ToursHandler) Within(ctx *gin.Context) {
	tours, err := h.tours.ToursWithin(ctx.Request.Context(), ctx.Param("distance"), ctx.Param("latlng"), ctx.Param("unit"))
	if err != nil {
		Fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, listPayload(tours, len(tours)))
}

func (h *ToursHandler) Distances(ctx *gin.Context) {
	dists, err := h.tours.Distances(ctx.Request.Context(), ctx.Param("latlng"), ctx.Param("unit"))
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondDoc(ctx, http.StatusOK, dists)
}

func (h *ToursHandler) cached(key string) (any, bool) {
	if h.cache == nil {
		return nil, false
	}
	payload, ok := h.cache.Get(key)
	if h.prom != nil {
		result := "miss"
		if ok {
			result = "hit"
		}
		h.prom.CacheLookups.WithLabelValues(result).Inc()
	}
	return payload, ok
}

func (h *ToursHandler) invalidate() {
	if h.cache != nil {
		h.cache.DeletePrefix(toursCacheNS + ":")
	}
}
