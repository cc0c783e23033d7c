package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/repo"
)

// ToursWithin lists tours starting within distance (in unit) of "lat,lng".
func (s *Service) ToursWithin(ctx context.Context, distance, latlng, unit string) ([]TourView, error) {
	lat, lng, err := parseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	radius, ok := repo.EarthRadius[unit]
	if !ok {
		return nil, badUnit()
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(distance), 64)
	if err != nil || d <= 0 {
		return nil, apperr.New(apperr.BadRequest, "Please provide a positive distance.")
	}

	tours, err := s.tours.Within(ctx, lng, lat, d/radius)
	if err != nil {
		return nil, err
	}
	return s.tourViews(ctx, tours)
}

// Distances lists every located tour by its distance, in unit, from "lat,lng".
func (s *Service) Distances(ctx context.Context, latlng, unit string) ([]tour.Distance, error) {
	lat, lng, err := parseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	multiplier, ok := repo.MetersTo[unit]
	if !ok {
		return nil, badUnit()
	}
	return s.tours.Distances(ctx, lng, lat, multiplier)
}

func parseLatLng(raw string) (lat, lng float64, err error) {
	latRaw, lngRaw, ok := strings.Cut(raw, ",")
	if ok {
		lat, err = strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
		if err == nil {
			lng, err = strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
		}
	}
	if !ok || err != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, apperr.New(apperr.BadRequest, "Please provide latitude and longitude in the format lat,lng.")
	}
	return lat, lng, nil
}

func badUnit() error {
	return apperr.New(apperr.BadRequest, "Please provide a unit of either mi or km.")
}
