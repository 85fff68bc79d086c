package models

import "github.com/dennis1984/BYWebApp/internal/apperr"

// ResourceFilter narrows a listing. Nil fields do not filter.
type ResourceFilter struct {
	MediaType      *int
	ThemeType      *int
	Progress       *int
	MinTemperature *float64
	MaxTemperature *float64
}

// Matches reports whether e passes every set condition.
func (f ResourceFilter) Matches(e SearchEntry) bool {
	switch {
	case f.MediaType != nil && e.MediaType != *f.MediaType:
		return false
	case f.ThemeType != nil && e.ThemeType != *f.ThemeType:
		return false
	case f.Progress != nil && e.Progress != *f.Progress:
		return false
	case f.MinTemperature != nil && e.Temperature < *f.MinTemperature:
		return false
	case f.MaxTemperature != nil && e.Temperature > *f.MaxTemperature:
		return false
	}
	return true
}

func (f ResourceFilter) Validate() error {
	if f.MinTemperature != nil && f.MaxTemperature != nil && *f.MinTemperature > *f.MaxTemperature {
		return apperr.InvalidInput("temperature", "min %g is above max %g", *f.MinTemperature, *f.MaxTemperature)
	}
	return nil
}
