package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dennis1984/BYWebApp/internal/apperr"
)

func TestResourceFilterMatches(t *testing.T) {
	two, three := 2, 3
	low, high := 1.5, 4.0
	entry := SearchEntry{MediaType: 2, ThemeType: 3, Progress: 1, Temperature: 2.5}

	tests := []struct {
		name   string
		filter ResourceFilter
		want   bool
	}{
		{name: "empty", want: true},
		{name: "media type", filter: ResourceFilter{MediaType: &two}, want: true},
		{name: "wrong media type", filter: ResourceFilter{MediaType: &three}},
		{name: "theme and progress", filter: ResourceFilter{ThemeType: &three, Progress: &two}},
		{name: "in range", filter: ResourceFilter{MinTemperature: &low, MaxTemperature: &high}, want: true},
		{name: "below min", filter: ResourceFilter{MinTemperature: &high}},
		{name: "above max", filter: ResourceFilter{MaxTemperature: &low}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(entry))
		})
	}
}

func TestResourceFilterValidate(t *testing.T) {
	low, high := 1.0, 2.0
	assert.NoError(t, ResourceFilter{MinTemperature: &low, MaxTemperature: &high}.Validate())
	assert.ErrorIs(t, ResourceFilter{MinTemperature: &high, MaxTemperature: &low}.Validate(), apperr.ErrInvalidInput)
}
