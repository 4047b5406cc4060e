package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters_SamePoint(t *testing.T) {
	assert.InDelta(t, 0, DistanceMeters(12.9716, 77.5946, 12.9716, 77.5946), 0.001)
}

func TestDistanceMeters_KnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want, delta            float64
	}{
		// Bengaluru to Chennai, roughly 290 km
		{"bengaluru-chennai", 12.9716, 77.5946, 13.0827, 80.2707, 290_000, 5_000},
		// one degree of latitude is about 111.2 km
		{"one degree lat", 0, 0, 1, 0, 111_195, 100},
		// 0.001 degree latitude is about 111 m
		{"short hop", 19.0760, 72.8777, 19.0770, 72.8777, 111, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMeters(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := DistanceMeters(28.6139, 77.2090, 19.0760, 72.8777)
	b := DistanceMeters(19.0760, 72.8777, 28.6139, 77.2090)
	assert.InDelta(t, a, b, 0.0001)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(0, 0))
	assert.True(t, ValidCoordinates(-90, 180))
	assert.False(t, ValidCoordinates(91, 0))
	assert.False(t, ValidCoordinates(0, -181))
}
