package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripCanBook(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)

	t.Run("Active Trip With Seats", func(t *testing.T) {
		trip := &Trip{Status: TripStatusActive, AvailableSeats: 4, OccupiedSeats: 1, DepartureTime: future}
		assert.True(t, trip.CanBook(2, now))
		assert.True(t, trip.CanBook(3, now))
	})

	t.Run("Not Enough Seats", func(t *testing.T) {
		trip := &Trip{Status: TripStatusActive, AvailableSeats: 4, OccupiedSeats: 3, DepartureTime: future}
		assert.True(t, trip.CanBook(1, now))
		assert.False(t, trip.CanBook(2, now))
	})

	t.Run("Full Trip", func(t *testing.T) {
		trip := &Trip{Status: TripStatusFull, AvailableSeats: 4, OccupiedSeats: 4, DepartureTime: future}
		assert.False(t, trip.CanBook(1, now))
	})

	t.Run("Cancelled Trip", func(t *testing.T) {
		trip := &Trip{Status: TripStatusCancelled, AvailableSeats: 4, DepartureTime: future}
		assert.False(t, trip.CanBook(1, now))
	})

	t.Run("Departed Trip", func(t *testing.T) {
		trip := &Trip{Status: TripStatusActive, AvailableSeats: 4, DepartureTime: now.Add(-time.Hour)}
		assert.False(t, trip.CanBook(1, now))
	})

	t.Run("Departure Exactly Now", func(t *testing.T) {
		trip := &Trip{Status: TripStatusActive, AvailableSeats: 4, DepartureTime: now}
		assert.False(t, trip.CanBook(1, now))
	})
}

func TestTripCalculateCO2Saved(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		occupied int
		want     float64
	}{
		{"No Passengers", 20, 0, 0},
		{"One Passenger", 20, 1, 3.0},
		{"Two Passengers", 20, 2, 6.0},
		{"Four Passengers", 20, 4, 12.0},
		{"Fractional Distance", 12.5, 2, 3.75},
		{"Rounding To Two Decimals", 7.77, 3, 3.5},
		{"Zero Distance", 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := &Trip{DistanceKm: tt.distance, OccupiedSeats: tt.occupied}
			assert.InDelta(t, tt.want, trip.CalculateCO2Saved(), 0.0001)
		})
	}
}

func TestTripRemainingSeats(t *testing.T) {
	trip := &Trip{AvailableSeats: 4, OccupiedSeats: 3}
	assert.Equal(t, 1, trip.RemainingSeats())
	assert.False(t, trip.IsFull())

	trip.OccupiedSeats = 4
	assert.Equal(t, 0, trip.RemainingSeats())
	assert.True(t, trip.IsFull())
}

func TestCreateTripRequestValidate(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)

	base := func() CreateTripRequest {
		return CreateTripRequest{
			DepartureAddress: "25 avenue de la République, Lyon",
			DepartureLat:     45.7578,
			DepartureLng:     4.8320,
			ArrivalAddress:   "Campus CESI, Écully",
			ArrivalLat:       45.7772,
			ArrivalLng:       4.7654,
			DepartureTime:    future,
			AvailableSeats:   3,
			DistanceKm:       14.2,
		}
	}

	t.Run("Valid", func(t *testing.T) {
		req := base()
		require.NoError(t, req.Validate(now))
	})

	t.Run("Past Departure", func(t *testing.T) {
		req := base()
		req.DepartureTime = now.Add(-time.Hour)
		assert.Error(t, req.Validate(now))
	})

	t.Run("Arrival Before Departure", func(t *testing.T) {
		req := base()
		arrival := future.Add(-time.Hour)
		req.ArrivalTime = &arrival
		assert.Error(t, req.Validate(now))
	})

	t.Run("Round Trip Without Return Time", func(t *testing.T) {
		req := base()
		roundTrip := true
		req.IsRoundTrip = &roundTrip
		assert.Error(t, req.Validate(now))
	})

	t.Run("Round Trip With Return After Departure", func(t *testing.T) {
		req := base()
		roundTrip := true
		ret := future.Add(8 * time.Hour)
		req.IsRoundTrip = &roundTrip
		req.ReturnDepartureTime = &ret
		require.NoError(t, req.Validate(now))
	})

	t.Run("Recurring Without Days", func(t *testing.T) {
		req := base()
		recurring := true
		end := future.AddDate(0, 3, 0)
		req.IsRecurring = &recurring
		req.RecurringEndDate = &end
		assert.Error(t, req.Validate(now))
	})

	t.Run("Recurring With Weekend Day", func(t *testing.T) {
		req := base()
		recurring := true
		end := future.AddDate(0, 3, 0)
		req.IsRecurring = &recurring
		req.RecurringDays = []int64{1, 3, 6}
		req.RecurringEndDate = &end
		assert.Error(t, req.Validate(now))
	})

	t.Run("Recurring Valid", func(t *testing.T) {
		req := base()
		recurring := true
		end := future.AddDate(0, 3, 0)
		req.IsRecurring = &recurring
		req.RecurringDays = []int64{1, 2, 5}
		req.RecurringEndDate = &end
		require.NoError(t, req.Validate(now))
	})

	t.Run("Invalid Chattiness", func(t *testing.T) {
		req := base()
		pref := "talkative"
		req.ChattinessPreference = &pref
		assert.Error(t, req.Validate(now))
	})
}
