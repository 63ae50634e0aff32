package models

import (
	"errors"
	"math"
	"time"

	"github.com/lib/pq"
)

// TripStatus represents the status of a trip
type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusFull      TripStatus = "full"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// CO2GramsPerKm is the per-passenger-kilometre CO2 estimate used for
// savings calculations, in grams.
const CO2GramsPerKm = 150

// Trip represents a driver-offered ride with fixed capacity and schedule
type Trip struct {
	ID                   int64         `json:"id" db:"id"`
	DriverID             int64         `json:"driver_id" db:"driver_id"`
	DepartureAddress     string        `json:"departure_address" db:"departure_address"`
	DepartureLat         float64       `json:"departure_lat" db:"departure_lat"`
	DepartureLng         float64       `json:"departure_lng" db:"departure_lng"`
	ArrivalAddress       string        `json:"arrival_address" db:"arrival_address"`
	ArrivalLat           float64       `json:"arrival_lat" db:"arrival_lat"`
	ArrivalLng           float64       `json:"arrival_lng" db:"arrival_lng"`
	DepartureTime        time.Time     `json:"departure_time" db:"departure_time"`
	ArrivalTime          NullTime      `json:"arrival_time,omitempty" db:"arrival_time"`
	IsRoundTrip          bool          `json:"is_round_trip" db:"is_round_trip"`
	ReturnDepartureTime  NullTime      `json:"return_departure_time,omitempty" db:"return_departure_time"`
	ReturnArrivalTime    NullTime      `json:"return_arrival_time,omitempty" db:"return_arrival_time"`
	IsRecurring          bool          `json:"is_recurring" db:"is_recurring"`
	RecurringDays        pq.Int64Array `json:"recurring_days,omitempty" db:"recurring_days"`
	RecurringEndDate     NullTime      `json:"recurring_end_date,omitempty" db:"recurring_end_date"`
	AvailableSeats       int           `json:"available_seats" db:"available_seats"`
	OccupiedSeats        int           `json:"occupied_seats" db:"occupied_seats"`
	Status               TripStatus    `json:"status" db:"status"`
	SmokerAllowed        bool          `json:"smoker_allowed" db:"smoker_allowed"`
	MusicAllowed         bool          `json:"music_allowed" db:"music_allowed"`
	ChattinessPreference NullString    `json:"chattiness_preference,omitempty" db:"chattiness_preference"`
	AutoValidation       bool          `json:"auto_validation" db:"auto_validation"`
	DistanceKm           float64       `json:"distance_km" db:"distance_km"`
	EstimatedCO2Saved    float64       `json:"estimated_co2_saved" db:"estimated_co2_saved"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`

	// Populated for responses, not stored on the trips table
	Driver *User `json:"driver,omitempty" db:"-"`
}

// round2 rounds to 2 decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RemainingSeats returns the number of seats still free
func (t *Trip) RemainingSeats() int {
	return t.AvailableSeats - t.OccupiedSeats
}

// IsFull reports whether no seats remain
func (t *Trip) IsFull() bool {
	return t.RemainingSeats() <= 0
}

// CanBook reports whether seatsRequested seats can still be booked.
// Pure predicate: active trip, enough remaining seats, departure in the
// future relative to now.
func (t *Trip) CanBook(seatsRequested int, now time.Time) bool {
	return t.Status == TripStatusActive &&
		t.RemainingSeats() >= seatsRequested &&
		t.DepartureTime.After(now)
}

// CalculateCO2Saved returns the trip-wide CO2 saving estimate in kg.
// Distance (km) x 150g x (total people - 1), where total people is the
// driver plus occupied seats.
func (t *Trip) CalculateCO2Saved() float64 {
	totalPeople := 1 + t.OccupiedSeats
	if totalPeople <= 1 {
		return 0
	}
	co2Grams := t.DistanceKm * CO2GramsPerKm * float64(totalPeople-1)
	return round2(co2Grams / 1000)
}

// CreateTripRequest represents the payload to publish a trip
type CreateTripRequest struct {
	DepartureAddress     string     `json:"departure_address" binding:"required"`
	DepartureLat         float64    `json:"departure_lat" binding:"required"`
	DepartureLng         float64    `json:"departure_lng" binding:"required"`
	ArrivalAddress       string     `json:"arrival_address" binding:"required"`
	ArrivalLat           float64    `json:"arrival_lat" binding:"required"`
	ArrivalLng           float64    `json:"arrival_lng" binding:"required"`
	DepartureTime        time.Time  `json:"departure_time" binding:"required"`
	ArrivalTime          *time.Time `json:"arrival_time,omitempty"`
	IsRoundTrip          *bool      `json:"is_round_trip,omitempty"`
	ReturnDepartureTime  *time.Time `json:"return_departure_time,omitempty"`
	ReturnArrivalTime    *time.Time `json:"return_arrival_time,omitempty"`
	IsRecurring          *bool      `json:"is_recurring,omitempty"`
	RecurringDays        []int64    `json:"recurring_days,omitempty"`
	RecurringEndDate     *time.Time `json:"recurring_end_date,omitempty"`
	AvailableSeats       int        `json:"available_seats" binding:"required,min=1"`
	SmokerAllowed        *bool      `json:"smoker_allowed,omitempty"`
	MusicAllowed         *bool      `json:"music_allowed,omitempty"`
	ChattinessPreference *string    `json:"chattiness_preference,omitempty"`
	AutoValidation       *bool      `json:"auto_validation,omitempty"`
	DistanceKm           float64    `json:"distance_km" binding:"required,min=0"`
}

// Validate checks cross-field constraints on trip creation
func (r *CreateTripRequest) Validate(now time.Time) error {
	if !r.DepartureTime.After(now) {
		return errors.New("departure_time must be in the future")
	}
	if r.ArrivalTime != nil && !r.ArrivalTime.After(r.DepartureTime) {
		return errors.New("arrival_time must be after departure_time")
	}
	if r.IsRoundTrip != nil && *r.IsRoundTrip {
		if r.ReturnDepartureTime == nil {
			return errors.New("return_departure_time is required for round trips")
		}
		if !r.ReturnDepartureTime.After(r.DepartureTime) {
			return errors.New("return_departure_time must be after departure_time")
		}
	}
	if r.ReturnArrivalTime != nil && r.ReturnDepartureTime != nil &&
		!r.ReturnArrivalTime.After(*r.ReturnDepartureTime) {
		return errors.New("return_arrival_time must be after return_departure_time")
	}
	if r.IsRecurring != nil && *r.IsRecurring {
		if len(r.RecurringDays) == 0 {
			return errors.New("recurring_days is required for recurring trips")
		}
		for _, d := range r.RecurringDays {
			if d < 1 || d > 5 {
				return errors.New("recurring_days must contain weekdays between 1 and 5")
			}
		}
		if r.RecurringEndDate == nil {
			return errors.New("recurring_end_date is required for recurring trips")
		}
		if !r.RecurringEndDate.After(r.DepartureTime) {
			return errors.New("recurring_end_date must be after departure_time")
		}
	}
	if r.ChattinessPreference != nil {
		switch *r.ChattinessPreference {
		case ChattinessQuiet, ChattinessNormal, ChattinessChatty:
		default:
			return errors.New("chattiness_preference must be one of quiet, normal, chatty")
		}
	}
	return nil
}

// UpdateTripRequest represents a partial trip update. Only permitted while
// the trip has no confirmed bookings.
type UpdateTripRequest struct {
	DepartureTime        *time.Time `json:"departure_time,omitempty"`
	ArrivalTime          *time.Time `json:"arrival_time,omitempty"`
	AvailableSeats       *int       `json:"available_seats,omitempty"`
	AutoValidation       *bool      `json:"auto_validation,omitempty"`
	SmokerAllowed        *bool      `json:"smoker_allowed,omitempty"`
	MusicAllowed         *bool      `json:"music_allowed,omitempty"`
	ChattinessPreference *string    `json:"chattiness_preference,omitempty"`
}

// Validate validates the update trip request
func (r *UpdateTripRequest) Validate(now time.Time) error {
	if r.DepartureTime != nil && !r.DepartureTime.After(now) {
		return errors.New("departure_time must be in the future")
	}
	if r.AvailableSeats != nil && *r.AvailableSeats < 1 {
		return errors.New("available_seats must be at least 1")
	}
	if r.ChattinessPreference != nil {
		switch *r.ChattinessPreference {
		case ChattinessQuiet, ChattinessNormal, ChattinessChatty:
		default:
			return errors.New("chattiness_preference must be one of quiet, normal, chatty")
		}
	}
	return nil
}

// TripSearchQuery represents the query-string filters for trip search.
// Latitude/longitude filters match within a fixed +-0.1 degree box.
type TripSearchQuery struct {
	DepartureLat *float64 `form:"departure_lat"`
	DepartureLng *float64 `form:"departure_lng"`
	ArrivalLat   *float64 `form:"arrival_lat"`
	ArrivalLng   *float64 `form:"arrival_lng"`
	Date         *string  `form:"date"`
	MinSeats     *int     `form:"min_seats"`
	Smoker       *bool    `form:"smoker"`
	Music        *bool    `form:"music"`
	Page         int      `form:"page,default=1"`
}
