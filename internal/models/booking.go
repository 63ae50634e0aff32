package models

import (
	"errors"
	"time"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending              BookingStatus = "pending"
	BookingStatusConfirmed            BookingStatus = "confirmed"
	BookingStatusRefused              BookingStatus = "refused"
	BookingStatusCancelledByPassenger BookingStatus = "cancelled_by_passenger"
	BookingStatusCancelledByDriver    BookingStatus = "cancelled_by_driver"
)

// CancelActor identifies which party cancels a booking
type CancelActor string

const (
	CancelledByPassenger CancelActor = "passenger"
	CancelledByDriver    CancelActor = "driver"
)

// Booking represents a passenger's reservation against a trip
type Booking struct {
	ID             int64         `json:"id" db:"id"`
	TripID         int64         `json:"trip_id" db:"trip_id"`
	PassengerID    int64         `json:"passenger_id" db:"passenger_id"`
	SeatsBooked    int           `json:"seats_booked" db:"seats_booked"`
	Message        NullString    `json:"message,omitempty" db:"message"`
	Status         BookingStatus `json:"status" db:"status"`
	DriverRated    bool          `json:"driver_rated" db:"driver_rated"`
	PassengerRated bool          `json:"passenger_rated" db:"passenger_rated"`
	CO2Saved       float64       `json:"co2_saved" db:"co2_saved"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`

	// Populated for responses, not stored on the bookings table
	Trip      *Trip `json:"trip,omitempty" db:"-"`
	Passenger *User `json:"passenger,omitempty" db:"-"`
}

// IsTerminal reports whether no further status transitions are allowed
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingStatusRefused, BookingStatusCancelledByPassenger, BookingStatusCancelledByDriver:
		return true
	}
	return false
}

// CanBeCancelled requires a pending or confirmed booking on a trip that
// has not yet departed
func (b *Booking) CanBeCancelled(departureTime time.Time, now time.Time) bool {
	return (b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed) &&
		departureTime.After(now)
}

// CanBeRated requires a confirmed booking on a trip that already departed
func (b *Booking) CanBeRated(departureTime time.Time, now time.Time) bool {
	return b.Status == BookingStatusConfirmed && departureTime.Before(now)
}

// CancelledStatus maps the cancelling party to the resulting status
func CancelledStatus(by CancelActor) BookingStatus {
	if by == CancelledByDriver {
		return BookingStatusCancelledByDriver
	}
	return BookingStatusCancelledByPassenger
}

// CalculateCO2Saved returns this booking's own CO2 contribution in kg:
// distance (km) x 150g x seats booked, converted to kg.
func (b *Booking) CalculateCO2Saved(distanceKm float64) float64 {
	co2Grams := distanceKm * CO2GramsPerKm * float64(b.SeatsBooked)
	return round2(co2Grams / 1000)
}

// CreateBookingRequest represents the payload to request a booking
type CreateBookingRequest struct {
	TripID      int64   `json:"trip_id" binding:"required"`
	SeatsBooked int     `json:"seats_booked" binding:"required,min=1"`
	Message     *string `json:"message,omitempty"`
}

// Validate validates the create booking request
func (r *CreateBookingRequest) Validate() error {
	if r.Message != nil && len(*r.Message) > 300 {
		return errors.New("message must be at most 300 characters")
	}
	return nil
}
