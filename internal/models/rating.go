package models

import (
	"errors"
	"time"
)

// RaterRole identifies which side of a booking submitted a rating.
// The stored values follow the historical wire format: a "passenger"
// rating is the passenger scoring the driver (driving, punctuality,
// vehicle) and a "driver" rating is the driver scoring the passenger
// (punctuality, respect).
type RaterRole string

const (
	RaterRoleDriver    RaterRole = "driver"
	RaterRolePassenger RaterRole = "passenger"
)

// Rating represents a one-sided review tied to a completed booking
type Rating struct {
	ID                         int64      `json:"id" db:"id"`
	BookingID                  int64      `json:"booking_id" db:"booking_id"`
	RaterID                    int64      `json:"rater_id" db:"rater_id"`
	RatedID                    int64      `json:"rated_id" db:"rated_id"`
	RaterRole                  RaterRole  `json:"rater_type" db:"rater_type"`
	DrivingRating              NullInt64  `json:"driving_rating,omitempty" db:"driving_rating"`
	PunctualityRating          NullInt64  `json:"punctuality_rating,omitempty" db:"punctuality_rating"`
	VehicleRating              NullInt64  `json:"vehicle_rating,omitempty" db:"vehicle_rating"`
	PassengerPunctualityRating NullInt64  `json:"passenger_punctuality_rating,omitempty" db:"passenger_punctuality_rating"`
	RespectRating              NullInt64  `json:"respect_rating,omitempty" db:"respect_rating"`
	OverallRating              float64    `json:"overall_rating" db:"overall_rating"`
	Comment                    NullString `json:"comment,omitempty" db:"comment"`
	CreatedAt                  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at" db:"updated_at"`

	// Populated for responses
	Rater *User `json:"rater,omitempty" db:"-"`
	Rated *User `json:"rated,omitempty" db:"-"`
}

// CalculateOverall returns the mean of the criteria applicable to the
// rater role, rounded to 2 decimals. Zero-valued criteria are treated as
// absent; with no valid criteria the overall is 0.
func (r *Rating) CalculateOverall() float64 {
	var criteria []NullInt64
	if r.RaterRole == RaterRolePassenger {
		criteria = []NullInt64{r.DrivingRating, r.PunctualityRating, r.VehicleRating}
	} else {
		criteria = []NullInt64{r.PassengerPunctualityRating, r.RespectRating}
	}

	var sum, count int64
	for _, c := range criteria {
		if c.Valid && c.Int64 != 0 {
			sum += c.Int64
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return round2(float64(sum) / float64(count))
}

// CreateRatingRequest represents the payload to rate the other party of a
// booking. Which criteria are required depends on the caller's role.
type CreateRatingRequest struct {
	DrivingRating              *int    `json:"driving_rating,omitempty"`
	PunctualityRating          *int    `json:"punctuality_rating,omitempty"`
	VehicleRating              *int    `json:"vehicle_rating,omitempty"`
	PassengerPunctualityRating *int    `json:"passenger_punctuality_rating,omitempty"`
	RespectRating              *int    `json:"respect_rating,omitempty"`
	Comment                    *string `json:"comment,omitempty"`
}

// Validate checks the criteria set required for the given role
func (r *CreateRatingRequest) Validate(role RaterRole) error {
	if r.Comment != nil && len(*r.Comment) > 200 {
		return errors.New("comment must be at most 200 characters")
	}
	if role == RaterRolePassenger {
		for name, v := range map[string]*int{
			"driving_rating":     r.DrivingRating,
			"punctuality_rating": r.PunctualityRating,
			"vehicle_rating":     r.VehicleRating,
		} {
			if v == nil {
				return errors.New(name + " is required")
			}
			if *v < 1 || *v > 5 {
				return errors.New(name + " must be between 1 and 5")
			}
		}
		return nil
	}
	for name, v := range map[string]*int{
		"passenger_punctuality_rating": r.PassengerPunctualityRating,
		"respect_rating":               r.RespectRating,
	} {
		if v == nil {
			return errors.New(name + " is required")
		}
		if *v < 1 || *v > 5 {
			return errors.New(name + " must be between 1 and 5")
		}
	}
	return nil
}

// RatingStats summarizes the ratings received by a user
type RatingStats struct {
	AverageRating float64 `json:"average_rating" db:"average_rating"`
	TotalRatings  int     `json:"total_ratings" db:"total_ratings"`
}

// PendingRatings holds the two independent result sets of bookings a user
// still has to rate
type PendingRatings struct {
	ToRateAsPassenger []Booking `json:"to_rate_as_passenger"`
	ToRateAsDriver    []Booking `json:"to_rate_as_driver"`
}
