package models

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// NullString wraps sql.NullString to provide proper JSON marshaling
type NullString struct {
	sql.NullString
}

// MarshalJSON implements json.Marshaler
func (ns NullString) MarshalJSON() ([]byte, error) {
	if ns.Valid {
		return json.Marshal(ns.String)
	}
	return json.Marshal(nil)
}

// UnmarshalJSON implements json.Unmarshaler
func (ns *NullString) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != nil {
		ns.Valid = true
		ns.String = *s
	} else {
		ns.Valid = false
	}
	return nil
}

// NullTime wraps sql.NullTime to provide proper JSON marshaling
type NullTime struct {
	sql.NullTime
}

// MarshalJSON implements json.Marshaler
func (nt NullTime) MarshalJSON() ([]byte, error) {
	if nt.Valid {
		return json.Marshal(nt.Time)
	}
	return json.Marshal(nil)
}

// UnmarshalJSON implements json.Unmarshaler
func (nt *NullTime) UnmarshalJSON(data []byte) error {
	var t *time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	if t != nil {
		nt.Valid = true
		nt.Time = *t
	} else {
		nt.Valid = false
	}
	return nil
}

// NullInt64 wraps sql.NullInt64 to provide proper JSON marshaling
type NullInt64 struct {
	sql.NullInt64
}

// MarshalJSON implements json.Marshaler
func (ni NullInt64) MarshalJSON() ([]byte, error) {
	if ni.Valid {
		return json.Marshal(ni.Int64)
	}
	return json.Marshal(nil)
}

// UnmarshalJSON implements json.Unmarshaler
func (ni *NullInt64) UnmarshalJSON(data []byte) error {
	var n *int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n != nil {
		ni.Valid = true
		ni.Int64 = *n
	} else {
		ni.Valid = false
	}
	return nil
}

// ProfileType describes how a user participates in carpools
type ProfileType string

const (
	ProfileTypeDriver    ProfileType = "driver"
	ProfileTypePassenger ProfileType = "passenger"
	ProfileTypeBoth      ProfileType = "both"
)

// Chattiness levels for ride preferences
const (
	ChattinessQuiet  = "quiet"
	ChattinessNormal = "normal"
	ChattinessChatty = "chatty"
)

// User represents a registered student
type User struct {
	ID            int64       `json:"id" db:"id"`
	Email         string      `json:"email" db:"email"`
	PasswordHash  string      `json:"-" db:"password"`
	FirstName     string      `json:"first_name" db:"first_name"`
	LastName      string      `json:"last_name" db:"last_name"`
	Photo         NullString  `json:"photo,omitempty" db:"photo"`
	FieldOfStudy  string      `json:"field_of_study" db:"field_of_study"`
	Year          int         `json:"year" db:"year"`
	Bio           NullString  `json:"bio,omitempty" db:"bio"`
	ProfileType   ProfileType `json:"profile_type" db:"profile_type"`
	Smoker        bool        `json:"smoker" db:"smoker"`
	Music         bool        `json:"music" db:"music"`
	Chattiness    string      `json:"chattiness" db:"chattiness"`
	VehicleBrand  NullString  `json:"vehicle_brand,omitempty" db:"vehicle_brand"`
	VehicleModel  NullString  `json:"vehicle_model,omitempty" db:"vehicle_model"`
	VehicleColor  NullString  `json:"vehicle_color,omitempty" db:"vehicle_color"`
	VehicleSeats  NullInt64   `json:"vehicle_seats,omitempty" db:"vehicle_seats"`
	AverageRating float64     `json:"average_rating" db:"average_rating"`
	TotalTrips    int         `json:"total_trips" db:"total_trips"`
	TotalCO2Saved float64     `json:"total_co2_saved" db:"total_co2_saved"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// IsDriver reports whether the user may offer trips
func (u *User) IsDriver() bool {
	return u.ProfileType == ProfileTypeDriver || u.ProfileType == ProfileTypeBoth
}

// IsPassenger reports whether the user may book trips
func (u *User) IsPassenger() bool {
	return u.ProfileType == ProfileTypePassenger || u.ProfileType == ProfileTypeBoth
}

// HasVehicleInfo reports whether the vehicle profile is complete enough
// to publish a trip
func (u *User) HasVehicleInfo() bool {
	return u.VehicleBrand.Valid && u.VehicleBrand.String != "" &&
		u.VehicleModel.Valid && u.VehicleModel.String != "" &&
		u.VehicleSeats.Valid && u.VehicleSeats.Int64 > 0
}

// CanCreateTrip requires a driver profile with complete vehicle info
func (u *User) CanCreateTrip() bool {
	return u.IsDriver() && u.HasVehicleInfo()
}

// IsTrustedDriver returns true for experienced, well-rated drivers
func (u *User) IsTrustedDriver() bool {
	return u.TotalTrips >= 10 && u.AverageRating >= 4.5
}

// FullName returns "First Last"
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// RegisterRequest represents the payload to create an account
type RegisterRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=8"`
	FirstName    string  `json:"first_name" binding:"required,max=255"`
	LastName     string  `json:"last_name" binding:"required,max=255"`
	FieldOfStudy string  `json:"field_of_study" binding:"required"`
	Year         int     `json:"year" binding:"required,min=1,max=5"`
	ProfileType  string  `json:"profile_type" binding:"required,oneof=driver passenger both"`
	Smoker       *bool   `json:"smoker,omitempty"`
	Music        *bool   `json:"music,omitempty"`
	Chattiness   *string `json:"chattiness,omitempty"`
}

// Validate checks the fields the binding tags cannot express
func (r *RegisterRequest) Validate() error {
	if r.Chattiness != nil {
		switch *r.Chattiness {
		case ChattinessQuiet, ChattinessNormal, ChattinessChatty:
		default:
			return errors.New("chattiness must be one of quiet, normal, chatty")
		}
	}
	return nil
}

// LoginRequest represents the payload to authenticate
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest represents a partial profile update
type UpdateProfileRequest struct {
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	FieldOfStudy *string `json:"field_of_study,omitempty"`
	Year         *int    `json:"year,omitempty"`
	ProfileType  *string `json:"profile_type,omitempty"`
	Smoker       *bool   `json:"smoker,omitempty"`
	Music        *bool   `json:"music,omitempty"`
	Chattiness   *string `json:"chattiness,omitempty"`
	VehicleBrand *string `json:"vehicle_brand,omitempty"`
	VehicleModel *string `json:"vehicle_model,omitempty"`
	VehicleColor *string `json:"vehicle_color,omitempty"`
	VehicleSeats *int    `json:"vehicle_seats,omitempty"`
}

// Validate validates the update profile request
func (r *UpdateProfileRequest) Validate() error {
	if r.Year != nil && (*r.Year < 1 || *r.Year > 5) {
		return errors.New("year must be between 1 and 5")
	}
	if r.ProfileType != nil {
		switch ProfileType(*r.ProfileType) {
		case ProfileTypeDriver, ProfileTypePassenger, ProfileTypeBoth:
		default:
			return errors.New("profile_type must be one of driver, passenger, both")
		}
	}
	if r.Chattiness != nil {
		switch *r.Chattiness {
		case ChattinessQuiet, ChattinessNormal, ChattinessChatty:
		default:
			return errors.New("chattiness must be one of quiet, normal, chatty")
		}
	}
	if r.VehicleSeats != nil && (*r.VehicleSeats < 1 || *r.VehicleSeats > 8) {
		return errors.New("vehicle_seats must be between 1 and 8")
	}
	if r.Bio != nil && len(*r.Bio) > 150 {
		return errors.New("bio must be at most 150 characters")
	}
	return nil
}

// UpdatePasswordRequest represents a password change
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}
