package models

import (
	"errors"
	"strings"
	"time"
)

// TemplateType identifies a predefined quick message
type TemplateType string

const (
	TemplateOnMyWay            TemplateType = "on_my_way"
	TemplateArrivingSoon       TemplateType = "arriving_soon"
	TemplateVehicleDescription TemplateType = "vehicle_description"
	TemplateCustom             TemplateType = "custom"
)

// Message represents a short in-booking message between driver and passenger
type Message struct {
	ID           int64        `json:"id" db:"id"`
	BookingID    int64        `json:"booking_id" db:"booking_id"`
	SenderID     int64        `json:"sender_id" db:"sender_id"`
	ReceiverID   int64        `json:"receiver_id" db:"receiver_id"`
	Content      string       `json:"content" db:"content"`
	IsRead       bool         `json:"is_read" db:"is_read"`
	ReadAt       NullTime     `json:"read_at,omitempty" db:"read_at"`
	IsTemplate   bool         `json:"is_template" db:"is_template"`
	TemplateType TemplateType `json:"template_type" db:"template_type"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`

	// Populated for responses
	Sender   *User `json:"sender,omitempty" db:"-"`
	Receiver *User `json:"receiver,omitempty" db:"-"`
}

// messageTemplates maps template types to their content. The vehicle
// description template contains placeholders filled from parameters.
var messageTemplates = map[TemplateType]string{
	TemplateOnMyWay:            "Je suis en route ! 🚗",
	TemplateArrivingSoon:       "J'arrive dans 5 minutes !",
	TemplateVehicleDescription: "Voiture {color} {brand} {model}",
}

// TemplateContent returns the content for a predefined template,
// replacing {key} placeholders with the supplied parameters. Unknown
// template types yield an empty string.
func TemplateContent(t TemplateType, params map[string]string) string {
	content, ok := messageTemplates[t]
	if !ok {
		return ""
	}
	for key, value := range params {
		content = strings.ReplaceAll(content, "{"+key+"}", value)
	}
	return content
}

// Templates returns the full template catalog
func Templates() map[TemplateType]string {
	out := make(map[TemplateType]string, len(messageTemplates))
	for k, v := range messageTemplates {
		out[k] = v
	}
	return out
}

// CreateMessageRequest represents the payload to send a message
type CreateMessageRequest struct {
	Content      string  `json:"content" binding:"required"`
	TemplateType *string `json:"template_type,omitempty"`
}

// Validate validates the create message request
func (r *CreateMessageRequest) Validate() error {
	if len(r.Content) > 300 {
		return errors.New("content must be at most 300 characters")
	}
	if r.TemplateType != nil {
		switch TemplateType(*r.TemplateType) {
		case TemplateOnMyWay, TemplateArrivingSoon, TemplateVehicleDescription, TemplateCustom:
		default:
			return errors.New("template_type must be one of on_my_way, arriving_soon, vehicle_description, custom")
		}
	}
	return nil
}
