// Package events publishes domain events to RabbitMQ. Publishing is
// best effort: errors are logged and swallowed so the request flow
// never fails on broker trouble.
package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/cocesi/carpool-backend/internal/models"
)

const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
	QueueRatingCreated    = "rating.created"
)

// BookingEvent is the payload published on booking state changes. It
// carries enough for downstream consumers (notifications, analytics)
// to act without querying the primary database.
type BookingEvent struct {
	BookingID     int64   `json:"booking_id"`
	TripID        int64   `json:"trip_id"`
	PassengerID   int64   `json:"passenger_id"`
	DriverID      int64   `json:"driver_id"`
	SeatsBooked   int     `json:"seats_booked"`
	Status        string  `json:"status"`
	CancelledBy   string  `json:"cancelled_by,omitempty"`
	CO2SavedKg    float64 `json:"co2_saved_kg"`
	DepartureTime string  `json:"departure_time"`
	OccurredAt    string  `json:"occurred_at"`
}

// RatingEvent is the payload published when a rating is submitted
type RatingEvent struct {
	RatingID   int64   `json:"rating_id"`
	BookingID  int64   `json:"booking_id"`
	RaterID    int64   `json:"rater_id"`
	RatedID    int64   `json:"rated_id"`
	RaterRole  string  `json:"rater_role"`
	Overall    float64 `json:"overall_rating"`
	OccurredAt string  `json:"occurred_at"`
}

// Publisher holds a long-lived broker connection and opens a channel
// per publish. A nil Publisher is valid and publishes nothing.
type Publisher struct {
	conn   *amqp.Connection
	logger *logrus.Logger
}

// NewPublisher dials the broker. Returns an error when the broker is
// unreachable; callers typically log it and run without events.
func NewPublisher(url string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// Close closes the broker connection
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// BookingConfirmed publishes a booking.confirmed event
func (p *Publisher) BookingConfirmed(booking *models.Booking, trip *models.Trip) {
	p.publish(QueueBookingConfirmed, bookingEvent(booking, trip, ""))
}

// BookingCancelled publishes a booking.cancelled event
func (p *Publisher) BookingCancelled(booking *models.Booking, trip *models.Trip, by models.CancelActor) {
	p.publish(QueueBookingCancelled, bookingEvent(booking, trip, string(by)))
}

// RatingCreated publishes a rating.created event
func (p *Publisher) RatingCreated(rating *models.Rating) {
	p.publish(QueueRatingCreated, RatingEvent{
		RatingID:   rating.ID,
		BookingID:  rating.BookingID,
		RaterID:    rating.RaterID,
		RatedID:    rating.RatedID,
		RaterRole:  string(rating.RaterRole),
		Overall:    rating.OverallRating,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func bookingEvent(booking *models.Booking, trip *models.Trip, cancelledBy string) BookingEvent {
	return BookingEvent{
		BookingID:     booking.ID,
		TripID:        trip.ID,
		PassengerID:   booking.PassengerID,
		DriverID:      trip.DriverID,
		SeatsBooked:   booking.SeatsBooked,
		Status:        string(booking.Status),
		CancelledBy:   cancelledBy,
		CO2SavedKg:    booking.CO2Saved,
		DepartureTime: trip.DepartureTime.UTC().Format(time.RFC3339),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// publish declares the durable queue and sends a persistent JSON
// message on the default exchange. Failures are logged, never returned.
func (p *Publisher) publish(queue string, event interface{}) {
	if p == nil || p.conn == nil {
		return
	}

	ch, err := p.conn.Channel()
	if err != nil {
		p.logger.WithError(err).WithField("queue", queue).Warn("Event publish failed: channel open")
		return
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.logger.WithError(err).WithField("queue", queue).Warn("Event publish failed: queue declare")
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).WithField("queue", queue).Warn("Event publish failed: marshal")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.logger.WithError(err).WithField("queue", queue).Warn("Event publish failed: publish")
		return
	}
}
