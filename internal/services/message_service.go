package services

import (
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/models"
)

// MessageService handles the booking-scoped conversation between a
// trip's driver and a passenger. Messaging opens once the booking is
// confirmed and is restricted to the two parties.
type MessageService struct {
	messageRepo *database.MessageRepository
	bookingRepo *database.BookingRepository
	tripRepo    *database.TripRepository
	userRepo    *database.UserRepository
	logger      *logrus.Logger
}

// NewMessageService creates a new MessageService
func NewMessageService(
	messageRepo *database.MessageRepository,
	bookingRepo *database.BookingRepository,
	tripRepo *database.TripRepository,
	userRepo *database.UserRepository,
	logger *logrus.Logger,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		bookingRepo: bookingRepo,
		tripRepo:    tripRepo,
		userRepo:    userRepo,
		logger:      logger,
	}
}

// Send posts a message into a booking's conversation. The receiver is
// the other party of the booking.
func (s *MessageService) Send(sender *models.User, bookingID int64, req *models.CreateMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}

	booking, _, receiverID, err := s.conversation(sender, bookingID)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		BookingID:    booking.ID,
		SenderID:     sender.ID,
		ReceiverID:   receiverID,
		Content:      req.Content,
		TemplateType: models.TemplateCustom,
	}
	if req.TemplateType != nil {
		message.TemplateType = models.TemplateType(*req.TemplateType)
		message.IsTemplate = message.TemplateType != models.TemplateCustom
	}

	if err := s.messageRepo.Create(message); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"message_id": message.ID,
		"booking_id": booking.ID,
		"sender_id":  sender.ID,
	}).Info("Message sent")

	return message, nil
}

// Conversation returns the booking's messages oldest first and marks the
// caller's received messages read
func (s *MessageService) Conversation(user *models.User, bookingID int64, now time.Time) ([]models.Message, error) {
	booking, _, _, err := s.conversation(user, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.messageRepo.MarkReadForReceiver(booking.ID, user.ID, now); err != nil {
		return nil, err
	}

	return s.messageRepo.GetByBooking(booking.ID)
}

// TemplatesFor returns the quick-message catalog for a booking, with the
// vehicle description filled in from the driver's vehicle
func (s *MessageService) TemplatesFor(user *models.User, bookingID int64) (map[models.TemplateType]string, error) {
	_, trip, _, err := s.conversation(user, bookingID)
	if err != nil {
		return nil, err
	}

	driver, err := s.userRepo.GetByID(trip.DriverID)
	if err != nil {
		return nil, err
	}

	templates := models.Templates()
	templates[models.TemplateVehicleDescription] = models.TemplateContent(
		models.TemplateVehicleDescription,
		map[string]string{
			"color": driver.VehicleColor.String,
			"brand": driver.VehicleBrand.String,
			"model": driver.VehicleModel.String,
		},
	)
	return templates, nil
}

// UnreadCount returns the user's unread message count across all bookings
func (s *MessageService) UnreadCount(userID int64) (int, error) {
	return s.messageRepo.CountUnreadForReceiver(userID)
}

// conversation loads the booking and enforces the messaging rules:
// confirmed booking, caller is one of the two parties. It returns the
// other party's id as the receiver.
func (s *MessageService) conversation(user *models.User, bookingID int64) (*models.Booking, *models.Trip, int64, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, 0, NewNotFoundError("booking")
		}
		return nil, nil, 0, err
	}

	trip, err := s.tripRepo.GetByID(booking.TripID)
	if err != nil {
		return nil, nil, 0, err
	}

	var receiverID int64
	switch {
	case booking.PassengerID == user.ID:
		receiverID = trip.DriverID
	case trip.DriverID == user.ID:
		receiverID = booking.PassengerID
	default:
		return nil, nil, 0, NewAuthorizationError("you are not a party to this booking")
	}

	if booking.Status != models.BookingStatusConfirmed {
		return nil, nil, 0, NewConflictError("messaging is only available for confirmed bookings")
	}

	return booking, trip, receiverID, nil
}
