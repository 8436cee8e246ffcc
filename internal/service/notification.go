package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"waka/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTransferAhead    NotificationType = "TRANSFER_AHEAD"
	NotificationTransferImminent NotificationType = "TRANSFER_IMMINENT"
	NotificationNearDestination  NotificationType = "NEAR_DESTINATION"
	NotificationArrived          NotificationType = "ARRIVED"
	NotificationTripEnded        NotificationType = "TRIP_ENDED"
	NotificationTripCancelled    NotificationType = "TRIP_CANCELLED"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// NotificationService handles notification delivery.
type NotificationService struct {
	// In a real system, this would have:
	// - Push notification client (FCM, APNS)
	// - SMS client
	// - WebSocket connections for real-time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyAlert delivers a guidance alert raised while tracking a trip.
func (s *NotificationService) NotifyAlert(ctx context.Context, userID string, event domain.AlertEvent) error {
	notification := Notification{
		Type:        alertNotificationType(event.Kind),
		RecipientID: userID,
		Title:       alertTitle(event.Kind),
		Message:     event.Message,
		Data: map[string]interface{}{
			"trip_id":   event.TripID,
			"leg_order": event.LegSeq,
			"kind":      string(event.Kind),
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyTripEnded notifies the user that tracking stopped before the
// final destination.
func (s *NotificationService) NotifyTripEnded(ctx context.Context, session *domain.TripSession) error {
	notification := Notification{
		Type:        NotificationTripEnded,
		RecipientID: session.UserID,
		Title:       "Trip Ended",
		Message:     "Tracking stopped. Your progress has been saved.",
		Data: map[string]interface{}{
			"trip_id":  session.ID,
			"ended_at": session.CompletedAt,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyTripCancelled notifies the user about trip cancellation.
func (s *NotificationService) NotifyTripCancelled(ctx context.Context, session *domain.TripSession) error {
	message := "Your trip was cancelled."
	if session.CancelReason != "" {
		message = fmt.Sprintf("Your trip was cancelled: %s", session.CancelReason)
	}

	notification := Notification{
		Type:        NotificationTripCancelled,
		RecipientID: session.UserID,
		Title:       "Trip Cancelled",
		Message:     message,
		Data: map[string]interface{}{
			"trip_id": session.ID,
			"reason":  session.CancelReason,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

func alertNotificationType(kind domain.AlertKind) NotificationType {
	switch kind {
	case domain.AlertTransfer:
		return NotificationTransferAhead
	case domain.AlertTransferImminent:
		return NotificationTransferImminent
	case domain.AlertDestination:
		return NotificationNearDestination
	default:
		return NotificationArrived
	}
}

func alertTitle(kind domain.AlertKind) string {
	switch kind {
	case domain.AlertTransfer:
		return "Transfer Ahead"
	case domain.AlertTransferImminent:
		return "Get Ready to Transfer"
	case domain.AlertDestination:
		return "Almost There"
	default:
		return "You Have Arrived"
	}
}

// send delivers a notification (mock implementation).
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	// In a real implementation, this would:
	// 1. Store notification in database
	// 2. Send push notification via FCM/APNS
	// 3. Send SMS if enabled

	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.RecipientID, notification.Title, notification.Message)

	return nil
}
