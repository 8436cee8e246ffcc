package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"waka/internal/domain"
)

// AlertPublisher publishes alert events to an outward message broker.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event domain.AlertEvent) error
}

// AlertDispatcher converts evaluator alert events into outward
// notifications, exactly one per event. It is stateless: the
// at-most-once guarantee lives in the evaluator's per-leg flags, and
// the dispatcher never re-derives "already sent" state.
type AlertDispatcher struct {
	notifications *NotificationService
	publisher     AlertPublisher
}

// NewAlertDispatcher creates a new AlertDispatcher. The publisher may
// be nil when no broker is configured.
func NewAlertDispatcher(notifications *NotificationService, publisher AlertPublisher) *AlertDispatcher {
	return &AlertDispatcher{notifications: notifications, publisher: publisher}
}

// Dispatch formats and forwards each event, returning the events with
// their messages filled in. Delivery failures are logged, not
// propagated: the evaluator already flipped the flags, and the
// session write must not fail because a push went missing.
func (d *AlertDispatcher) Dispatch(ctx context.Context, session *domain.TripSession, route *domain.Route, events []domain.AlertEvent) []domain.AlertEvent {
	if len(events) == 0 {
		return nil
	}

	out := make([]domain.AlertEvent, 0, len(events))
	for _, event := range events {
		event.Message = d.formatMessage(route, event)
		out = append(out, event)

		if d.notifications != nil {
			if err := d.notifications.NotifyAlert(ctx, session.UserID, event); err != nil {
				log.Printf("alert notification failed: trip=%s kind=%s: %v", event.TripID, event.Kind, err)
			}
		}
		if d.publisher != nil {
			if err := d.publisher.PublishAlert(ctx, event); err != nil {
				log.Printf("alert publish failed: trip=%s kind=%s: %v", event.TripID, event.Kind, err)
			}
		}
	}

	return out
}

func (d *AlertDispatcher) formatMessage(route *domain.Route, event domain.AlertEvent) string {
	leg := legBySeq(route, event.LegSeq)
	if leg == nil {
		return string(event.Kind)
	}

	place := waypointName(leg.To)

	switch event.Kind {
	case domain.AlertTransfer:
		if next := legBySeq(route, event.LegSeq+1); next != nil {
			return fmt.Sprintf("Transfer coming up at %s. Next: %s to %s.",
				place, modeLabel(next.Mode), waypointName(next.To))
		}
		return fmt.Sprintf("Transfer coming up at %s.", place)
	case domain.AlertTransferImminent:
		return fmt.Sprintf("Get ready! Transfer point %s is close.", place)
	case domain.AlertDestination:
		return fmt.Sprintf("Almost there. %s is just ahead.", place)
	case domain.AlertArrived:
		return fmt.Sprintf("You have arrived at %s.", place)
	default:
		return string(event.Kind)
	}
}

func legBySeq(route *domain.Route, seq int) *domain.Leg {
	if seq < 1 || seq > len(route.Legs) {
		return nil
	}
	return &route.Legs[seq-1]
}

func waypointName(w domain.Waypoint) string {
	if w.Name != "" {
		return w.Name
	}
	return fmt.Sprintf("(%.4f, %.4f)", w.Lat, w.Lng)
}

func modeLabel(mode domain.TransportMode) string {
	return strings.ToLower(string(mode))
}
