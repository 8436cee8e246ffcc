package tests

import (
	"context"
	"strings"
	"testing"

	"waka/internal/domain"
	"waka/internal/service"
)

// ──────────────────────────────────────────────
// ALERT DISPATCH
// ──────────────────────────────────────────────

func TestDispatch_FillsMessagesAndPublishes(t *testing.T) {
	t.Parallel()

	route := lagosRoute()
	session := &domain.TripSession{ID: "trip-1", UserID: "user-1"}
	publisher := NewMockAlertPublisher()
	dispatcher := service.NewAlertDispatcher(nil, publisher)

	events := []domain.AlertEvent{
		{Kind: domain.AlertTransfer, TripID: "trip-1", LegSeq: 1},
		{Kind: domain.AlertTransferImminent, TripID: "trip-1", LegSeq: 1},
	}
	out := dispatcher.Dispatch(context.Background(), session, route, events)

	if len(out) != 2 {
		t.Fatalf("dispatched = %d, want 2", len(out))
	}
	// The transfer message names the transfer point and the next leg.
	if !strings.Contains(out[0].Message, "Obalende") {
		t.Errorf("transfer message should name the transfer point, got %q", out[0].Message)
	}
	if !strings.Contains(out[0].Message, "keke") {
		t.Errorf("transfer message should name the next mode, got %q", out[0].Message)
	}
	if out[1].Message == "" {
		t.Error("imminent message should not be empty")
	}

	published := publisher.Events()
	if len(published) != 2 {
		t.Fatalf("published = %d, want 2", len(published))
	}
	if published[0].Message != out[0].Message {
		t.Error("published event should carry the formatted message")
	}
}

func TestDispatch_ArrivedNamesFinalDestination(t *testing.T) {
	t.Parallel()

	route := lagosRoute()
	session := &domain.TripSession{ID: "trip-1", UserID: "user-1"}
	dispatcher := service.NewAlertDispatcher(nil, nil)

	out := dispatcher.Dispatch(context.Background(), session, route, []domain.AlertEvent{
		{Kind: domain.AlertArrived, TripID: "trip-1", LegSeq: 2},
	})
	if len(out) != 1 {
		t.Fatalf("dispatched = %d, want 1", len(out))
	}
	if !strings.Contains(out[0].Message, "Falomo") {
		t.Errorf("arrived message should name the destination, got %q", out[0].Message)
	}
}

func TestDispatch_PublishFailureIsNotPropagated(t *testing.T) {
	t.Parallel()

	route := lagosRoute()
	session := &domain.TripSession{ID: "trip-1", UserID: "user-1"}
	publisher := NewMockAlertPublisher()
	publisher.PublishError = ErrMockTimeout
	dispatcher := service.NewAlertDispatcher(nil, publisher)

	out := dispatcher.Dispatch(context.Background(), session, route, []domain.AlertEvent{
		{Kind: domain.AlertDestination, TripID: "trip-1", LegSeq: 2},
	})
	if len(out) != 1 {
		t.Fatalf("dispatch should survive a publish failure, got %d events", len(out))
	}
}

func TestDispatch_NothingToDo(t *testing.T) {
	t.Parallel()

	dispatcher := service.NewAlertDispatcher(nil, nil)
	if out := dispatcher.Dispatch(context.Background(), &domain.TripSession{}, lagosRoute(), nil); out != nil {
		t.Errorf("expected nil for no events, got %v", out)
	}
}
