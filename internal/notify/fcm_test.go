package notify

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"

	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/types"
)

type stubSender struct {
	sent []*messaging.Message
	err  error
}

func (s *stubSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, msg)
	return "msg-1", nil
}

func testTrip() *trip.Trip {
	return &trip.Trip{
		ID:          "t1",
		Source:      types.Point{Lat: -6.862689, Lng: -79.818674},
		Destination: types.Point{Lat: -6.771374, Lng: -79.840881},
		Cost:        types.Money{Amount: 1684, Currency: "PEN"},
		Status:      trip.StatusActive,
		DriverID:    "d1",
		PassengerID: "p1",
	}
}

func TestFCM_TripCreated(t *testing.T) {
	s := &stubSender{}
	n := NewFCM(s)
	if err := n.TripCreated(context.Background(), testTrip()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(s.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.sent))
	}
	if s.sent[0].Topic != "driver-d1" || s.sent[1].Topic != "passenger-p1" {
		t.Fatalf("unexpected topics %q %q", s.sent[0].Topic, s.sent[1].Topic)
	}
	data := s.sent[0].Data
	if data["type"] != "trip_created" || data["trip_id"] != "t1" || data["cost"] != "1684" {
		t.Fatalf("unexpected data %v", data)
	}
	if data["source_lat"] != "-6.862689" || data["destination_lon"] != "-79.840881" {
		t.Fatalf("unexpected coordinates %v", data)
	}
}

func TestFCM_TripEnded(t *testing.T) {
	s := &stubSender{}
	n := NewFCM(s)
	tr := testTrip()
	tr.Status = trip.StatusEnd
	bill := &trip.Bill{ID: "b1", TripID: tr.ID, Cost: tr.Cost}

	if err := n.TripEnded(context.Background(), tr, bill); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(s.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.sent))
	}
	if s.sent[1].Data["bill_id"] != "b1" || s.sent[1].Data["status"] != "END" {
		t.Fatalf("unexpected data %v", s.sent[1].Data)
	}
	if s.sent[1].Notification == nil || s.sent[1].Notification.Body != "You were billed 16.84 PEN" {
		t.Fatalf("unexpected notification %+v", s.sent[1].Notification)
	}
}

func TestFCM_SendError(t *testing.T) {
	boom := errors.New("unavailable")
	n := NewFCM(&stubSender{err: boom})
	if err := n.TripCreated(context.Background(), testTrip()); !errors.Is(err, boom) {
		t.Fatalf("expected send error, got %v", err)
	}
}
