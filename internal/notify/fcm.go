// README: Pushes trip transitions to drivers and passengers through Firebase
// Cloud Messaging topics.
package notify

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/types"
)

// Sender is the subset of *messaging.Client used here.
type Sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// FCM publishes one data message per recipient to the topics
// "driver-<id>" and "passenger-<id>" that the mobile apps subscribe to.
type FCM struct {
	sender Sender
}

var _ trip.Notifier = (*FCM)(nil)

func NewFCM(sender Sender) *FCM {
	return &FCM{sender: sender}
}

func DriverTopic(id types.ID) string    { return "driver-" + string(id) }
func PassengerTopic(id types.ID) string { return "passenger-" + string(id) }

func (n *FCM) TripCreated(ctx context.Context, t *trip.Trip) error {
	data := tripData("trip_created", t)
	return n.sendAll(ctx, t,
		&messaging.Message{
			Topic: DriverTopic(t.DriverID),
			Data:  data,
			Notification: &messaging.Notification{
				Title: "New trip",
				Body:  fmt.Sprintf("Pick up your passenger, fare %s", t.Cost),
			},
			Android: &messaging.AndroidConfig{Priority: "high"},
		},
		&messaging.Message{
			Topic: PassengerTopic(t.PassengerID),
			Data:  data,
			Notification: &messaging.Notification{
				Title: "Driver on the way",
				Body:  fmt.Sprintf("Your trip costs %s", t.Cost),
			},
		},
	)
}

func (n *FCM) TripEnded(ctx context.Context, t *trip.Trip, b *trip.Bill) error {
	data := tripData("trip_ended", t)
	data["bill_id"] = string(b.ID)
	return n.sendAll(ctx, t,
		&messaging.Message{
			Topic: DriverTopic(t.DriverID),
			Data:  data,
		},
		&messaging.Message{
			Topic: PassengerTopic(t.PassengerID),
			Data:  data,
			Notification: &messaging.Notification{
				Title: "Trip finished",
				Body:  fmt.Sprintf("You were billed %s", b.Cost),
			},
		},
	)
}

func (n *FCM) sendAll(ctx context.Context, t *trip.Trip, msgs ...*messaging.Message) error {
	for _, msg := range msgs {
		messageID, err := n.sender.Send(ctx, msg)
		if err != nil {
			return fmt.Errorf("sending FCM to topic %s: %w", msg.Topic, err)
		}
		log.Printf("FCM sent for trip %s to %s, message_id=%s", t.ID, msg.Topic, messageID)
	}
	return nil
}

func tripData(kind string, t *trip.Trip) map[string]string {
	return map[string]string{
		"type":            kind,
		"trip_id":         string(t.ID),
		"status":          string(t.Status),
		"source_lat":      strconv.FormatFloat(t.Source.Lat, 'f', 6, 64),
		"source_lon":      strconv.FormatFloat(t.Source.Lng, 'f', 6, 64),
		"destination_lat": strconv.FormatFloat(t.Destination.Lat, 'f', 6, 64),
		"destination_lon": strconv.FormatFloat(t.Destination.Lng, 'f', 6, 64),
		"cost":            strconv.FormatInt(t.Cost.Amount, 10),
		"currency":        t.Cost.Currency,
	}
}
