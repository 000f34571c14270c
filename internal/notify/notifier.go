package notify

import (
	"context"
	"log"
	"time"

	"roam/internal/domain"
)

// Notification is one user-facing alert tied to a step transition.
type Notification struct {
	TripID    string
	StepID    string
	Scenario  domain.NotificationScenario
	Title     string
	Body      string
	Data      map[string]interface{}
	CreatedAt time.Time
}

// Sender delivers a notification to the traveler's device. A sender may
// refuse delivery (e.g. the user never granted notification permission);
// refusal is reported as an error and treated as a silent no-op upstream.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender is the default delivery path.
// A production deployment would put a push client (FCM, APNS) behind the
// Sender interface instead.
type LogSender struct{}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the notification.
func (s *LogSender) Send(ctx context.Context, n Notification) error {
	log.Printf("[NOTIFICATION] Trip=%s, Step=%s, Scenario=%s, Title=%s, Body=%s",
		n.TripID, n.StepID, n.Scenario, n.Title, n.Body)
	return nil
}
