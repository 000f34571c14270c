package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"roam/internal/domain"
)

// FlagStore persists exactly-once delivery flags keyed by
// "{tripID}:{stepID}:{scenario}", with a per-trip index so all flags for a
// trip can be cleared in one call when tracking ends.
type FlagStore interface {
	// SetFlag marks the key delivered. Returns true if the key was newly
	// set, false if it had already been marked.
	SetFlag(ctx context.Context, tripID, key string) (bool, error)

	// ClearTrip removes every flag recorded for the trip.
	ClearTrip(ctx context.Context, tripID string) error
}

// Deduper guarantees exactly-once notification delivery per
// (trip, step, scenario) for the lifetime of a trip's tracking session.
// It is safe to call redundantly on every tick; idempotence is the core
// guarantee, not call-site discipline.
type Deduper struct {
	store  FlagStore
	sender Sender
}

// NewDeduper creates a Deduper over the given flag store and sender.
func NewDeduper(store FlagStore, sender Sender) *Deduper {
	return &Deduper{store: store, sender: sender}
}

// Key builds the dedup key for a step transition.
func Key(tripID, stepID string, scenario domain.NotificationScenario) string {
	return fmt.Sprintf("%s:%s:%s", tripID, stepID, scenario)
}

// NotifyOnce delivers the notification unless its key has already fired.
// The flag is claimed atomically before delivery, so two racing calls with
// the same key schedule exactly one notification. Flag-store and delivery
// failures degrade to a silent no-op; nothing here is allowed to disturb
// the tracking pass.
func (d *Deduper) NotifyOnce(ctx context.Context, tripID, stepID string, scenario domain.NotificationScenario, title, body string, data map[string]interface{}) error {
	key := Key(tripID, stepID, scenario)

	fresh, err := d.store.SetFlag(ctx, tripID, key)
	if err != nil {
		log.Printf("notification flag store unavailable for %s: %v", key, err)
		return nil
	}
	if !fresh {
		return nil
	}

	n := Notification{
		TripID:    tripID,
		StepID:    stepID,
		Scenario:  scenario,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now(),
	}
	if err := d.sender.Send(ctx, n); err != nil {
		log.Printf("notification delivery refused for %s: %v", key, err)
	}

	return nil
}

// ClearTrip removes all delivery flags for the trip, re-arming every
// scenario for a future session.
func (d *Deduper) ClearTrip(ctx context.Context, tripID string) error {
	return d.store.ClearTrip(ctx, tripID)
}
