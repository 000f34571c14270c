package tracking

import (
	"testing"
	"time"

	"roam/internal/domain"
)

func TestPositionSource_PublishAndHistory(t *testing.T) {
	t.Parallel()

	source := NewPositionSource(3)
	sub := source.Subscribe()
	if sub == nil {
		t.Fatal("expected subscription")
	}

	for i := 0; i < 5; i++ {
		source.Publish(domain.Position{Latitude: float64(i), Timestamp: time.Now()})
	}

	history := source.History()
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
	if history[0].Latitude != 2 || history[2].Latitude != 4 {
		t.Errorf("expected oldest-first window [2..4], got %v..%v", history[0].Latitude, history[2].Latitude)
	}
}

func TestPositionSource_CancelStopsDelivery(t *testing.T) {
	t.Parallel()

	source := NewPositionSource(10)
	sub := source.Subscribe()

	source.Publish(domain.Position{Latitude: 1})
	if pos := <-sub.C; pos.Latitude != 1 {
		t.Fatalf("expected first fix, got %v", pos)
	}

	sub.Cancel()
	sub.Cancel() // safe to repeat

	// Channel is closed after cancel.
	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after cancel")
	}

	// Publishing after cancel must not panic; history still accumulates.
	source.Publish(domain.Position{Latitude: 2})
	if len(source.History()) != 2 {
		t.Errorf("expected 2 retained fixes, got %d", len(source.History()))
	}
}

func TestPositionSource_CloseRejectsFurtherUse(t *testing.T) {
	t.Parallel()

	source := NewPositionSource(10)
	sub := source.Subscribe()
	source.Close()

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after source close")
	}
	if got := source.Subscribe(); got != nil {
		t.Error("expected nil subscription from a closed source")
	}

	source.Publish(domain.Position{Latitude: 1})
	if len(source.History()) != 0 {
		t.Error("closed source must drop publishes")
	}
}
