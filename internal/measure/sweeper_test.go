package measure

import (
	"context"
	"testing"
	"time"
)

func TestSweeperMarksStale(t *testing.T) {
	r := NewRegistry()
	r.Upsert(time.Now().UTC().Add(-time.Hour), Update{Key: "GP_RMC_7", Value: "5.2"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw := &Sweeper{Registry: r, Interval: 10 * time.Millisecond, Window: time.Minute}
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if m, _ := r.Get("GP_RMC_7"); !m.Available {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweeper never marked the measurement stale")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop on cancel")
	}
}
