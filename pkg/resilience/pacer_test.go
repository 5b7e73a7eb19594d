package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacerWaitsFullDelay(t *testing.T) {
	p := NewPacer(3 * time.Second)
	var asked []time.Duration
	p.after = func(d time.Duration) <-chan time.Time {
		asked = append(asked, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	for i := 0; i < 3; i++ {
		if err := p.Pause(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(asked) != 3 {
		t.Fatalf("expected 3 waits, got %d", len(asked))
	}
	for _, d := range asked {
		if d != 3*time.Second {
			t.Fatalf("expected fixed 3s wait, got %v", d)
		}
	}
}

func TestPacerZeroDelayIsNoop(t *testing.T) {
	p := NewPacer(0)
	p.after = func(time.Duration) <-chan time.Time {
		t.Fatal("zero delay should not wait")
		return nil
	}
	if err := p.Pause(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPacerNilIsNoop(t *testing.T) {
	var p *Pacer
	if err := p.Pause(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPacerContextCancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Pause(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
