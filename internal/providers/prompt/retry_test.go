package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"studio/internal/infra"
)

type flakyGenerator struct {
	failures int
	calls    int
}

func (f *flakyGenerator) Generate(ctx context.Context, instruction string) (Pair, error) {
	f.calls++
	if f.calls <= f.failures {
		return Pair{}, errors.New("space unavailable")
	}
	return Pair{Positive: "p", Negative: "n", Provider: "flaky"}, nil
}

func TestRetrying(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantCalls int
		wantPair  Pair
		fallback  bool
	}{
		{name: "first try", failures: 0, wantCalls: 1, wantPair: Pair{Positive: "p", Negative: "n", Provider: "flaky"}},
		{name: "recovers", failures: 2, wantCalls: 3, wantPair: Pair{Positive: "p", Negative: "n", Provider: "flaky"}},
		{name: "falls back", failures: 5, wantCalls: 3, wantPair: MockedPair, fallback: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inner := &flakyGenerator{failures: tc.failures}
			var fellBack bool
			r := NewRetrying(inner, RetryOptions{
				Attempts:   3,
				Delay:      time.Millisecond,
				Logger:     infra.Logger{},
				OnFallback: func(error) { fellBack = true },
			})
			pair, err := r.Generate(context.Background(), "x")
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if pair != tc.wantPair {
				t.Fatalf("pair = %+v, want %+v", pair, tc.wantPair)
			}
			if inner.calls != tc.wantCalls {
				t.Fatalf("calls = %d, want %d", inner.calls, tc.wantCalls)
			}
			if fellBack != tc.fallback {
				t.Fatalf("fallback = %v, want %v", fellBack, tc.fallback)
			}
		})
	}
}

func TestRetryingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &flakyGenerator{failures: 10}
	r := NewRetrying(inner, RetryOptions{Attempts: 3, Delay: time.Hour})
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := r.Generate(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d", inner.calls)
	}
}

func TestPairText(t *testing.T) {
	got := Pair{Positive: "a", Negative: "b"}.Text()
	if got != "Positive:\na\n\nNegative:\nb" {
		t.Fatalf("Text = %q", got)
	}
}

func TestStaticGenerator(t *testing.T) {
	pair, err := NewStaticGenerator().Generate(context.Background(), "Design an event promotion post. tone: inviting.")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if pair.Positive != "Design an event promotion post, "+MockedPair.Positive || pair.Negative != MockedPair.Negative {
		t.Fatalf("pair = %+v", pair)
	}
}
