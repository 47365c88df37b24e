package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spartanbot/spartanbot/internal/events"
)

// fakeGateway returns fixed market figures, or an error when set.
type fakeGateway struct {
	weightedCost float64
	assetPrice   float64
	credErr      error
	err          error
	calls        atomic.Int32
}

func (f *fakeGateway) CheckCredentials() error { return f.credErr }

func (f *fakeGateway) WeightedRentalCost(ctx context.Context) (float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return f.weightedCost, nil
}

func (f *fakeGateway) AssetPriceUSD(ctx context.Context) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.assetPrice, nil
}

type staticSource struct{ cs ChainState }

func (s staticSource) State(ctx context.Context) (ChainState, error) { return s.cs, nil }

func TestEvaluateZeroNetworkHashrate(t *testing.T) {
	// With difficulty 0 the cost term vanishes, so profitability reduces to
	// whether the expected return is positive.
	gw := &fakeGateway{weightedCost: 99, assetPrice: 0.05}
	s := New(gw, nil, Options{RentalDurationHours: 3, TargetBlockTimeSecs: 40, BlockReward: 12.5})

	res, err := s.Evaluate(context.Background(), ChainState{Difficulty: 0, TargetHashrate: 1e12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsProfitable {
		t.Error("expected profitable with zero cost and positive return")
	}
	if res.Amount != 1e12 {
		t.Errorf("amount = %v, want 1e12", res.Amount)
	}
}

func TestEvaluateUnprofitable(t *testing.T) {
	// Large difficulty makes the cost term dominate any realistic return.
	gw := &fakeGateway{weightedCost: 1, assetPrice: 0.01}
	s := New(gw, nil, Options{RentalDurationHours: 3, TargetBlockTimeSecs: 40, BlockReward: 12.5})

	res, err := s.Evaluate(context.Background(), ChainState{Difficulty: 1e9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsProfitable {
		t.Error("expected unprofitable result")
	}
}

func TestEvaluateAmountClampedAtZero(t *testing.T) {
	gw := &fakeGateway{weightedCost: 0, assetPrice: 1}
	s := New(gw, nil, Options{BlockReward: 1})

	res, err := s.Evaluate(context.Background(), ChainState{OwnedHashrate: 10, TargetHashrate: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Amount != 0 {
		t.Errorf("amount = %v, want 0", res.Amount)
	}
}

func TestEvaluatePublishesTriggerWhenProfitable(t *testing.T) {
	bus := events.NewBus()
	done := make(chan struct{})
	defer close(done)
	ch := make(chan events.SpotRentEvent, 1)
	bus.Subscribe(ch, done)

	gw := &fakeGateway{weightedCost: 0, assetPrice: 1}
	s := New(gw, bus, Options{RentalDurationHours: 3, BlockReward: 12.5, ProviderSelector: "MiningRigRentals"})

	res, err := s.Evaluate(context.Background(), ChainState{TargetHashrate: 2e12, OwnedHashrate: 5e11})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsProfitable {
		t.Fatal("expected profitable result")
	}

	select {
	case ev := <-ch:
		if ev.Hashrate != 1.5e12 {
			t.Errorf("event hashrate = %v, want 1.5e12", ev.Hashrate)
		}
		if ev.Duration != 3*time.Hour {
			t.Errorf("event duration = %v, want 3h", ev.Duration)
		}
		if ev.ProviderSelector != "MiningRigRentals" {
			t.Errorf("event selector = %q", ev.ProviderSelector)
		}
	case <-time.After(time.Second):
		t.Fatal("no spot-rent event published")
	}
}

func TestEvaluateNoTriggerWhenUnprofitable(t *testing.T) {
	bus := events.NewBus()
	done := make(chan struct{})
	defer close(done)
	ch := make(chan events.SpotRentEvent, 1)
	bus.Subscribe(ch, done)

	gw := &fakeGateway{weightedCost: 1, assetPrice: 0.0001}
	s := New(gw, bus, Options{BlockReward: 12.5})

	if _, err := s.Evaluate(context.Background(), ChainState{Difficulty: 1e9}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected trigger published: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEvaluateNoTriggerWhenAtTarget(t *testing.T) {
	bus := events.NewBus()
	done := make(chan struct{})
	defer close(done)
	ch := make(chan events.SpotRentEvent, 1)
	bus.Subscribe(ch, done)

	// Profitable, but owned hashrate already exceeds the target: a zero
	// amount must not be handed to the renter.
	gw := &fakeGateway{weightedCost: 0, assetPrice: 1}
	s := New(gw, bus, Options{RentalDurationHours: 3, BlockReward: 12.5})

	res, err := s.Evaluate(context.Background(), ChainState{OwnedHashrate: 2e12, TargetHashrate: 1e12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsProfitable || res.Amount != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected trigger published: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEvaluateFailsFastOnMissingCredentials(t *testing.T) {
	credErr := errors.New("missing market data credentials")
	gw := &fakeGateway{credErr: credErr}
	s := New(gw, nil, Options{})

	if _, err := s.Evaluate(context.Background(), ChainState{}); !errors.Is(err, credErr) {
		t.Fatalf("expected credential error, got %v", err)
	}
	if gw.calls.Load() != 0 {
		t.Error("market data was fetched despite missing credentials")
	}
}

func TestEvaluateGatewayError(t *testing.T) {
	wantErr := errors.New("upstream down")
	gw := &fakeGateway{err: wantErr}
	s := New(gw, nil, Options{})

	if _, err := s.Evaluate(context.Background(), ChainState{}); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped gateway error, got %v", err)
	}
}

func TestNextRunAfter(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		setting string
		want    time.Time
	}{
		{"40", base.Add(40 * time.Second)},
		{"90", base.Add(90 * time.Second)},
		{"*/5 * * * *", base.Add(5 * time.Minute)},
		{"garbage", base.Add(40 * time.Second)},
		{"-3", base.Add(40 * time.Second)},
	}
	for _, tt := range tests {
		if got := nextRunAfter(tt.setting, base); !got.Equal(tt.want) {
			t.Errorf("nextRunAfter(%q) = %v, want %v", tt.setting, got, tt.want)
		}
	}
}

func TestMonitorReschedulesAfterUnprofitable(t *testing.T) {
	gw := &fakeGateway{weightedCost: 1, assetPrice: 0.0001}
	s := New(gw, nil, Options{BlockReward: 12.5})
	s.tick = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan error, 1)
	go func() {
		finished <- s.Monitor(ctx, staticSource{cs: ChainState{Difficulty: 1e9}}, func() string { return "1" })
	}()

	// The unprofitable outcome must reschedule, not terminate: wait for a
	// second evaluation.
	deadline := time.Now().Add(5 * time.Second)
	for gw.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("monitor stopped after unprofitable result: %d evaluations", gw.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-finished:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on cancellation")
	}
}

func TestMonitorContinuesPastErrors(t *testing.T) {
	gw := &fakeGateway{err: errors.New("flaky upstream")}
	s := New(gw, nil, Options{})
	s.tick = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan error, 1)
	go func() {
		finished <- s.Monitor(ctx, staticSource{}, func() string { return "1" })
	}()

	deadline := time.Now().Add(5 * time.Second)
	for gw.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("monitor stopped after errors: %d evaluations", gw.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-finished
}
