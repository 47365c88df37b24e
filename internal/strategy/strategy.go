// Package strategy decides whether renting hashrate is currently profitable
// and, when it is, publishes a spot-rent trigger for the orchestration layer.
package strategy

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/spartanbot/spartanbot/internal/events"
	"github.com/spartanbot/spartanbot/internal/market"
	"github.com/spartanbot/spartanbot/internal/metrics"
)

// hashesPerDifficulty is the expected number of hashes to find one block at
// difficulty 1 (2^32 for Bitcoin-family proof of work).
const hashesPerDifficulty = 1 << 32

// ChainState carries the chain inputs a profitability evaluation needs.
// These are explicit parameters; the strategy never reads ambient state.
type ChainState struct {
	// Difficulty is the current network-wide hash difficulty.
	Difficulty float64
	// OwnedHashrate is hashrate already under our control, in H/s.
	OwnedHashrate float64
	// TargetHashrate is the hashrate needed to reach the desired network
	// share, in H/s.
	TargetHashrate float64
}

// ChainSource supplies the current chain state for an evaluation.
type ChainSource interface {
	State(ctx context.Context) (ChainState, error)
}

// Result of one profitability evaluation. Amount is the incremental
// hashrate to rent when profitable, in H/s; it is meaningless otherwise.
type Result struct {
	IsProfitable bool    `json:"is_profitable"`
	Amount       float64 `json:"amount"`
}

// Options tune the profitability computation.
type Options struct {
	// RentalDurationHours is how long a spot rental runs.
	RentalDurationHours float64
	// ProfitWeight scales both cost and expected return; values above 1
	// demand a wider margin before triggering.
	ProfitWeight float64
	// TargetBlockTimeSecs is the chain's target block interval.
	TargetBlockTimeSecs float64
	// BlockReward is the reward per block, in asset units.
	BlockReward float64
	// ProviderSelector optionally pins triggered rentals to one provider
	// type tag.
	ProviderSelector string
}

// Strategy evaluates rental profitability against live market data.
type Strategy struct {
	gateway market.Gateway
	bus     *events.Bus // nil disables trigger publication
	opts    Options

	// control loop tick, shortened in tests
	tick time.Duration
}

func New(gateway market.Gateway, bus *events.Bus, opts Options) *Strategy {
	if opts.RentalDurationHours <= 0 {
		opts.RentalDurationHours = 3
	}
	if opts.ProfitWeight <= 0 {
		opts.ProfitWeight = 1
	}
	if opts.TargetBlockTimeSecs <= 0 {
		opts.TargetBlockTimeSecs = 40
	}
	return &Strategy{gateway: gateway, bus: bus, opts: opts, tick: 5 * time.Second}
}

// NetworkHashrate converts a difficulty to the network hashrate implied by
// the target block time, in H/s.
func NetworkHashrate(difficulty, targetBlockTimeSecs float64) float64 {
	if targetBlockTimeSecs <= 0 {
		return 0
	}
	return difficulty * hashesPerDifficulty / targetBlockTimeSecs
}

// Evaluate fetches market data and computes whether renting is profitable
// right now. Both gateway calls must complete before any arithmetic runs.
// On a profitable result it publishes a spot-rent trigger carrying the
// recommended amount.
func (s *Strategy) Evaluate(ctx context.Context, cs ChainState) (Result, error) {
	if err := s.gateway.CheckCredentials(); err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("evaluate: %w", err)
	}
	weightedCost, err := s.gateway.WeightedRentalCost(ctx)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("evaluate: %w", err)
	}
	assetPrice, err := s.gateway.AssetPriceUSD(ctx)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("evaluate: %w", err)
	}

	networkHashrate := NetworkHashrate(cs.Difficulty, s.opts.TargetBlockTimeSecs)
	cost := networkHashrate * weightedCost * s.opts.RentalDurationHours * s.opts.ProfitWeight

	blocksPerHour := 3600 / s.opts.TargetBlockTimeSecs
	expectedReturn := s.opts.BlockReward * blocksPerHour * s.opts.RentalDurationHours * assetPrice * s.opts.ProfitWeight

	amount := cs.TargetHashrate - cs.OwnedHashrate
	if amount < 0 {
		amount = 0
	}

	res := Result{
		IsProfitable: expectedReturn-cost > 0,
		Amount:       amount,
	}

	if res.IsProfitable {
		metrics.EvaluationsTotal.WithLabelValues("profitable").Inc()
		log.Printf("strategy: profitable (return=%.4f cost=%.4f), recommending %.0f H/s", expectedReturn, cost, amount)
		// Already at or above target: nothing to rent, so no trigger.
		if s.bus != nil && amount > 0 {
			s.bus.Publish(events.SpotRentEvent{
				Hashrate:         amount,
				Duration:         time.Duration(s.opts.RentalDurationHours * float64(time.Hour)),
				ProviderSelector: s.opts.ProviderSelector,
			})
		}
	} else {
		metrics.EvaluationsTotal.WithLabelValues("unprofitable").Inc()
	}
	return res, nil
}

// Monitor runs the continuous profitability loop until ctx is cancelled.
// A non-profitable evaluation and a data-source error both reschedule after
// the configured backoff; neither terminates the loop. The interval setting
// accepts integer seconds or a cron expression and is re-read every control
// tick so it can be changed at runtime.
func (s *Strategy) Monitor(ctx context.Context, source ChainSource, interval func() string) error {
	intervalSetting := "40"
	if interval != nil {
		if v := interval(); v != "" {
			intervalSetting = v
		}
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// First evaluation runs immediately.
	nextRun := time.Now()

	const jobName = "evaluate_profitability"
	log.Printf("strategy: monitor starting, interval setting=%q", intervalSetting)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if interval != nil {
				if v := interval(); v != "" && v != intervalSetting {
					log.Printf("strategy: interval updated from %q to %q", intervalSetting, v)
					intervalSetting = v
					nextRun = nextRunAfter(intervalSetting, time.Now())
				}
			}
			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()
			var runErr error

			cs, err := source.State(ctx)
			if err != nil {
				runErr = fmt.Errorf("chain state: %w", err)
			} else {
				_, runErr = s.Evaluate(ctx, cs)
			}
			if runErr != nil {
				log.Printf("strategy: evaluation failed: %v", runErr)
			}
			metrics.UpdateJobMetrics(jobName, started, runErr)

			nextRun = nextRunAfter(intervalSetting, time.Now())
		}
	}
}

// nextRunAfter computes the next evaluation time from an interval setting
// that is either integer seconds or a cron expression.
func nextRunAfter(setting string, lastRun time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return lastRun.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(lastRun)
	}
	return lastRun.Add(40 * time.Second)
}
