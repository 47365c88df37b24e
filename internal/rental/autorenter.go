package rental

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spartanbot/spartanbot/internal/metrics"
	"github.com/spartanbot/spartanbot/pkg/providers"
)

// RentalPlan describes a proposed rental before execution, shown to the
// confirmation callback.
type RentalPlan struct {
	ProviderUID  string        `json:"provider_uid"`
	ProviderType string        `json:"provider_type"`
	Hashrate     float64       `json:"hashrate"`
	Duration     time.Duration `json:"duration"`
}

// ConfirmFunc approves or declines a proposed rental plan. Returning false
// aborts the rental before any provider is called.
type ConfirmFunc func(plan RentalPlan) (bool, error)

// Request is a rental request routed to the auto renter.
type Request struct {
	Hashrate float64
	Duration time.Duration
	// ProviderSelector optionally restricts the rental to one provider
	// type tag; empty means any.
	ProviderSelector string
	// Confirm, when non-nil, must approve the plan before execution.
	Confirm ConfirmFunc
}

// AutoRenter selects an eligible provider for a request and executes the
// rental. It is scoped to the provider list it was constructed with.
type AutoRenter struct {
	providers []providers.RentalProvider
}

func NewAutoRenter(list []providers.RentalProvider) *AutoRenter {
	return &AutoRenter{providers: list}
}

// Rent picks the first eligible provider (active authorization and enough
// available hashrate), runs the confirmation callback if one is supplied,
// and dispatches the rental. The provider's receipt is returned unchanged.
func (a *AutoRenter) Rent(ctx context.Context, req Request) (*providers.RentalReceipt, error) {
	if req.Hashrate <= 0 {
		return nil, fmt.Errorf("%w: hashrate must be positive", ErrValidation)
	}
	if req.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}

	selected := a.selectProvider(ctx, req)
	if selected == nil {
		return nil, fmt.Errorf("%w: no configured provider can supply %.0f H/s", ErrNoEligibleProvider, req.Hashrate)
	}

	if req.Confirm != nil {
		plan := RentalPlan{
			ProviderUID:  selected.UID(),
			ProviderType: selected.Type(),
			Hashrate:     req.Hashrate,
			Duration:     req.Duration,
		}
		ok, err := req.Confirm(plan)
		if err != nil {
			return nil, fmt.Errorf("rental confirmation: %w", err)
		}
		if !ok {
			return nil, ErrUserCancelled
		}
	}

	receipt, err := selected.Rent(ctx, providers.RentalRequest{
		Hashrate: req.Hashrate,
		Duration: req.Duration,
	})
	if err != nil {
		metrics.RentalsTotal.WithLabelValues(selected.Type(), "error").Inc()
		return nil, &RentalExecutionError{ProviderUID: selected.UID(), Err: err}
	}

	metrics.RentalsTotal.WithLabelValues(selected.Type(), "success").Inc()
	metrics.RentedHashrate.WithLabelValues(selected.Type()).Add(req.Hashrate)
	log.Printf("autorenter: rented %.0f H/s for %s via %s (%s)", req.Hashrate, req.Duration, selected.Type(), selected.UID())
	return receipt, nil
}

// selectProvider returns the first provider passing the eligibility checks,
// or nil. Ineligible providers are logged and skipped, never fatal.
func (a *AutoRenter) selectProvider(ctx context.Context, req Request) providers.RentalProvider {
	for _, p := range a.providers {
		if req.ProviderSelector != "" && p.Type() != req.ProviderSelector {
			continue
		}
		ok, err := p.TestAuthorization(ctx)
		if err != nil {
			log.Printf("autorenter: skipping %s (%s): authorization check: %v", p.Type(), p.UID(), err)
			continue
		}
		if !ok {
			log.Printf("autorenter: skipping %s (%s): authorization inactive", p.Type(), p.UID())
			continue
		}
		avail, err := p.AvailableHashrate(ctx)
		if err != nil {
			log.Printf("autorenter: skipping %s (%s): available hashrate: %v", p.Type(), p.UID(), err)
			continue
		}
		if avail < req.Hashrate {
			log.Printf("autorenter: skipping %s (%s): %.0f H/s available, %.0f requested", p.Type(), p.UID(), avail, req.Hashrate)
			continue
		}
		return p
	}
	return nil
}
