package providers

import (
	"context"
	"errors"
	"time"
)

// Config is the persistable configuration a rental provider is constructed
// from. Type must match a registered provider type tag. Extra carries
// provider-specific fields that the core does not interpret.
type Config struct {
	Type      string            `json:"type"`
	APIKey    string            `json:"api_key"`
	APISecret string            `json:"api_secret"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// RentalRequest asks a provider for a given amount of hashrate over a
// duration. Hashrate is in hashes per second.
type RentalRequest struct {
	Hashrate float64       `json:"hashrate"`
	Duration time.Duration `json:"duration"`
}

// RentalReceipt is returned by a provider after a successful rental. The
// core passes it through to the caller unchanged.
type RentalReceipt struct {
	RentalID     string        `json:"rental_id"`
	ProviderUID  string        `json:"provider_uid"`
	ProviderType string        `json:"provider_type"`
	Hashrate     float64       `json:"hashrate"`
	Duration     time.Duration `json:"duration"`
	CostBTC      float64       `json:"cost_btc"`
	RentedAt     time.Time     `json:"rented_at"`
}

// RentalProvider is the capability set every configured rental marketplace
// account must implement.
type RentalProvider interface {
	// Type returns the provider type tag (e.g., "MiningRigRentals").
	Type() string
	// UID returns the unique identifier of this configured account.
	UID() string
	// TestAuthorization verifies the configured credentials against the
	// marketplace. A transport failure is returned as an error, which is
	// distinct from a clean false.
	TestAuthorization(ctx context.Context) (bool, error)
	// AvailableHashrate reports how much hashrate the marketplace can
	// currently supply through this account, in hashes per second.
	AvailableHashrate(ctx context.Context) (float64, error)
	// Rent executes a rental and returns the marketplace receipt.
	Rent(ctx context.Context, req RentalRequest) (*RentalReceipt, error)
	// Serialize returns the configuration this provider can be rebuilt from.
	Serialize() Config
}

// Common errors shared across providers.
var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrNotImplemented   = errors.New("not implemented")
)
