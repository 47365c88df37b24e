// Package rental owns the configured rental providers and routes rental
// requests to them. The SpartanBot registry is the single owner of provider
// state: every mutation is followed by a full snapshot write unless the bot
// runs memory-only.
package rental

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spartanbot/spartanbot/internal/events"
	"github.com/spartanbot/spartanbot/internal/metrics"
	"github.com/spartanbot/spartanbot/internal/storage"
	"github.com/spartanbot/spartanbot/pkg/providers"
)

// SetupResult is the structured outcome of a provider setup attempt.
type SetupResult struct {
	Success bool   `json:"success"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProviderInfo is the externally visible identity of a configured provider.
type ProviderInfo struct {
	UID  string `json:"uid"`
	Type string `json:"type"`
}

// Notifier is told about executed rentals. Failures are logged, never
// propagated.
type Notifier interface {
	RentalExecuted(ctx context.Context, receipt providers.RentalReceipt)
}

// FailureAlerter is told about rentals that could not be executed.
type FailureAlerter interface {
	RentalFailed(ctx context.Context, req Request, cause error)
}

// SpartanBot owns the provider list and registry settings.
type SpartanBot struct {
	mu        sync.Mutex
	settings  map[string]any
	providers []providers.RentalProvider

	// rentMu serializes rental execution so concurrent manual and
	// automatic rentals cannot double-commit the same capacity.
	rentMu sync.Mutex

	// store is nil in memory-only mode, which disables snapshot reads and
	// writes entirely.
	store storage.Storage

	notifier Notifier
	alerter  FailureAlerter
}

// New returns a SpartanBot backed by the given storage. Pass nil for
// memory-only mode.
func New(store storage.Storage) *SpartanBot {
	return &SpartanBot{
		settings: make(map[string]any),
		store:    store,
	}
}

// SetNotifier installs a best-effort rental notifier.
func (s *SpartanBot) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetAlerter installs a best-effort failure alerter.
func (s *SpartanBot) SetAlerter(a FailureAlerter) {
	s.alerter = a
}

// SetupRentalProvider validates the config, constructs the provider, checks
// its authorization, and on success appends it to the registry and persists
// the full snapshot.
//
// Failure mapping: missing fields and duplicate UIDs return an error
// wrapping ErrValidation; an unknown type tag wraps
// ErrUnsupportedProviderType; a clean authorization rejection is a
// structured {Success:false} result with a nil error so the caller can
// retry with corrected credentials; an error thrown during the
// authorization check is wrapped in AuthorizationCheckError.
func (s *SpartanBot) SetupRentalProvider(ctx context.Context, cfg providers.Config) (*SetupResult, error) {
	return s.setup(ctx, cfg, true)
}

func (s *SpartanBot) setup(ctx context.Context, cfg providers.Config, persist bool) (*SetupResult, error) {
	for field, v := range map[string]string{
		"type":       cfg.Type,
		"api_key":    cfg.APIKey,
		"api_secret": cfg.APISecret,
	} {
		if v == "" {
			return nil, fmt.Errorf("%w: missing required field %q", ErrValidation, field)
		}
	}

	factory, ok := providers.Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w: No Provider found for type %q", ErrUnsupportedProviderType, cfg.Type)
	}

	p, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("construct provider %q: %w", cfg.Type, err)
	}

	authorized, err := p.TestAuthorization(ctx)
	if err != nil {
		return nil, &AuthorizationCheckError{Type: cfg.Type, Err: err}
	}
	if !authorized {
		return &SetupResult{
			Success: false,
			Type:    cfg.Type,
			Message: fmt.Sprintf("authorization failed for provider type %q, check credentials", cfg.Type),
		}, nil
	}

	s.mu.Lock()
	for _, existing := range s.providers {
		if existing.UID() == p.UID() {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: provider with uid %q already configured", ErrValidation, p.UID())
		}
	}
	s.providers = append(s.providers, p)
	metrics.ConfiguredProviders.Set(float64(len(s.providers)))
	s.mu.Unlock()

	if persist {
		if err := s.Serialize(ctx); err != nil {
			// Roll back so a reported failure leaves the list untouched.
			s.removeProvider(p.UID())
			return nil, err
		}
	}
	log.Printf("spartanbot: configured provider %s (%s)", cfg.Type, p.UID())
	return &SetupResult{Success: true, Type: cfg.Type}, nil
}

// removeProvider drops the provider with the given uid from the list,
// returning it with its position so a failed persist can reinsert it.
func (s *SpartanBot) removeProvider(uid string) (providers.RentalProvider, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.providers {
		if p.UID() == uid {
			s.providers = append(s.providers[:i], s.providers[i+1:]...)
			metrics.ConfiguredProviders.Set(float64(len(s.providers)))
			return p, i
		}
	}
	return nil, -1
}

// DeleteRentalProvider removes the provider with the given uid and persists.
// Deleting an unknown uid is an idempotent no-op that still succeeds.
func (s *SpartanBot) DeleteRentalProvider(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid must not be empty", ErrValidation)
	}

	removed, at := s.removeProvider(uid)
	if err := s.Serialize(ctx); err != nil {
		if removed != nil {
			// Reinsert at the old position: the delete did not take effect.
			s.mu.Lock()
			if at > len(s.providers) {
				at = len(s.providers)
			}
			s.providers = append(s.providers[:at], append([]providers.RentalProvider{removed}, s.providers[at:]...)...)
			metrics.ConfiguredProviders.Set(float64(len(s.providers)))
			s.mu.Unlock()
		}
		return err
	}
	if removed != nil {
		log.Printf("spartanbot: removed provider %s (%s)", removed.Type(), uid)
	}
	return nil
}

// SupportedRentalProviders returns the registered provider type tags. Pure,
// no I/O.
func (s *SpartanBot) SupportedRentalProviders() []string {
	return providers.SupportedTypes()
}

// Providers lists the configured providers.
func (s *SpartanBot) Providers() []ProviderInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProviderInfo, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, ProviderInfo{UID: p.UID(), Type: p.Type()})
	}
	return out
}

// ManualRental routes a rental request through an AutoRenter scoped to the
// current provider list. AutoRenter failures are wrapped in
// RentalDelegationError with the cause preserved.
func (s *SpartanBot) ManualRental(ctx context.Context, hashrate float64, duration time.Duration, confirm ConfirmFunc) (*providers.RentalReceipt, error) {
	return s.rent(ctx, Request{Hashrate: hashrate, Duration: duration, Confirm: confirm})
}

func (s *SpartanBot) rent(ctx context.Context, req Request) (*providers.RentalReceipt, error) {
	s.mu.Lock()
	list := append([]providers.RentalProvider(nil), s.providers...)
	s.mu.Unlock()

	s.rentMu.Lock()
	defer s.rentMu.Unlock()

	receipt, err := NewAutoRenter(list).Rent(ctx, req)
	if err != nil {
		if s.alerter != nil {
			s.alerter.RentalFailed(ctx, req, err)
		}
		return nil, &RentalDelegationError{Err: err}
	}
	if s.notifier != nil {
		s.notifier.RentalExecuted(ctx, *receipt)
	}
	return receipt, nil
}

// ListenForTriggers subscribes to spot-rent events and executes each as an
// automatic rental (no confirmation) until ctx is cancelled.
func (s *SpartanBot) ListenForTriggers(ctx context.Context, bus *events.Bus) {
	ch := make(chan events.SpotRentEvent, 8)
	bus.Subscribe(ch, ctx.Done())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if _, err := s.rent(ctx, Request{
					Hashrate:         ev.Hashrate,
					Duration:         ev.Duration,
					ProviderSelector: ev.ProviderSelector,
				}); err != nil {
					log.Printf("spartanbot: triggered rental failed: %v", err)
				}
			}
		}
	}()
}

// Settings returns a copy of the registry settings.
func (s *SpartanBot) Settings() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// Setting returns one settings value as a string, or "".
func (s *SpartanBot) Setting(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.settings[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// SetSetting stores a settings value and persists.
func (s *SpartanBot) SetSetting(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	s.settings[key] = value
	s.mu.Unlock()
	return s.Serialize(ctx)
}

// Serialize writes the full snapshot: settings plus every provider's
// serialized config. A nil store (memory-only mode) makes this a no-op.
func (s *SpartanBot) Serialize(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	s.mu.Lock()
	snap := storage.Snapshot{
		Settings:        make(map[string]any, len(s.settings)),
		RentalProviders: make([]providers.Config, 0, len(s.providers)),
	}
	for k, v := range s.settings {
		snap.Settings[k] = v
	}
	for _, p := range s.providers {
		snap.RentalProviders = append(snap.RentalProviders, p.Serialize())
	}
	s.mu.Unlock()

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("serialize registry: %w", err)
	}
	return nil
}

// Deserialize restores registry state from the persisted snapshot. Persisted
// settings are merged under callerSettings (caller values win on collision)
// and each persisted provider config is re-set-up, so authorization is
// re-validated on every restart. Providers that fail to restore are
// reported through a joined error wrapping ErrProviderRestore; an absent
// snapshot is not an error. Restoring does not itself rewrite the snapshot,
// so a provider that failed on a transient error is retried on the next
// start.
func (s *SpartanBot) Deserialize(ctx context.Context, callerSettings map[string]any) error {
	merged := make(map[string]any)

	var configs []providers.Config
	if s.store != nil {
		snap, err := s.store.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("deserialize registry: %w", err)
		}
		if snap != nil {
			for k, v := range snap.Settings {
				merged[k] = v
			}
			configs = snap.RentalProviders
		}
	}
	for k, v := range callerSettings {
		merged[k] = v
	}

	s.mu.Lock()
	s.settings = merged
	s.mu.Unlock()

	var restoreErrs []error
	for _, cfg := range configs {
		res, err := s.setup(ctx, cfg, false)
		if err != nil {
			restoreErrs = append(restoreErrs, fmt.Errorf("provider %q: %w", cfg.Type, err))
			continue
		}
		if !res.Success {
			restoreErrs = append(restoreErrs, fmt.Errorf("provider %q: %s", cfg.Type, res.Message))
		}
	}
	if len(restoreErrs) > 0 {
		return fmt.Errorf("%w: %w", ErrProviderRestore, errors.Join(restoreErrs...))
	}
	return nil
}
