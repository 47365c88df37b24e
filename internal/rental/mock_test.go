package rental

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/spartanbot/spartanbot/pkg/providers"
)

// mockType is a provider registered for tests only. Its behavior is driven
// by Extra fields so each test constructs exactly the failure mode it needs:
//
//	auth:      "false" rejects authorization, "error" fails the check
//	available: available hashrate in H/s (default 1e15)
//	rent:      "error" fails rental execution
//	uid:       fixed uid (default: fresh)
const mockType = "mock"

var rentCalls atomic.Int32

func init() {
	providers.Register(mockType, func(cfg providers.Config) (providers.RentalProvider, error) {
		p := &mockProvider{cfg: cfg, available: 1e15}
		if v, ok := cfg.Extra["available"]; ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, err
			}
			p.available = f
		}
		p.uid = cfg.Extra["uid"]
		if p.uid == "" {
			p.uid = providers.NewUID()
		}
		return p, nil
	})
}

type mockProvider struct {
	cfg       providers.Config
	uid       string
	available float64
}

func (m *mockProvider) Type() string { return mockType }
func (m *mockProvider) UID() string  { return m.uid }

func (m *mockProvider) TestAuthorization(ctx context.Context) (bool, error) {
	switch m.cfg.Extra["auth"] {
	case "false":
		return false, nil
	case "error":
		return false, errors.New("marketplace unreachable")
	}
	return true, nil
}

func (m *mockProvider) AvailableHashrate(ctx context.Context) (float64, error) {
	return m.available, nil
}

func (m *mockProvider) Rent(ctx context.Context, req providers.RentalRequest) (*providers.RentalReceipt, error) {
	rentCalls.Add(1)
	if m.cfg.Extra["rent"] == "error" {
		return nil, errors.New("order rejected")
	}
	return &providers.RentalReceipt{
		RentalID:     "rental-1",
		ProviderUID:  m.uid,
		ProviderType: mockType,
		Hashrate:     req.Hashrate,
		Duration:     req.Duration,
	}, nil
}

func (m *mockProvider) Serialize() providers.Config {
	cfg := m.cfg
	if cfg.Extra == nil {
		cfg.Extra = map[string]string{}
	} else {
		extra := make(map[string]string, len(cfg.Extra))
		for k, v := range cfg.Extra {
			extra[k] = v
		}
		cfg.Extra = extra
	}
	cfg.Extra["uid"] = m.uid
	return cfg
}

func mockConfig(extra map[string]string) providers.Config {
	return providers.Config{
		Type:      mockType,
		APIKey:    "key",
		APISecret: "secret",
		Extra:     extra,
	}
}
