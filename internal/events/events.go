// Package events carries the spot-rent trigger from the profitability
// strategy to whatever orchestration layer listens. Decision and execution
// stay decoupled: the strategy only publishes, it never calls the renter.
package events

import (
	"sync"
	"time"
)

// SpotRentEvent asks the orchestration layer to rent Hashrate for Duration.
// ProviderSelector optionally restricts the rental to one provider type tag;
// empty means any eligible provider.
type SpotRentEvent struct {
	Hashrate         float64       `json:"hashrate"`
	Duration         time.Duration `json:"duration"`
	ProviderSelector string        `json:"provider_selector,omitempty"`
}

// Bus is a minimal publish/subscribe channel for spot-rent events.
type Bus struct {
	mu   sync.RWMutex
	subs []chan SpotRentEvent
}

func NewBus() *Bus {
	return &Bus{}
}

// Publish delivers ev to all subscribers. The send is non-blocking so a slow
// subscriber cannot stall the strategy loop; subscribers should use buffered
// channels to avoid missing events.
func (b *Bus) Publish(ev SpotRentEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers ch to receive published events until done is closed.
// A nil done keeps the subscription for the lifetime of the bus.
func (b *Bus) Subscribe(ch chan SpotRentEvent, done <-chan struct{}) {
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	if done == nil {
		return
	}

	go func() {
		<-done

		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
	}()
}

// NumSubscribers reports the current subscriber count.
func (b *Bus) NumSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
