package provider

import (
	"github.com/ethereum/go-ethereum/event"
)

// Handler receives provider events. Handlers for one subscription run
// sequentially on that subscription's goroutine.
type Handler func(Event)

const eventBuffer = 16

// Subscribe registers h for events named name. The returned subscription
// stops delivery when unsubscribed.
func (a *Adapter) Subscribe(name EventName, h Handler) event.Subscription {
	if a.provider == nil {
		return event.NewSubscription(func(quit <-chan struct{}) error {
			<-quit
			return nil
		})
	}

	ch := make(chan Event, eventBuffer)
	sub := a.provider.SubscribeEvents(ch)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-ch:
				if ev.Name == name {
					h(ev)
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
}

// Unsubscribe stops a subscription created by Subscribe
func (a *Adapter) Unsubscribe(sub event.Subscription) {
	if sub != nil {
		sub.Unsubscribe()
	}
}
