// Package eventbus implements C8, the failure-event bus: delivery of
// liveness and state-change notifications from the Gossiper's tick to
// subscribers, single-threaded and in registration order (§4.7).
//
// Subscribers declare the capability set they care about by implementing
// only the optional interfaces they need (OnJoin, OnAlive, ...), the same
// mixin-by-interface style the corpus's kickboxerdb uses for its Node
// marker interfaces. Breaking the cyclic reference between Gossiper,
// failure detector and snitch is this package's whole job (§9): nobody
// here holds a back-reference to the Gossiper, so a subscriber calling
// back into gossip state during a notification would have to go out of
// its way to do so — and must not (§4.7).
package eventbus

import "gossipdb/internal/membership"

// OnJoin is implemented by subscribers that react to a brand-new endpoint
// being observed for the first time.
type OnJoin interface {
	OnJoin(ep membership.Endpoint, state *membership.EndpointState)
}

// OnAlive is implemented by subscribers that react to mark_alive.
type OnAlive interface {
	OnAlive(ep membership.Endpoint, state *membership.EndpointState)
}

// OnDead is implemented by subscribers that react to mark_dead.
type OnDead interface {
	OnDead(ep membership.Endpoint, state *membership.EndpointState)
}

// OnRemove is implemented by subscribers that react to eviction.
type OnRemove interface {
	OnRemove(ep membership.Endpoint)
}

// OnChange is implemented by subscribers that react to an application-state
// entry being written, after the write has landed (§4.3.2 two-pass apply).
type OnChange interface {
	OnChange(ep membership.Endpoint, key membership.AppStateKey, state membership.ApplicationState)
}

// BeforeChange is implemented by subscribers that must observe the prior
// value of an application-state entry before it's overwritten.
type BeforeChange interface {
	BeforeChange(ep membership.Endpoint, key membership.AppStateKey, oldState, newState membership.ApplicationState)
}

// OnRestart is implemented by subscribers that react to a major state
// change (strictly larger remote generation, §4.3.2).
type OnRestart interface {
	OnRestart(ep membership.Endpoint, state *membership.EndpointState)
}

// Bus owns the subscriber list and fans out each notification in
// registration order. All methods are intended to be called from the
// Gossiper's single tick goroutine; Bus performs no locking of its own
// because of that single-writer contract (§5).
type Bus struct {
	subscribers []any
}

// New creates an empty event bus.
func New() *Bus { return &Bus{} }

// Subscribe registers a subscriber. Order of registration is the order of
// delivery.
func (b *Bus) Subscribe(s any) { b.subscribers = append(b.subscribers, s) }

func (b *Bus) FireJoin(ep membership.Endpoint, state *membership.EndpointState) {
	for _, s := range b.subscribers {
		if h, ok := s.(OnJoin); ok {
			h.OnJoin(ep, state)
		}
	}
}

func (b *Bus) FireAlive(ep membership.Endpoint, state *membership.EndpointState) {
	for _, s := range b.subscribers {
		if h, ok := s.(OnAlive); ok {
			h.OnAlive(ep, state)
		}
	}
}

func (b *Bus) FireDead(ep membership.Endpoint, state *membership.EndpointState) {
	for _, s := range b.subscribers {
		if h, ok := s.(OnDead); ok {
			h.OnDead(ep, state)
		}
	}
}

func (b *Bus) FireRemove(ep membership.Endpoint) {
	for _, s := range b.subscribers {
		if h, ok := s.(OnRemove); ok {
			h.OnRemove(ep)
		}
	}
}

func (b *Bus) FireChange(ep membership.Endpoint, key membership.AppStateKey, state membership.ApplicationState) {
	for _, s := range b.subscribers {
		if h, ok := s.(OnChange); ok {
			h.OnChange(ep, key, state)
		}
	}
}

func (b *Bus) FireBeforeChange(ep membership.Endpoint, key membership.AppStateKey, oldState, newState membership.ApplicationState) {
	for _, s := range b.subscribers {
		if h, ok := s.(BeforeChange); ok {
			h.BeforeChange(ep, key, oldState, newState)
		}
	}
}

func (b *Bus) FireRestart(ep membership.Endpoint, state *membership.EndpointState) {
	for _, s := range b.subscribers {
		if h, ok := s.(OnRestart); ok {
			h.OnRestart(ep, state)
		}
	}
}
