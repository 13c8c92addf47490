package eventbus

import (
	"testing"

	"gossipdb/internal/membership"
)

type recorder struct {
	order  *[]string
	joined bool
	dead   bool
}

func (r *recorder) OnJoin(ep membership.Endpoint, _ *membership.EndpointState) {
	r.joined = true
	*r.order = append(*r.order, "join:"+ep.Addr)
}

func (r *recorder) OnDead(ep membership.Endpoint, _ *membership.EndpointState) {
	r.dead = true
	*r.order = append(*r.order, "dead:"+ep.Addr)
}

func TestFireDeliversOnlyToMatchingCapability(t *testing.T) {
	var order []string
	r := &recorder{order: &order}
	b := New()
	b.Subscribe(r)

	ep := membership.Endpoint{Addr: "10.0.0.1", Port: 7000}
	b.FireJoin(ep, nil)
	if !r.joined {
		t.Fatalf("expected OnJoin to be invoked")
	}
	if r.dead {
		t.Fatalf("OnDead should not have fired from FireJoin")
	}
}

func TestFireDeliversInRegistrationOrder(t *testing.T) {
	var order []string
	first := &recorder{order: &order}
	second := &recorder{order: &order}
	b := New()
	b.Subscribe(first)
	b.Subscribe(second)

	ep := membership.Endpoint{Addr: "10.0.0.1", Port: 7000}
	b.FireJoin(ep, nil)

	want := []string{"join:10.0.0.1", "join:10.0.0.1"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestSubscriberWithoutCapabilityIsSkipped(t *testing.T) {
	b := New()
	b.Subscribe(struct{}{})

	// Must not panic when a subscriber implements none of the optional
	// interfaces.
	b.FireJoin(membership.Endpoint{Addr: "10.0.0.1"}, nil)
	b.FireDead(membership.Endpoint{Addr: "10.0.0.1"}, nil)
	b.FireRemove(membership.Endpoint{Addr: "10.0.0.1"})
}
