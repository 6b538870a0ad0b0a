package domain

// Domain is one of the fixed specialist categories a question is routed to.
// The value is the wire token used by the router protocol.
type Domain string

const (
	DomainFAQ    Domain = "duvidas_app"
	DomainOrders Domain = "pedidos"
	DomainWaste  Domain = "residuos"
)

// Domains lists the closed set of specialist domains.
func Domains() []Domain {
	return []Domain{DomainFAQ, DomainOrders, DomainWaste}
}

// Known reports whether d belongs to the closed set.
func (d Domain) Known() bool {
	switch d {
	case DomainFAQ, DomainOrders, DomainWaste:
		return true
	}
	return false
}

// RouteDecision is the router's verdict: exactly one of Routed or DirectReply.
type RouteDecision interface {
	isRouteDecision()
}

// Routed sends the question to a single specialist. Domain is whatever the
// router emitted; it is checked against the closed set at dispatch time.
type Routed struct {
	Domain           Domain
	OriginalQuestion string
	Clarification    string
}

// DirectReply answers the user without a specialist (out of scope, refusal).
type DirectReply struct {
	Text string
}

func (Routed) isRouteDecision()      {}
func (DirectReply) isRouteDecision() {}
