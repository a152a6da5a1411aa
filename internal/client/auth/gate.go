package auth

// Decision is a RouteGate verdict for a navigation target.
type Decision int

const (
	// Deferred means the session is still unresolved; the caller should
	// wait rather than redirect, so startup never flashes a false logout.
	Deferred Decision = iota
	// Admitted grants access to the destination.
	Admitted
	// Redirected sends the caller to the unauthenticated entry point.
	Redirected
)

func (d Decision) String() string {
	switch d {
	case Deferred:
		return "deferred"
	case Admitted:
		return "admitted"
	case Redirected:
		return "redirected"
	default:
		return "unknown"
	}
}

// RouteGate decides whether a destination is reachable for the current
// authentication state. It holds no state of its own.
type RouteGate struct {
	auth *Authenticator
}

// NewRouteGate binds a gate to its authenticator.
func NewRouteGate(authenticator *Authenticator) *RouteGate {
	return &RouteGate{auth: authenticator}
}

// Decide admits the destination iff the session is authenticated and the
// principal's role is in requiredRoles. An empty role set admits any
// authenticated principal. Unresolved state defers instead of redirecting.
func (g *RouteGate) Decide(requiredRoles ...string) Decision {
	snapshot := g.auth.Snapshot()
	switch snapshot.State {
	case StateUnresolved:
		return Deferred
	case StateAuthenticated:
	default:
		return Redirected
	}

	if len(requiredRoles) == 0 {
		return Admitted
	}
	for _, role := range requiredRoles {
		if snapshot.Principal != nil && snapshot.Principal.Role == role {
			return Admitted
		}
	}
	return Redirected
}
