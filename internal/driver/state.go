package driver

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateAuthenticating
	StateAuthenticated
	StateDiscovering
	StateClaiming
	StateClosed

	StateLoginFailed
	StateClaimFailed
	StateClaimUnverified
)

var stateNames = map[State]string{
	StateUninitialized:   "uninitialized",
	StateReady:           "ready",
	StateAuthenticating:  "authenticating",
	StateAuthenticated:   "authenticated",
	StateDiscovering:     "discovering",
	StateClaiming:        "claiming",
	StateClosed:          "closed",
	StateLoginFailed:     "login_failed",
	StateClaimFailed:     "claim_failed",
	StateClaimUnverified: "claim_unverified",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// signedIn reports whether item work may proceed from s.
func (s State) signedIn() bool {
	switch s {
	case StateAuthenticated, StateClaimFailed, StateClaimUnverified:
		return true
	}
	return false
}
