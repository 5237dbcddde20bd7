package requisition

// Status is the local state of a requisition.
//
//	CREATED -> AWAITING_AUTHORIZATION -> LINKED
//	                                  -> REJECTED
//	                                  -> EXPIRED
//
// LINKED can still lapse to EXPIRED when the provider ends access; REJECTED and EXPIRED
// never change.
type Status string

const (
	StatusCreated               Status = "CREATED"
	StatusAwaitingAuthorization Status = "AWAITING_AUTHORIZATION"
	StatusLinked                Status = "LINKED"
	StatusRejected              Status = "REJECTED"
	StatusExpired               Status = "EXPIRED"
)

// FromProvider maps a provider requisition status code to a local Status.
// Unknown codes are treated as still waiting on the user.
func FromProvider(code string) Status {
	switch code {
	case "CR":
		return StatusCreated
	case "GC", "UA", "SA", "GA":
		return StatusAwaitingAuthorization
	case "LN":
		return StatusLinked
	case "RJ", "SU":
		return StatusRejected
	case "EX":
		return StatusExpired
	default:
		return StatusAwaitingAuthorization
	}
}

// IsTerminal reports whether no further authorization progress is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusLinked, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusCreated:
		return next == StatusAwaitingAuthorization || next.IsTerminal()
	case StatusAwaitingAuthorization:
		return next.IsTerminal()
	case StatusLinked:
		return next == StatusExpired
	default:
		return false
	}
}
