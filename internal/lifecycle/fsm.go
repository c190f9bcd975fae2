package lifecycle

// State is a session's position in the matchmaking lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateWaiting
	StatePaired
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Input is a lifecycle trigger. Match outcomes are modeled as distinct
// inputs so the transition function stays pure: the controller resolves the
// pairing engine's answer first, then applies the corresponding input.
type Input uint8

const (
	// InputEnqueued: the pool had no partner; the session waits.
	InputEnqueued Input = iota
	// InputMatched: the pairing engine found a partner.
	InputMatched
	// InputSkip: the session abandons its current partner.
	InputSkip
	// InputPartnerSkipped: the partner abandoned the session, which is
	// automatically re-queued.
	InputPartnerSkipped
	// InputPartnerLeft: the partner's transport dropped.
	InputPartnerLeft
	// InputDisconnect: the session's own transport dropped.
	InputDisconnect
)

func (in Input) String() string {
	switch in {
	case InputEnqueued:
		return "enqueued"
	case InputMatched:
		return "matched"
	case InputSkip:
		return "skip"
	case InputPartnerSkipped:
		return "partner_skipped"
	case InputPartnerLeft:
		return "partner_left"
	case InputDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Next is the pure transition function. It returns the successor state and
// whether the edge exists; callers must not mutate session state on a false
// return. Every lifecycle mutation in the controller goes through this
// table, so no undocumented edge can be taken.
func Next(s State, in Input) (State, bool) {
	switch in {
	case InputEnqueued:
		if s == StateIdle {
			return StateWaiting, true
		}
	case InputMatched:
		if s == StateIdle || s == StateWaiting {
			return StatePaired, true
		}
	case InputSkip:
		if s == StatePaired {
			return StateIdle, true
		}
	case InputPartnerSkipped:
		if s == StatePaired {
			return StateWaiting, true
		}
	case InputPartnerLeft:
		if s == StatePaired {
			return StateIdle, true
		}
	case InputDisconnect:
		if s != StateTerminated {
			return StateTerminated, true
		}
	}
	return s, false
}
