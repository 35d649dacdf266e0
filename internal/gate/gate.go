// Package gate decides when a caller's session is active. It is a pure
// transition function: the caller owns the State value and feeds events in.
package gate

import (
	"joinlink/internal/channel"
)

type Phase string

const (
	Idle    Phase = "idle"
	Joining Phase = "joining"
	Active  Phase = "active"
	Leaving Phase = "leaving"
)

// State is Idle (no channel) or one of Joining/Active/Leaving on Channel.
// Err holds the last join failure and is cleared on the next join.
type State struct {
	Phase   Phase
	Channel channel.ID
	Err     error
}

// Inactive is the zero activation state.
func Inactive() State { return State{Phase: Idle} }

// IsActive reports whether the session is live.
func (s State) IsActive() bool { return s.Phase == Active }

type Kind string

const (
	CreateSession Kind = "create_session"
	ReceiveLink   Kind = "receive_link"
	Confirmed     Kind = "confirmed"
	Failed        Kind = "failed"
	Exit          Kind = "exit"
	Released      Kind = "released"
)

// Event is an input to Step. Channel is required for CreateSession and
// ReceiveLink; for transport reports it is optional and, when set, must
// match the current channel.
type Event struct {
	Kind    Kind
	Channel channel.ID
	Err     error
}

type Action string

const (
	None  Action = ""
	Join  Action = "join"
	Leave Action = "leave"
)

// Decision is what the caller must do after a transition.
type Decision struct {
	Action  Action
	Channel channel.ID
	Ignored bool
	Reason  string // e.g. "session_in_progress"
	Err     error  // join failure to surface
}

func ignore(reason string) Decision { return Decision{Ignored: true, Reason: reason} }

// Step applies e to s.
func Step(s State, e Event) (State, Decision) {
	switch e.Kind {
	case CreateSession, ReceiveLink:
		if s.Phase != Idle {
			// keep the current session
			return s, ignore("session_in_progress")
		}
		if !e.Channel.Valid() {
			return s, ignore("invalid_channel")
		}
		return State{Phase: Joining, Channel: e.Channel}, Decision{Action: Join, Channel: e.Channel}

	case Confirmed:
		if s.Phase != Joining {
			// late confirm after exit, or duplicate
			return s, ignore("not_joining")
		}
		if stale(s, e) {
			return s, ignore("stale_channel")
		}
		return State{Phase: Active, Channel: s.Channel}, Decision{Channel: s.Channel}

	case Failed:
		if s.Phase != Joining {
			return s, ignore("not_joining")
		}
		if stale(s, e) {
			return s, ignore("stale_channel")
		}
		return State{Phase: Idle, Err: e.Err}, Decision{Channel: s.Channel, Err: e.Err}

	case Exit:
		if s.Phase != Joining && s.Phase != Active {
			return s, ignore("nothing_to_leave")
		}
		return State{Phase: Leaving, Channel: s.Channel}, Decision{Action: Leave, Channel: s.Channel}

	case Released:
		if s.Phase != Leaving {
			return s, ignore("not_leaving")
		}
		if stale(s, e) {
			return s, ignore("stale_channel")
		}
		return Inactive(), Decision{Channel: s.Channel}
	}
	return s, ignore("unknown_event")
}

func stale(s State, e Event) bool {
	return e.Channel != "" && e.Channel != s.Channel
}
