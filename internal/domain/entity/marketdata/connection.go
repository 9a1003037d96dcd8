package marketdata

import "time"

// ConnState is the lifecycle state of one venue streaming session.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnOpen
	ConnReconnecting
	ConnDead
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnReconnecting:
		return "reconnecting"
	case ConnDead:
		return "dead"
	default:
		return "unknown"
	}
}

const (
	// ReconnectBaseDelay is the wait before the first retry.
	ReconnectBaseDelay = time.Second
	// ReconnectMaxDelay caps exponential growth of the retry wait.
	ReconnectMaxDelay = 30 * time.Second
	// ReconnectMaxAttempts is the circuit breaker budget: this many redials
	// are made; a failure after the last one turns the session Dead and no
	// further dials happen within the run.
	ReconnectMaxAttempts = 10
)

// Session is the reconnect state machine for one venue instance. Values are
// immutable; transitions return the next state so the machine is testable
// without a live socket.
type Session struct {
	State    ConnState
	Attempts int
	Delay    time.Duration
}

// NewSession returns the initial Disconnected state.
func NewSession() Session {
	return Session{State: ConnDisconnected, Delay: ReconnectBaseDelay}
}

// Connecting marks the start of a dial attempt.
func (s Session) Connecting() Session {
	s.State = ConnConnecting
	return s
}

// Opened resets the backoff after a successful open.
func (s Session) Opened() Session {
	return Session{State: ConnOpen, Attempts: 0, Delay: ReconnectBaseDelay}
}

// Failed records a failed connect or an unexpected close. It returns the
// next state and whether another attempt is allowed; the budget is checked
// before counting the new attempt, so all ReconnectMaxAttempts redials
// happen before the state turns Dead. The delay doubles only after a failed
// attempt, so the first retry waits the base delay.
func (s Session) Failed() (Session, bool) {
	if s.Attempts >= ReconnectMaxAttempts {
		s.State = ConnDead
		return s, false
	}
	s.Attempts++
	s.State = ConnReconnecting
	if s.Attempts > 1 {
		s.Delay *= 2
		if s.Delay > ReconnectMaxDelay {
			s.Delay = ReconnectMaxDelay
		}
	}
	return s, true
}

// Stopped returns the session to Disconnected after a graceful stop, making
// the venue resumable by a later run.
func (s Session) Stopped() Session {
	return Session{State: ConnDisconnected, Delay: ReconnectBaseDelay}
}
