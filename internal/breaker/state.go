// Package breaker holds the per-processor circuit breaker. Transitions are
// pure functions over CircuitBreakerState; persistence lives in Store so that
// every gateway instance reads the same record from the shared store.
package breaker

import (
	"fmt"
	"time"

	internalErrors "payment-gateway/internal/errors"

	"github.com/goccy/go-json"
)

type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

func (s State) valid() bool {
	switch s {
	case Closed, Open, HalfOpen:
		return true
	}
	return false
}

// CircuitBreakerState is the persisted record of one processor's breaker.
// OpenedAt is set iff State is not Closed.
type CircuitBreakerState struct {
	Name     string     `json:"name"`
	State    State      `json:"state"`
	OpenedAt *time.Time `json:"openedAt,omitempty"`
}

func New(name string) CircuitBreakerState {
	return CircuitBreakerState{Name: name, State: Closed}
}

func IsRequestAllowed(s CircuitBreakerState) bool {
	return s.State != Open
}

// OnRequestResult folds the outcome of a request or probe into the breaker.
// An Open breaker is left untouched; only Promote moves it out of Open.
func OnRequestResult(s CircuitBreakerState, success bool, now time.Time) CircuitBreakerState {
	switch s.State {
	case Closed:
		if !success {
			return Trip(s, now)
		}
	case HalfOpen:
		if success {
			return Reset(s)
		}
		return Trip(s, now)
	}
	return s
}

func Trip(s CircuitBreakerState, now time.Time) CircuitBreakerState {
	openedAt := now.UTC()
	return CircuitBreakerState{Name: s.Name, State: Open, OpenedAt: &openedAt}
}

func Reset(s CircuitBreakerState) CircuitBreakerState {
	return CircuitBreakerState{Name: s.Name, State: Closed}
}

// Promote moves an Open breaker to HalfOpen once it has been open for at
// least cooldown. The second return value reports whether it did.
func Promote(s CircuitBreakerState, now time.Time, cooldown time.Duration) (CircuitBreakerState, bool) {
	if s.State != Open || s.OpenedAt == nil {
		return s, false
	}
	if now.Sub(*s.OpenedAt) < cooldown {
		return s, false
	}

	openedAt := *s.OpenedAt
	return CircuitBreakerState{Name: s.Name, State: HalfOpen, OpenedAt: &openedAt}, true
}

func Marshal(s CircuitBreakerState) ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal decodes a stored record and rejects records that break the
// OpenedAt invariant.
func Unmarshal(raw []byte) (CircuitBreakerState, error) {
	var s CircuitBreakerState
	if err := json.Unmarshal(raw, &s); err != nil {
		return CircuitBreakerState{}, &internalErrors.SerializationError{What: "circuit state", Payload: raw, Err: err}
	}

	if !s.State.valid() {
		return CircuitBreakerState{}, &internalErrors.SerializationError{
			What: "circuit state", Payload: raw, Err: fmt.Errorf("unknown state %q", s.State),
		}
	}

	if (s.State == Closed) != (s.OpenedAt == nil) {
		return CircuitBreakerState{}, &internalErrors.SerializationError{
			What: "circuit state", Payload: raw, Err: fmt.Errorf("openedAt inconsistent with state %s", s.State),
		}
	}

	return s, nil
}

// Decode is Unmarshal with the fail-open default: anything unreadable is a
// fresh Closed breaker for name.
func Decode(name string, raw []byte) CircuitBreakerState {
	s, err := Unmarshal(raw)
	if err != nil {
		return New(name)
	}
	s.Name = name
	return s
}
