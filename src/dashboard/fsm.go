package dashboard

import (
	"fmt"
	"sync"
)

// State is the page state shown to the user.
type State int

const (
	StateIdle State = iota
	StateTyping
	StateSuggestionsOpen
	StateLoading
	StateDisplaying
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateTyping:
		return "Typing"
	case StateSuggestionsOpen:
		return "SuggestionsOpen"
	case StateLoading:
		return "Loading"
	case StateDisplaying:
		return "Displaying"
	case StateError:
		return "Error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event is a named transition trigger.
type Event int

const (
	// EventInput: the query is long enough to search.
	EventInput Event = iota
	// EventSuggestions: a filtered list (possibly empty) was rendered.
	EventSuggestions
	// EventSuggestionsFailed: the search request failed.
	EventSuggestionsFailed
	// EventDismiss: the list was closed (short input, Escape, selection).
	EventDismiss
	// EventFetch: a data fetch started.
	EventFetch
	EventFetchSucceeded
	EventFetchFailed
	// EventFetchAborted: the fetch was cancelled; the panel goes back to idle.
	EventFetchAborted
)

func (e Event) String() string {
	switch e {
	case EventInput:
		return "Input"
	case EventSuggestions:
		return "Suggestions"
	case EventSuggestionsFailed:
		return "SuggestionsFailed"
	case EventDismiss:
		return "Dismiss"
	case EventFetch:
		return "Fetch"
	case EventFetchSucceeded:
		return "FetchSucceeded"
	case EventFetchFailed:
		return "FetchFailed"
	case EventFetchAborted:
		return "FetchAborted"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// ErrInvalidTransition is returned for an event the current state does not accept.
type ErrInvalidTransition struct {
	From  State
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("event %s not allowed in state %s", e.Event, e.From)
}

// restTarget marks transitions that land on the resting state: whatever the
// data panel last settled on (Idle, Displaying or Error).
const restTarget State = -1

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventInput:   StateTyping,
		EventDismiss: restTarget,
		EventFetch:   StateLoading,
	},
	StateTyping: {
		EventInput:             StateTyping,
		EventSuggestions:       StateSuggestionsOpen,
		EventSuggestionsFailed: StateError,
		EventDismiss:           restTarget,
		EventFetch:             StateLoading,
	},
	StateSuggestionsOpen: {
		EventInput:       StateTyping,
		EventSuggestions: StateSuggestionsOpen,
		EventDismiss:     restTarget,
		EventFetch:       StateLoading,
	},
	StateLoading: {
		EventInput:   StateTyping,
		EventDismiss: StateLoading,
		EventFetch:   StateLoading,
	},
	StateDisplaying: {
		EventInput:   StateTyping,
		EventDismiss: StateDisplaying,
		EventFetch:   StateLoading,
	},
	StateError: {
		EventInput:   StateTyping,
		EventDismiss: restTarget,
		EventFetch:   StateLoading,
	},
}

// -----------------------------------------------------------------------------

// Machine tracks the page state. The suggestion list and the data panel
// evolve independently, so fetch results update the resting state even
// when the user has started typing again; they only move the visible state
// while it is Loading.
type Machine struct {
	mu       sync.Mutex
	state    State
	rest     State
	loading  bool
	onChange func(from, to State)
}

// -----------------------------------------------------------------------------

func NewMachine(onChange func(from, to State)) *Machine {
	return &Machine{state: StateIdle, rest: StateIdle, onChange: onChange}
}

// -----------------------------------------------------------------------------

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// -----------------------------------------------------------------------------

// Fire applies ev and returns the new state.
func (m *Machine) Fire(ev Event) (State, error) {
	m.mu.Lock()
	from := m.state

	var to State
	switch ev {
	case EventFetchSucceeded, EventFetchFailed, EventFetchAborted:
		if !m.loading {
			m.mu.Unlock()
			return from, &ErrInvalidTransition{From: from, Event: ev}
		}
		m.loading = false
		switch ev {
		case EventFetchSucceeded:
			m.rest = StateDisplaying
		case EventFetchFailed:
			m.rest = StateError
		default:
			m.rest = StateIdle
		}
		to = from
		if from == StateLoading {
			to = m.rest
		}
	default:
		next, ok := transitions[from][ev]
		if !ok {
			m.mu.Unlock()
			return from, &ErrInvalidTransition{From: from, Event: ev}
		}
		if ev == EventFetch {
			m.loading = true
		}
		to = next
		if to == restTarget {
			to = m.rest
			if m.loading {
				to = StateLoading
			}
		}
	}

	m.state = to
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil && from != to {
		onChange(from, to)
	}
	return to, nil
}
