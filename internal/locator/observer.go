package locator

import "fmt"

// State is the lifecycle state of a single search.
type State uint8

const (
	Searching State = iota // candidates left, offsets left
	Exhausted              // candidates emptied early; result is empty
	Complete               // every offset checked; result is final
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Exhausted:
		return "exhausted"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "searching":
		*s = Searching
	case "exhausted":
		*s = Exhausted
	case "complete":
		*s = Complete
	default:
		return fmt.Errorf("locator: unknown state %q", text)
	}
	return nil
}

// Terminal reports whether no further steps follow.
func (s State) Terminal() bool { return s != Searching }

// Step is a diagnostic notification emitted while a search narrows its
// candidates. Steps never influence the search itself.
type Step struct {
	Query  string `json:"query"`
	Icon   string `json:"icon"`
	Offset int    `json:"offset"` // ordinal of Delta in traversal order
	Delta  Point  `json:"delta"`
	State  State  `json:"state"`
	// Remaining is len(Candidates).
	Remaining  int     `json:"remaining"`
	Candidates []Point `json:"-"`
}

// Observer receives search steps. Observe is called synchronously from the
// search loop and should return quickly.
type Observer interface {
	Observe(Step)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Step)

// Observe calls f(s).
func (f ObserverFunc) Observe(s Step) { f(s) }

type multiObserver []Observer

func (m multiObserver) Observe(s Step) {
	for _, o := range m {
		o.Observe(s)
	}
}

// Observers fans steps out to every non-nil observer. It returns nil when
// none is given.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	default:
		return m
	}
}
