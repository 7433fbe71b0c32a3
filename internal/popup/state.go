// Package popup is the popup cache controller: it owns the bookmark list a
// popup shows, keeps it in step with bus events, derives whether the active
// page is bookmarked and filters the list for display.
package popup

// FetchState tracks the bookmark list load.
type FetchState uint8

const (
	FetchIdle FetchState = iota
	FetchLoading
	FetchLoaded
	FetchFailed
)

func (s FetchState) String() string {
	switch s {
	case FetchLoading:
		return "loading"
	case FetchLoaded:
		return "loaded"
	case FetchFailed:
		return "failed"
	default:
		return "idle"
	}
}

// FetchEvent drives FetchState.
type FetchEvent uint8

const (
	FetchStarted FetchEvent = iota
	FetchSucceeded
	FetchErrored
	FetchReset
)

// NextFetch is the fetch state transition function. A result that arrives
// while no load is in flight leaves the state alone.
func NextFetch(s FetchState, ev FetchEvent) FetchState {
	switch ev {
	case FetchStarted:
		return FetchLoading
	case FetchSucceeded:
		if s == FetchLoading {
			return FetchLoaded
		}
	case FetchErrored:
		if s == FetchLoading {
			return FetchFailed
		}
	case FetchReset:
		return FetchIdle
	}
	return s
}

// ToggleState drives the bookmark toggle affordance.
type ToggleState uint8

const (
	ToggleUnknown ToggleState = iota
	ToggleBookmarked
	ToggleNotBookmarked
)

func (s ToggleState) String() string {
	switch s {
	case ToggleBookmarked:
		return "bookmarked"
	case ToggleNotBookmarked:
		return "not-bookmarked"
	default:
		return "unknown"
	}
}

// ToggleEventKind names what happened to the list or the active tab.
type ToggleEventKind uint8

const (
	// Derived carries a fresh IsCurrentPageBookmarked result after the
	// list or active tab changed.
	Derived ToggleEventKind = iota
	Saved
	Deleted
	// Cleared means there is no list to derive from (signed out).
	Cleared
)

type ToggleEvent struct {
	Kind  ToggleEventKind
	Match bool // only for Derived
}

// NextToggle is the toggle state transition function.
func NextToggle(s ToggleState, ev ToggleEvent) ToggleState {
	switch ev.Kind {
	case Derived:
		if ev.Match {
			return ToggleBookmarked
		}
		return ToggleNotBookmarked
	case Saved:
		return ToggleBookmarked
	case Deleted:
		return ToggleNotBookmarked
	case Cleared:
		return ToggleUnknown
	}
	return s
}
