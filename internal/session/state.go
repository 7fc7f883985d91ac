package session

// State is the lifecycle of the loaded record view. The breadcrumb trail
// cycles through the same states independently, keyed off the same
// navigation.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// EventType names a session change notification.
type EventType string

const (
	EventNavigated    EventType = "navigated"
	EventTrailLoaded  EventType = "trail_loaded"
	EventRecordLoaded EventType = "record_loaded"
	EventLoadFailed   EventType = "load_failed"
	EventFieldEdited  EventType = "field_edited"
	EventSaved        EventType = "saved"
	EventChildAdded   EventType = "child_added"
	EventDeleted      EventType = "deleted"
)

// Event is delivered to subscribers after the session state has changed.
// Err is set for EventLoadFailed only.
type Event struct {
	Type EventType
	Path string
	Alt  string
	Err  error
}
