package watcher

// EventKind represents the category of a filesystem change. It is also the
// partition key for the monitor's registries: each kind gets its own
// independent callback registry.
type EventKind int

const (
	// EventCreated is emitted when a new file or directory appears.
	EventCreated EventKind = iota
	// EventModified is emitted when an existing file changes.
	EventModified
	// EventRemoved is emitted when a file or directory is deleted or moved away.
	EventRemoved
)

// Kinds returns every event kind the monitor tracks.
func Kinds() []EventKind {
	return []EventKind{EventCreated, EventModified, EventRemoved}
}

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a filesystem change notification.
type Event struct {
	// Kind is the category of change (created, modified, removed).
	Kind EventKind

	// Path is the affected path.
	Path string
}
