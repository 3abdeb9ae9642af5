package tabs

// EventKind identifies a manager change event.
type EventKind int

const (
	TabCreated EventKind = iota + 1
	TabUpdated
	TabRemoved
	GroupCreated
	GroupUpdated
	GroupRemoved
	ActiveChanged
	FolderChanged
	FolderRemoved
	// Teardown is emitted once, before Destroy starts removing anything.
	Teardown
)

var eventNames = map[EventKind]string{
	TabCreated:    "tab-created",
	TabUpdated:    "tab-updated",
	TabRemoved:    "tab-removed",
	GroupCreated:  "group-created",
	GroupUpdated:  "group-updated",
	GroupRemoved:  "group-removed",
	ActiveChanged: "active-changed",
	FolderChanged: "folder-changed",
	FolderRemoved: "folder-removed",
	Teardown:      "teardown",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is delivered synchronously to every subscriber. Tab, Group and
// Folder are set for the kinds they concern; for removals they point at the
// already destroyed entity so its last state can still be read.
type Event struct {
	Kind     EventKind
	WindowID int
	SpaceID  string
	Tab      *Tab
	Group    *TabGroup
	Folder   *TabFolder
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every change event and returns a function
// that removes it.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.nextSubID++
	id := m.nextSubID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) emit(e Event) {
	subs := m.subs
	for _, s := range subs {
		s.fn(e)
	}
}

// entity-to-manager events

type tabEventKind int

const (
	tabDestroyed tabEventKind = iota + 1
	tabWindowChanged
	tabSpaceChanged
	tabDataChanged
	tabSleepChanged
	tabVisibilityChanged
	tabBoundsChanged
	tabPipChanged
)

type groupEventKind int

const (
	groupTabAdded groupEventKind = iota + 1
	groupTabRemoved
	groupChanged
	groupDestroyed
)

type groupEvent struct {
	kind      groupEventKind
	tabID     int
	prevGroup int   // groupTabAdded: the group the tab belonged to before
	members   []int // groupDestroyed: members at the moment of destruction
}
