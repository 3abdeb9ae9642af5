// Package tabs tracks every open tab, clusters tabs into groups and keeps
// the per window-space active and focus state consistent.
//
// All state lives in a Manager. Tabs, groups and folders hold ids and report
// changes to their manager; only the manager mutates the registries and the
// active/focus maps. A Manager is not safe for concurrent use: one goroutine
// owns it.
package tabs

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/types"
)

// Deps are the collaborators of a Manager. Surfaces and Notifier may be nil.
type Deps struct {
	Windows  WindowProvider
	Profiles ProfileProvider
	Surfaces SurfaceFactory
	Notifier Notifier

	// NewUniqueID and Now default to uuid.NewString and time.Now.
	NewUniqueID func() string
	Now         func() time.Time
}

// Manager owns the tab, group and folder registries.
type Manager struct {
	windows     WindowProvider
	profiles    ProfileProvider
	surfaces    SurfaceFactory
	notifier    Notifier
	newUniqueID func() string
	now         func() time.Time

	tabs       map[int]*Tab
	groups     map[int]*TabGroup
	folders    map[string]*TabFolder
	active     activeState
	pageBounds map[int]types.Rect

	nextTabID   int
	nextGroupID int
	subs        []subscriber
	nextSubID   int
	destroyed   bool
}

// New creates a Manager.
func New(deps Deps) *Manager {
	m := &Manager{
		windows:     deps.Windows,
		profiles:    deps.Profiles,
		surfaces:    deps.Surfaces,
		notifier:    deps.Notifier,
		newUniqueID: deps.NewUniqueID,
		now:         deps.Now,
		tabs:        make(map[int]*Tab),
		groups:      make(map[int]*TabGroup),
		folders:     make(map[string]*TabFolder),
		active:      newActiveState(),
		pageBounds:  make(map[int]types.Rect),
	}
	if m.newUniqueID == nil {
		m.newUniqueID = uuid.NewString
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// CreateTabOptions describe a new tab. Zero values mean "pick a default".
type CreateTabOptions struct {
	WindowID  int
	ProfileID string
	SpaceID   string
	// GroupID joins an existing group instead of a new default group.
	GroupID int
	URL     string
	// Activate makes the new tab the active item of its window-space.
	Activate bool

	// Restore fields.
	UniqueID        string
	Title           string
	NavHistory      []types.NavEntry
	NavHistoryIndex *int
	Asleep          bool
	Position        *float64
	LastActiveAt    time.Time
}

// CreateTab creates a tab. Omitted window and space default to the focused
// window and its current space, then the last used space. The tab always
// ends up owning exactly one group.
func (m *Manager) CreateTab(ctx context.Context, opts CreateTabOptions) (*Tab, error) {
	if m.destroyed {
		return nil, ErrManagerDestroyed
	}
	win, err := m.targetWindow(opts.WindowID)
	if err != nil {
		return nil, err
	}
	spaceID, profileID, err := m.targetSpace(win, opts)
	if err != nil {
		return nil, err
	}

	if err := m.profiles.LoadProfile(ctx, profileID); err != nil {
		return nil, fmt.Errorf("load profile %q: %w", profileID, err)
	}
	if !m.profiles.ResolveProfile(profileID) {
		return nil, fmt.Errorf("profile %q: %w", profileID, ErrInvalidReference)
	}

	// Loading the profile may have yielded; re-check everything the
	// synchronous part depends on.
	if m.destroyed {
		return nil, ErrManagerDestroyed
	}
	if _, ok := m.windows.ResolveWindow(win.ID); !ok {
		return nil, fmt.Errorf("window %d: %w", win.ID, ErrInvalidReference)
	}
	var target *TabGroup
	if opts.GroupID != 0 {
		target = m.groups[opts.GroupID]
		if target == nil || target.destroyed {
			return nil, fmt.Errorf("tab group %d: %w", opts.GroupID, ErrInvalidReference)
		}
		if !target.hasRoom() {
			return nil, fmt.Errorf("tab group %d: %w", opts.GroupID, ErrGroupFull)
		}
	}

	m.nextTabID++
	t := &Tab{
		id:           m.nextTabID,
		uniqueID:     opts.UniqueID,
		profileID:    profileID,
		windowID:     win.ID,
		spaceID:      spaceID,
		title:        opts.Title,
		asleep:       opts.Asleep,
		lastActiveAt: opts.LastActiveAt,
		surfaces:     m.surfaces,
	}
	if t.uniqueID == "" {
		t.uniqueID = m.newUniqueID()
	}
	if t.lastActiveAt.IsZero() {
		t.lastActiveAt = m.now()
	}
	t.restoreHistory(opts.NavHistory, opts.NavHistoryIndex, opts.URL)

	m.tabs[t.id] = t
	t.events = m.handleTabEvent
	if target != nil {
		target.AddTab(t.id)
	} else {
		pos := -1.0
		if opts.Position != nil {
			pos = *opts.Position
		}
		m.createDefaultGroup(t, pos, "")
	}
	if !t.asleep {
		t.attachSurface()
	}

	applog.Info("tab.created", "tab", t.id, "window", t.windowID, "space", t.spaceID, "group", t.groupID)
	m.emit(Event{Kind: TabCreated, WindowID: t.windowID, SpaceID: t.spaceID, Tab: t})
	m.notify(t.windowID)

	if opts.Activate {
		if err := m.SetActiveTab(t); err != nil {
			return t, err
		}
	}
	return t, nil
}

func (m *Manager) targetWindow(id int) (Window, error) {
	if id != 0 {
		w, ok := m.windows.ResolveWindow(id)
		if !ok {
			return Window{}, fmt.Errorf("window %d: %w", id, ErrInvalidReference)
		}
		return w, nil
	}
	if w, ok := m.windows.FocusedWindow(); ok {
		return w, nil
	}
	if all := m.windows.AllWindows(); len(all) > 0 {
		return all[0], nil
	}
	return Window{}, ErrNoTarget
}

func (m *Manager) targetSpace(win Window, opts CreateTabOptions) (spaceID, profileID string, err error) {
	spaceID, profileID = opts.SpaceID, opts.ProfileID
	if spaceID == "" {
		spaceID = win.CurrentSpace
	}
	if spaceID == "" {
		if sp, ok := m.profiles.LastUsedSpace(); ok {
			spaceID = sp.ID
		}
	}
	if profileID == "" && spaceID != "" {
		if sp, ok := m.profiles.ResolveSpace(spaceID); ok {
			profileID = sp.ProfileID
		}
	}
	if spaceID == "" || profileID == "" {
		return "", "", ErrNoTarget
	}
	return spaceID, profileID, nil
}

func (m *Manager) handleTabEvent(t *Tab, k tabEventKind) {
	switch k {
	case tabDestroyed:
		m.removeTab(t)
	case tabVisibilityChanged, tabBoundsChanged:
		// layout only
	default:
		if _, ok := m.tabs[t.id]; !ok || t.destroyed {
			return
		}
		m.emit(Event{Kind: TabUpdated, WindowID: t.windowID, SpaceID: t.spaceID, Tab: t})
		m.notify(t.windowID)
	}
}

// removeTab runs when a tab is destroyed. It is never called to cause the
// destruction.
func (m *Manager) removeTab(t *Tab) {
	if _, ok := m.tabs[t.id]; !ok {
		return
	}
	ws := types.WindowSpace{WindowID: t.windowID, SpaceID: t.spaceID}
	wasActive := m.active.items[ws] == t.itemKey()

	delete(m.tabs, t.id)
	m.active.forget(t.itemKey())
	if wasActive {
		delete(m.active.items, ws)
		delete(m.active.focused, ws)
	}

	// The tab is already destroyed, so the group's removal handler will not
	// re-home it; a group emptied here destroys itself.
	if g := m.groups[t.groupID]; g != nil {
		g.RemoveTab(t.id)
	}

	applog.Info("tab.removed", "tab", t.id, "window", t.windowID)
	m.emit(Event{Kind: TabRemoved, WindowID: t.windowID, SpaceID: t.spaceID, Tab: t})
	m.notify(t.windowID)

	if m.destroyed {
		return
	}
	if _, ok := m.active.items[ws]; wasActive && !ok {
		m.removeActiveTab(ws)
	} else if m.active.focused[ws] == t.id {
		m.refreshFocus(ws)
	}
}

// Tab returns a live tab by id.
func (m *Manager) Tab(id int) *Tab {
	t := m.tabs[id]
	if t == nil || t.destroyed {
		return nil
	}
	return t
}

// TabByUniqueID finds a live tab by its persistent id.
func (m *Manager) TabByUniqueID(uniqueID string) *Tab {
	for _, t := range m.tabs {
		if t.uniqueID == uniqueID && !t.destroyed {
			return t
		}
	}
	return nil
}

// Tabs returns all live tabs ordered by id.
func (m *Manager) Tabs() []*Tab {
	return m.filterTabs(func(*Tab) bool { return true })
}

func (m *Manager) TabsInWindow(windowID int) []*Tab {
	return m.filterTabs(func(t *Tab) bool { return t.windowID == windowID })
}

func (m *Manager) TabsInWindowSpace(windowID int, spaceID string) []*Tab {
	return m.filterTabs(func(t *Tab) bool { return t.windowID == windowID && t.spaceID == spaceID })
}

func (m *Manager) filterTabs(keep func(*Tab) bool) []*Tab {
	var out []*Tab
	for _, id := range slices.Sorted(maps.Keys(m.tabs)) {
		if t := m.tabs[id]; !t.destroyed && keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// TabCount is the number of live tabs.
func (m *Manager) TabCount() int { return len(m.tabs) }

// Group returns a live group by id.
func (m *Manager) Group(id int) *TabGroup {
	g := m.groups[id]
	if g == nil || g.destroyed {
		return nil
	}
	return g
}

// GroupByTabID returns the group owning the tab.
func (m *Manager) GroupByTabID(tabID int) *TabGroup {
	t := m.Tab(tabID)
	if t == nil {
		return nil
	}
	return m.ResolveGroup(t)
}

// Groups returns all live groups ordered by position, then id.
func (m *Manager) Groups() []*TabGroup {
	return m.filterGroups(func(*TabGroup) bool { return true })
}

func (m *Manager) GroupsInWindowSpace(windowID int, spaceID string) []*TabGroup {
	return m.filterGroups(func(g *TabGroup) bool { return g.windowID == windowID && g.spaceID == spaceID })
}

func (m *Manager) filterGroups(keep func(*TabGroup) bool) []*TabGroup {
	var out []*TabGroup
	for _, g := range m.groups {
		if !g.destroyed && keep(g) {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b *TabGroup) int {
		if c := cmp.Compare(a.position, b.position); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	return out
}

// MoveTab moves a tab to another window-space. A tab leaving a multi-tab
// group gets a default group first, so the rest of its group stays put.
func (m *Manager) MoveTab(tabID, windowID int, spaceID string) error {
	if m.destroyed {
		return ErrManagerDestroyed
	}
	t := m.Tab(tabID)
	if t == nil {
		return fmt.Errorf("tab %d: %w", tabID, ErrInvalidReference)
	}
	if _, ok := m.windows.ResolveWindow(windowID); !ok {
		return fmt.Errorf("window %d: %w", windowID, ErrInvalidReference)
	}
	if spaceID == "" {
		spaceID = t.spaceID
	}
	from := types.WindowSpace{WindowID: t.windowID, SpaceID: t.spaceID}
	to := types.WindowSpace{WindowID: windowID, SpaceID: spaceID}
	if from == to {
		return nil
	}

	g := m.ResolveGroup(t)
	if len(g.tabIDs) > 1 {
		g.RemoveTab(t.id)
		g = m.ResolveGroup(t)
	}
	wasActive := m.active.items[from] == t.itemKey() || m.active.items[from] == g.itemKey()

	if f := m.folders[g.folderID]; f != nil && f.spaceID != spaceID {
		f.RemoveGroup(g.id)
	}
	g.setWindow(windowID)
	g.setSpace(spaceID)
	g.SetPosition(m.nextPosition(to, g.id))
	m.active.forget(t.itemKey())
	m.active.forget(g.itemKey())

	if wasActive {
		m.removeActiveTab(from)
	}
	m.refreshVisibility(from.WindowID)
	m.refreshVisibility(to.WindowID)
	m.notify(from.WindowID)
	m.notify(to.WindowID)
	return nil
}

// SetPageBounds sets the page area of a window; visible tabs get the bounds.
func (m *Manager) SetPageBounds(windowID int, r types.Rect) {
	m.pageBounds[windowID] = r
	for _, t := range m.TabsInWindow(windowID) {
		if t.visible {
			t.SetBounds(r)
		}
	}
}

func (m *Manager) notify(windowID int) {
	if m.notifier != nil && windowID != 0 {
		m.notifier.NotifyWindowTabsChanged(windowID)
	}
}

// Destroyed reports whether Destroy has run.
func (m *Manager) Destroyed() bool { return m.destroyed }

// Destroy tears everything down: groups go first, so destroying the tabs
// afterwards re-homes nothing, then folders go and the maps are cleared.
// Repeated calls are ignored.
func (m *Manager) Destroy() {
	if m.destroyed {
		applog.Warn("manager.destroy.repeat")
		return
	}
	m.destroyed = true
	m.emit(Event{Kind: Teardown})

	for _, g := range m.Groups() {
		g.Destroy()
	}
	for _, t := range m.Tabs() {
		t.Destroy()
	}
	for _, f := range m.Folders() {
		f.Destroy()
	}

	clear(m.tabs)
	clear(m.groups)
	clear(m.folders)
	m.active = newActiveState()
	clear(m.pageBounds)
	applog.Info("manager.destroyed")
}
