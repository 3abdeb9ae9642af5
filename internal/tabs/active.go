package tabs

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/lotas/flowtabs/internal/types"
)

type itemKind int

const (
	tabItem itemKind = iota + 1
	groupItem
)

// itemKey addresses an active item: a tab on its own or a split/glance group.
type itemKey struct {
	kind itemKind
	id   int
}

// Activatable is a *Tab or a *TabGroup.
type Activatable interface {
	ID() int
	WindowID() int
	SpaceID() string
	itemKey() itemKey
}

type activeState struct {
	items   map[types.WindowSpace]itemKey
	focused map[types.WindowSpace]int
	history map[types.WindowSpace][]itemKey
}

func newActiveState() activeState {
	return activeState{
		items:   make(map[types.WindowSpace]itemKey),
		focused: make(map[types.WindowSpace]int),
		history: make(map[types.WindowSpace][]itemKey),
	}
}

// touch moves k to the most recent end of the window-space's history.
func (s *activeState) touch(ws types.WindowSpace, k itemKey) {
	h := slices.DeleteFunc(s.history[ws], func(e itemKey) bool { return e == k })
	s.history[ws] = append(h, k)
}

// forget drops k from every history.
func (s *activeState) forget(k itemKey) {
	for ws, h := range s.history {
		h = slices.DeleteFunc(h, func(e itemKey) bool { return e == k })
		if len(h) == 0 {
			delete(s.history, ws)
		} else {
			s.history[ws] = h
		}
	}
}

func wsOf(a Activatable) types.WindowSpace {
	return types.WindowSpace{WindowID: a.WindowID(), SpaceID: a.SpaceID()}
}

// activeKeyFor is the item that represents t when it is activated: the tab
// itself in a normal group, its group otherwise.
func (m *Manager) activeKeyFor(t *Tab) itemKey {
	if g := m.groups[t.groupID]; g != nil && !g.destroyed && g.mode != types.ModeNormal {
		return g.itemKey()
	}
	return t.itemKey()
}

func (m *Manager) resolveItem(k itemKey) Activatable {
	switch k.kind {
	case tabItem:
		if t := m.Tab(k.id); t != nil {
			return t
		}
	case groupItem:
		if g := m.Group(k.id); g != nil {
			return g
		}
	}
	return nil
}

// canonical maps a history entry onto what activating it would select now.
func (m *Manager) canonical(k itemKey) (itemKey, int, bool) {
	switch a := m.resolveItem(k).(type) {
	case *Tab:
		return m.activeKeyFor(a), a.id, true
	case *TabGroup:
		if len(a.tabIDs) == 0 {
			return itemKey{}, 0, false
		}
		if a.mode == types.ModeNormal {
			return itemKey{kind: tabItem, id: a.tabIDs[0]}, a.tabIDs[0], true
		}
		return a.itemKey(), a.focusedTabID, true
	}
	return itemKey{}, 0, false
}

// SetActiveTab makes a tab or group the active item of its window-space.
// Activating a tab that sits in a split or glance group activates the group
// and focuses the tab. Activating a group focuses its focused member.
func (m *Manager) SetActiveTab(item Activatable) error {
	if m.destroyed {
		return ErrManagerDestroyed
	}
	if item == nil || m.resolveItem(item.itemKey()) == nil {
		return fmt.Errorf("active item: %w", ErrInvalidReference)
	}

	key, focus, ok := m.canonical(item.itemKey())
	if !ok {
		// an empty group can only be observed mid-destruction
		m.setActive(wsOf(item), item.itemKey(), 0)
		return nil
	}
	if t, isTab := item.(*Tab); isTab {
		focus = t.id
		if key.kind == groupItem {
			m.groups[key.id].SetFocusedTab(t.id)
		}
	}
	m.setActive(wsOf(item), key, focus)
	return nil
}

func (m *Manager) setActive(ws types.WindowSpace, key itemKey, focus int) {
	prevKey, hadActive := m.active.items[ws]
	prevFocus := m.active.focused[ws]

	m.active.items[ws] = key
	m.active.touch(ws, key)
	if focus != 0 {
		m.active.focused[ws] = focus
		if t := m.Tab(focus); t != nil {
			t.lastActiveAt = m.now()
		}
	} else {
		delete(m.active.focused, ws)
	}

	if hadActive && prevKey == key && prevFocus == focus {
		return
	}
	m.refreshVisibility(ws.WindowID)
	m.emit(Event{Kind: ActiveChanged, WindowID: ws.WindowID, SpaceID: ws.SpaceID})
	m.notify(ws.WindowID)
}

// clearActive leaves the window-space with no active item. The change is
// still announced.
func (m *Manager) clearActive(ws types.WindowSpace) {
	delete(m.active.items, ws)
	delete(m.active.focused, ws)
	m.refreshVisibility(ws.WindowID)
	m.emit(Event{Kind: ActiveChanged, WindowID: ws.WindowID, SpaceID: ws.SpaceID})
	m.notify(ws.WindowID)
}

// removeActiveTab picks a replacement for a vanished active item: the most
// recent history entry still living in the window-space, then any group in
// it, then any tab in it, then nothing.
func (m *Manager) removeActiveTab(ws types.WindowSpace) {
	delete(m.active.items, ws)
	delete(m.active.focused, ws)

	h := m.pruneHistory(ws)
	for i := len(h) - 1; i >= 0; i-- {
		key, focus, ok := m.canonical(h[i])
		if !ok {
			continue
		}
		if wsOf(m.resolveItem(key)) != ws {
			continue
		}
		m.setActive(ws, key, focus)
		return
	}
	for _, g := range m.GroupsInWindowSpace(ws.WindowID, ws.SpaceID) {
		if key, focus, ok := m.canonical(g.itemKey()); ok {
			m.setActive(ws, key, focus)
			return
		}
	}
	for _, t := range m.TabsInWindowSpace(ws.WindowID, ws.SpaceID) {
		m.setActive(ws, m.activeKeyFor(t), t.id)
		return
	}
	m.clearActive(ws)
}

// pruneHistory drops entries that no longer resolve and returns the rest.
func (m *Manager) pruneHistory(ws types.WindowSpace) []itemKey {
	h := slices.DeleteFunc(m.active.history[ws], func(k itemKey) bool {
		return m.resolveItem(k) == nil
	})
	if len(h) == 0 {
		delete(m.active.history, ws)
		return nil
	}
	m.active.history[ws] = h
	return h
}

// refreshFocus repairs the focused tab after the active group's membership
// changed.
func (m *Manager) refreshFocus(ws types.WindowSpace) {
	key, ok := m.active.items[ws]
	if !ok {
		return
	}
	focus := m.active.focused[ws]
	var want int
	switch key.kind {
	case tabItem:
		want = key.id
	case groupItem:
		g := m.Group(key.id)
		if g == nil {
			return
		}
		want = focus
		if !g.HasTab(focus) {
			want = g.focusedTabID
		}
	}
	if want != focus {
		m.setActive(ws, key, want)
	}
}

// ActiveItem returns the active *Tab or *TabGroup of a window-space, or nil.
func (m *Manager) ActiveItem(windowID int, spaceID string) Activatable {
	key, ok := m.active.items[types.WindowSpace{WindowID: windowID, SpaceID: spaceID}]
	if !ok {
		return nil
	}
	return m.resolveItem(key)
}

// ActiveTab is the active tab itself, or the focused member of the active
// group.
func (m *Manager) ActiveTab(windowID int, spaceID string) *Tab {
	switch a := m.ActiveItem(windowID, spaceID).(type) {
	case *Tab:
		return a
	case *TabGroup:
		if t := m.FocusedTab(windowID, spaceID); t != nil {
			return t
		}
		return m.Tab(a.focusedTabID)
	}
	return nil
}

func (m *Manager) FocusedTab(windowID int, spaceID string) *Tab {
	id, ok := m.active.focused[types.WindowSpace{WindowID: windowID, SpaceID: spaceID}]
	if !ok {
		return nil
	}
	return m.Tab(id)
}

// SetFocusedTab focuses a tab. A tab outside the active item is activated
// first.
func (m *Manager) SetFocusedTab(tabID int) error {
	t := m.Tab(tabID)
	if t == nil {
		return fmt.Errorf("tab %d: %w", tabID, ErrInvalidReference)
	}
	ws := wsOf(t)
	if key, ok := m.active.items[ws]; ok && key.kind == groupItem && key == m.activeKeyFor(t) {
		m.groups[key.id].SetFocusedTab(t.id)
		m.setActive(ws, key, t.id)
		return nil
	}
	return m.SetActiveTab(t)
}

// History lists the live activation history of a window-space, most recent
// last.
func (m *Manager) History(windowID int, spaceID string) []Activatable {
	var out []Activatable
	for _, k := range m.pruneHistory(types.WindowSpace{WindowID: windowID, SpaceID: spaceID}) {
		out = append(out, m.resolveItem(k))
	}
	return out
}

// CurrentSpace is the space a window shows.
func (m *Manager) CurrentSpace(windowID int) string {
	if w, ok := m.windows.ResolveWindow(windowID); ok {
		return w.CurrentSpace
	}
	return ""
}

// SetCurrentSpace reacts to a window switching spaces: the new space's
// active item becomes visible and everything else in the window is hidden.
// The window provider is expected to report the new space already.
func (m *Manager) SetCurrentSpace(windowID int, spaceID string) {
	m.refreshVisibilityIn(windowID, spaceID)
	m.notify(windowID)
}

func (m *Manager) refreshVisibility(windowID int) {
	m.refreshVisibilityIn(windowID, m.CurrentSpace(windowID))
}

func (m *Manager) refreshVisibilityIn(windowID int, spaceID string) {
	key, hasActive := m.active.items[types.WindowSpace{WindowID: windowID, SpaceID: spaceID}]
	bounds, hasBounds := m.pageBounds[windowID]
	for _, g := range m.filterGroups(func(g *TabGroup) bool { return g.windowID == windowID }) {
		show := hasActive && g.spaceID == spaceID &&
			(g.itemKey() == key || (key.kind == tabItem && g.HasTab(key.id)))
		g.SetVisible(show)
		if !show {
			continue
		}
		for _, t := range g.Tabs() {
			t.WakeUp()
			if hasBounds {
				t.SetBounds(bounds)
			}
		}
	}
}

// WindowStates snapshots the active and focused state of every window-space.
func (m *Manager) WindowStates() []types.WindowState {
	var out []types.WindowState
	keys := slices.SortedFunc(maps.Keys(m.active.items), func(a, b types.WindowSpace) int {
		return cmp.Or(cmp.Compare(a.WindowID, b.WindowID), cmp.Compare(a.SpaceID, b.SpaceID))
	})
	for _, ws := range keys {
		st := types.WindowState{WindowID: ws.WindowID, SpaceID: ws.SpaceID, FocusedTabID: m.active.focused[ws]}
		switch k := m.active.items[ws]; k.kind {
		case tabItem:
			st.ActiveTabID = k.id
			if t := m.Tab(k.id); t != nil {
				st.ActiveGroupID = t.groupID
			}
		case groupItem:
			st.ActiveGroupID = k.id
			st.ActiveTabID = m.active.focused[ws]
		}
		out = append(out, st)
	}
	return out
}
