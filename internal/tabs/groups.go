package tabs

import (
	"errors"
	"fmt"
	"math"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/types"
)

func (m *Manager) newGroup(mode types.Mode, profileID string, windowID int, spaceID string) *TabGroup {
	m.nextGroupID++
	g := &TabGroup{
		id:        m.nextGroupID,
		mode:      mode,
		profileID: profileID,
		windowID:  windowID,
		spaceID:   spaceID,
		m:         m,
	}
	m.groups[g.id] = g
	return g
}

// announce publishes a group once it holds its first members.
func (m *Manager) announce(g *TabGroup) {
	if g.destroyed || g.announced {
		return
	}
	g.announced = true
	m.emit(Event{Kind: GroupCreated, WindowID: g.windowID, SpaceID: g.spaceID, Group: g})
	m.notify(g.windowID)
}

// createDefaultGroup gives t a fresh single-tab normal group. position < 0
// appends the group after every other group of the window-space.
func (m *Manager) createDefaultGroup(t *Tab, position float64, folderID string) *TabGroup {
	g := m.buildDefaultGroup(t, position)
	m.publish(g, folderID)
	return g
}

// buildDefaultGroup re-homes t without emitting anything, so several tabs
// can be re-homed before subscribers look at any of them.
func (m *Manager) buildDefaultGroup(t *Tab, position float64) *TabGroup {
	ws := types.WindowSpace{WindowID: t.windowID, SpaceID: t.spaceID}
	g := m.newGroup(types.ModeNormal, t.profileID, t.windowID, t.spaceID)
	g.visible = t.visible
	if position < 0 {
		position = m.nextPosition(ws, g.id)
	}
	g.position = position
	g.AddTab(t.id)
	return g
}

// publish files a built group into its folder and announces it.
func (m *Manager) publish(g *TabGroup, folderID string) {
	if f := m.folders[folderID]; f != nil && !f.destroyed {
		f.AddGroup(g.id)
	}
	m.announce(g)
}

// nextPosition is one past the largest group position in the window-space.
func (m *Manager) nextPosition(ws types.WindowSpace, exclude int) float64 {
	pos := math.Inf(-1)
	for _, g := range m.groups {
		if g.id == exclude || g.destroyed || g.windowID != ws.WindowID || g.spaceID != ws.SpaceID {
			continue
		}
		pos = max(pos, g.position)
	}
	if math.IsInf(pos, -1) {
		return 0
	}
	return math.Floor(pos) + 1
}

func (m *Manager) handleGroupEvent(g *TabGroup, e groupEvent) {
	switch e.kind {
	case groupTabAdded:
		if prev := m.groups[e.prevGroup]; prev != nil && prev != g && !prev.destroyed {
			prev.RemoveTab(e.tabID)
		}
		if t := m.Tab(e.tabID); t != nil {
			m.promote(t, g)
		}
		m.groupUpdated(g)
	case groupTabRemoved:
		var home *TabGroup
		if t := m.Tab(e.tabID); t != nil && t.groupID == g.id && !m.destroyed {
			home = m.buildDefaultGroup(t, g.position)
		}
		ws := types.WindowSpace{WindowID: g.windowID, SpaceID: g.spaceID}
		if m.active.focused[ws] == e.tabID {
			m.refreshFocus(ws)
		}
		if home != nil {
			m.publish(home, g.folderID)
		}
		m.groupUpdated(g)
	case groupChanged:
		m.groupUpdated(g)
	case groupDestroyed:
		m.onGroupDestroyed(g, e.members)
	}
}

func (m *Manager) groupUpdated(g *TabGroup) {
	if g.destroyed || !g.announced {
		return
	}
	m.emit(Event{Kind: GroupUpdated, WindowID: g.windowID, SpaceID: g.spaceID, Group: g})
	m.notify(g.windowID)
}

// promote hands the active slot held by t over to the split or glance group
// it just joined.
func (m *Manager) promote(t *Tab, g *TabGroup) {
	if g.mode == types.ModeNormal {
		return
	}
	for ws, key := range m.active.items {
		if key != t.itemKey() {
			continue
		}
		gws := types.WindowSpace{WindowID: g.windowID, SpaceID: g.spaceID}
		if ws != gws {
			m.removeActiveTab(ws)
			return
		}
		g.focusedTabID = t.id
		m.setActive(ws, g.itemKey(), t.id)
		return
	}
}

// onGroupDestroyed is the single reassignment path. Every member still alive
// and still pointing at the dying group gets its own new default group. The
// replacements are built first and published after, so no subscriber sees a
// member without a group. During teardown nothing is re-homed.
func (m *Manager) onGroupDestroyed(g *TabGroup, members []int) {
	delete(m.groups, g.id)
	ws := types.WindowSpace{WindowID: g.windowID, SpaceID: g.spaceID}
	wasActive := m.active.items[ws] == g.itemKey()
	prevFocus := m.active.focused[ws]
	if wasActive {
		delete(m.active.items, ws)
		delete(m.active.focused, ws)
	}
	m.active.forget(g.itemKey())

	var homes []*TabGroup
	for _, id := range members {
		t := m.tabs[id]
		if m.destroyed || t == nil || t.destroyed || t.groupID != g.id {
			continue
		}
		homes = append(homes, m.buildDefaultGroup(t, g.position))
	}

	if f := m.folders[g.folderID]; f != nil {
		f.removeGroup(g.id)
	}
	for _, home := range homes {
		m.publish(home, g.folderID)
	}
	applog.Info("group.destroyed", "group", g.id, "mode", g.mode, "members", len(members))
	if g.announced {
		m.emit(Event{Kind: GroupRemoved, WindowID: g.windowID, SpaceID: g.spaceID, Group: g})
		m.notify(g.windowID)
	}
	if m.destroyed {
		return
	}

	if _, ok := m.active.items[ws]; wasActive && !ok {
		if t := m.Tab(prevFocus); t != nil && wsOf(t) == ws {
			m.SetActiveTab(t)
		} else {
			m.removeActiveTab(ws)
		}
	}
	m.refreshVisibility(g.windowID)
}

// CreateTabGroup gathers tabs into a new group. Ids that do not resolve are
// skipped. Groups left empty by the move are destroyed, which re-homes any
// of their other members. If one of the tabs was active, the new group takes
// its place.
func (m *Manager) CreateTabGroup(mode types.Mode, tabIDs []int) (*TabGroup, error) {
	if m.destroyed {
		return nil, ErrManagerDestroyed
	}
	if _, err := types.ParseMode(string(mode)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	var tabs []*Tab
	seen := make(map[int]bool)
	for _, id := range tabIDs {
		if t := m.Tab(id); t != nil && !seen[id] {
			seen[id] = true
			tabs = append(tabs, t)
		}
	}
	if len(tabs) == 0 {
		return nil, ErrEmptyGroup
	}
	if c := maxMembers(mode); c > 0 && len(tabs) > c {
		return nil, fmt.Errorf("%s group of %d tabs: %w", mode, len(tabs), ErrGroupFull)
	}

	var prev []*TabGroup
	for _, t := range tabs {
		pg := m.ResolveGroup(t)
		if len(prev) == 0 || prev[len(prev)-1] != pg {
			prev = append(prev, pg)
		}
	}

	first := tabs[0]
	g := m.newGroup(mode, first.profileID, first.windowID, first.spaceID)
	g.position = prev[0].position
	g.folderID = prev[0].folderID
	g.visible = prev[0].visible
	for _, t := range tabs {
		if !g.AddTab(t.id) {
			applog.Warn("group.add.rejected", "group", g.id, "tab", t.id)
		}
	}

	for _, pg := range prev {
		if !pg.destroyed && len(pg.tabIDs) == 0 {
			pg.Destroy()
		}
	}
	if g.destroyed || len(g.tabIDs) == 0 {
		delete(m.groups, g.id)
		return nil, fmt.Errorf("tab group %d lost its members: %w", g.id, ErrConsistency)
	}
	applog.Info("group.created", "group", g.id, "mode", mode, "tabs", len(g.tabIDs))
	m.publish(g, g.folderID)
	m.refreshVisibility(g.windowID)
	return g, nil
}

// DestroyTabGroup destroys a group; its members are re-homed.
func (m *Manager) DestroyTabGroup(id int) error {
	g := m.groups[id]
	if g == nil {
		return fmt.Errorf("tab group %d: %w", id, ErrInvalidReference)
	}
	return g.Destroy()
}

// ResolveGroup returns the group owning t. A tab whose group does not list
// it is an internal inconsistency: it is logged and the tab gets a fresh
// default group.
func (m *Manager) ResolveGroup(t *Tab) *TabGroup {
	if g := m.groups[t.groupID]; g != nil && !g.destroyed && g.HasTab(t.id) {
		return g
	}
	if t.destroyed || m.tabs[t.id] != t || m.destroyed {
		return nil
	}
	applog.Error("tab.orphaned", ErrConsistency, "tab", t.id, "group", t.groupID)
	return m.createDefaultGroup(t, -1, "")
}

// CheckInvariants verifies every tab resolves to a live group listing it,
// no group is empty, and every focused tab belongs to its active item. It
// holds at every event a subscriber receives, not only between operations.
func (m *Manager) CheckInvariants() error {
	var errs []error
	for id, t := range m.tabs {
		g := m.groups[t.groupID]
		switch {
		case t.destroyed:
			errs = append(errs, fmt.Errorf("tab %d is destroyed but registered: %w", id, ErrConsistency))
		case g == nil || g.destroyed:
			errs = append(errs, fmt.Errorf("tab %d points at missing group %d: %w", id, t.groupID, ErrConsistency))
		case !g.HasTab(id):
			errs = append(errs, fmt.Errorf("group %d does not list tab %d: %w", g.id, id, ErrConsistency))
		}
	}
	for id, g := range m.groups {
		if len(g.tabIDs) == 0 {
			errs = append(errs, fmt.Errorf("group %d is empty: %w", id, ErrConsistency))
		}
		for _, tid := range g.tabIDs {
			if t := m.tabs[tid]; t == nil || t.groupID != id {
				errs = append(errs, fmt.Errorf("group %d lists foreign tab %d: %w", id, tid, ErrConsistency))
			}
		}
	}
	for ws, key := range m.active.items {
		item := m.resolveItem(key)
		if item == nil {
			errs = append(errs, fmt.Errorf("active item of %s does not resolve: %w", ws, ErrConsistency))
			continue
		}
		focus, ok := m.active.focused[ws]
		if !ok {
			continue
		}
		switch a := item.(type) {
		case *Tab:
			if focus != a.id {
				errs = append(errs, fmt.Errorf("focused tab %d of %s is not the active tab: %w", focus, ws, ErrConsistency))
			}
		case *TabGroup:
			if !a.HasTab(focus) {
				errs = append(errs, fmt.Errorf("focused tab %d of %s is not in group %d: %w", focus, ws, a.id, ErrConsistency))
			}
		}
	}
	return errors.Join(errs...)
}
