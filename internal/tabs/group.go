package tabs

import (
	"fmt"
	"slices"

	"github.com/lotas/flowtabs/internal/types"
)

// SplitMaxTabs is the largest number of panes in a split group.
const SplitMaxTabs = 4

// capacity is the most tabs a group of the mode holds at once, 0 for no
// limit. A glance group momentarily holds a third tab before evicting one.
func capacity(mode types.Mode) int {
	switch mode {
	case types.ModeNormal:
		return 1
	case types.ModeSplit:
		return SplitMaxTabs
	case types.ModeGlance:
		return 3
	}
	return 0
}

// maxMembers is the settled size limit a new group may be created with.
func maxMembers(mode types.Mode) int {
	if mode == types.ModeGlance {
		return 2
	}
	return capacity(mode)
}

func (g *TabGroup) afterAdd(tabID int) {
	if g.mode != types.ModeGlance {
		return
	}
	if len(g.tabIDs) == 1 {
		g.frontTabID = tabID
	}
	if len(g.tabIDs) > 2 {
		for _, id := range g.tabIDs {
			if id != g.frontTabID && id != tabID {
				g.RemoveTab(id)
				break
			}
		}
	}
}

func (g *TabGroup) afterRemove(tabID int) {
	switch g.mode {
	case types.ModeSplit:
		if len(g.tabIDs) < 2 {
			g.Destroy()
		}
	case types.ModeGlance:
		if g.frontTabID == tabID {
			g.frontTabID = 0
			if len(g.tabIDs) > 0 {
				g.frontTabID = g.tabIDs[0]
			}
		}
		if len(g.tabIDs) != 2 {
			g.Destroy()
		}
	}
}

// TabGroup is an ordered cluster of tabs sharing a window and space.
type TabGroup struct {
	id        int
	mode      types.Mode
	profileID string
	spaceID   string
	windowID  int

	tabIDs       []int
	focusedTabID int
	frontTabID   int
	position     float64
	folderID     string
	visible      bool
	destroyed    bool
	announced    bool

	m *Manager
}

func (g *TabGroup) ID() int           { return g.id }
func (g *TabGroup) Mode() types.Mode  { return g.mode }
func (g *TabGroup) ProfileID() string { return g.profileID }
func (g *TabGroup) SpaceID() string   { return g.spaceID }
func (g *TabGroup) WindowID() int     { return g.windowID }
func (g *TabGroup) FocusedTabID() int { return g.focusedTabID }
func (g *TabGroup) Position() float64 { return g.position }
func (g *TabGroup) FolderID() string  { return g.folderID }
func (g *TabGroup) Visible() bool     { return g.visible }
func (g *TabGroup) Destroyed() bool   { return g.destroyed }
func (g *TabGroup) Len() int          { return len(g.tabIDs) }
func (g *TabGroup) TabIDs() []int     { return slices.Clone(g.tabIDs) }

func (g *TabGroup) HasTab(tabID int) bool { return slices.Contains(g.tabIDs, tabID) }

// FrontTabID is the tab shown in front of a glance group, 0 otherwise.
func (g *TabGroup) FrontTabID() int { return g.frontTabID }

func (g *TabGroup) itemKey() itemKey { return itemKey{kind: groupItem, id: g.id} }

// Tabs resolves the member ids, skipping any that no longer resolve.
func (g *TabGroup) Tabs() []*Tab {
	out := make([]*Tab, 0, len(g.tabIDs))
	for _, id := range g.tabIDs {
		if t := g.m.Tab(id); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (g *TabGroup) hasRoom() bool {
	c := capacity(g.mode)
	return c == 0 || len(g.tabIDs) < c
}

func (g *TabGroup) emit(e groupEvent) {
	if g.m != nil {
		g.m.handleGroupEvent(g, e)
	}
}

// AddTab appends a tab and makes this group its owner. It returns false if
// the tab is already a member, does not resolve, or the mode's capacity is
// reached.
func (g *TabGroup) AddTab(tabID int) bool {
	if g.destroyed || g.HasTab(tabID) || !g.hasRoom() {
		return false
	}
	t := g.m.Tab(tabID)
	if t == nil {
		return false
	}

	prev := t.groupID
	g.tabIDs = append(g.tabIDs, tabID)
	t.groupID = g.id
	if g.focusedTabID == 0 {
		g.focusedTabID = tabID
	}

	// the previous group lets go of the tab before the tab reports its new
	// placement
	g.emit(groupEvent{kind: groupTabAdded, tabID: tabID, prevGroup: prev})
	if !g.destroyed {
		g.syncTab(t)
		g.afterAdd(tabID)
	}
	return true
}

// RemoveTab drops a member. The departed tab keeps pointing at this group;
// re-homing it is the manager's job.
func (g *TabGroup) RemoveTab(tabID int) bool {
	idx := slices.Index(g.tabIDs, tabID)
	if idx < 0 {
		return false
	}
	g.tabIDs = slices.Delete(g.tabIDs, idx, idx+1)
	if len(g.tabIDs) == 0 {
		// an empty group is never observable; the departed tab is handed
		// over with the members so the manager can re-home it
		g.destroy([]int{tabID})
		return true
	}
	if g.focusedTabID == tabID {
		g.focusedTabID = g.tabIDs[min(idx, len(g.tabIDs)-1)]
	}

	g.emit(groupEvent{kind: groupTabRemoved, tabID: tabID})
	if !g.destroyed {
		g.afterRemove(tabID)
	}
	return true
}

// SetFocusedTab changes the focused member.
func (g *TabGroup) SetFocusedTab(tabID int) bool {
	if g.destroyed || g.focusedTabID == tabID || !g.HasTab(tabID) {
		return false
	}
	g.focusedTabID = tabID
	g.emit(groupEvent{kind: groupChanged})
	return true
}

// SetFrontTab picks the front tab of a glance group.
func (g *TabGroup) SetFrontTab(tabID int) bool {
	if g.destroyed || g.mode != types.ModeGlance || g.frontTabID == tabID || !g.HasTab(tabID) {
		return false
	}
	g.frontTabID = tabID
	g.emit(groupEvent{kind: groupChanged})
	return true
}

// setWindow moves the group and all of its tabs to another window.
// Manager.MoveTab is the public way to relocate a group.
func (g *TabGroup) setWindow(windowID int) bool {
	if g.destroyed || g.windowID == windowID {
		return false
	}
	g.windowID = windowID
	for _, t := range g.Tabs() {
		t.setWindow(windowID)
	}
	g.emit(groupEvent{kind: groupChanged})
	return true
}

func (g *TabGroup) setSpace(spaceID string) bool {
	if g.destroyed || g.spaceID == spaceID {
		return false
	}
	g.spaceID = spaceID
	for _, t := range g.Tabs() {
		t.setSpace(spaceID)
	}
	g.emit(groupEvent{kind: groupChanged})
	return true
}

// SetVisible shows or hides every member tab.
func (g *TabGroup) SetVisible(visible bool) {
	if g.destroyed {
		return
	}
	g.visible = visible
	for _, t := range g.Tabs() {
		t.SetVisible(visible)
	}
}

func (g *TabGroup) SetPosition(position float64) bool {
	if g.destroyed || g.position == position {
		return false
	}
	g.position = position
	g.emit(groupEvent{kind: groupChanged})
	return true
}

func (g *TabGroup) syncTab(t *Tab) {
	t.setWindow(g.windowID)
	t.setSpace(g.spaceID)
	t.SetVisible(g.visible)
}

// Destroy marks the group destroyed and hands the final member list to the
// manager, which re-homes every surviving member. A second call returns
// ErrAlreadyDestroyed.
func (g *TabGroup) Destroy() error {
	if g.destroyed {
		return fmt.Errorf("tab group %d: %w", g.id, ErrAlreadyDestroyed)
	}
	g.destroy(slices.Clone(g.tabIDs))
	return nil
}

func (g *TabGroup) destroy(members []int) {
	g.destroyed = true
	g.tabIDs = nil
	g.focusedTabID = 0
	g.frontTabID = 0
	g.emit(groupEvent{kind: groupDestroyed, members: members})
}
