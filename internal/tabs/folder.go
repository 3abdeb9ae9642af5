package tabs

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/lotas/flowtabs/internal/applog"
)

// TabFolder is a named, collapsible list of groups in a space. Folders may
// be empty.
type TabFolder struct {
	id        string
	name      string
	profileID string
	spaceID   string
	groupIDs  []int
	position  float64
	expanded  bool
	destroyed bool

	m *Manager
}

func (f *TabFolder) ID() string        { return f.id }
func (f *TabFolder) Name() string      { return f.name }
func (f *TabFolder) ProfileID() string { return f.profileID }
func (f *TabFolder) SpaceID() string   { return f.spaceID }
func (f *TabFolder) GroupIDs() []int   { return slices.Clone(f.groupIDs) }
func (f *TabFolder) Position() float64 { return f.position }
func (f *TabFolder) Expanded() bool    { return f.expanded }
func (f *TabFolder) Destroyed() bool   { return f.destroyed }

func (f *TabFolder) changed() {
	if f.destroyed {
		return
	}
	f.m.emit(Event{Kind: FolderChanged, SpaceID: f.spaceID, Folder: f})
}

// AddGroup files a group into the folder, taking it out of any other folder.
func (f *TabFolder) AddGroup(groupID int) bool {
	g := f.m.Group(groupID)
	if f.destroyed || g == nil || slices.Contains(f.groupIDs, groupID) {
		return false
	}
	if g.spaceID != f.spaceID {
		return false
	}
	if other := f.m.folders[g.folderID]; other != nil && other != f {
		other.RemoveGroup(groupID)
	}
	f.groupIDs = append(f.groupIDs, groupID)
	g.folderID = f.id
	f.changed()
	f.m.groupUpdated(g)
	return true
}

// RemoveGroup takes a group out of the folder.
func (f *TabFolder) RemoveGroup(groupID int) bool {
	if !f.removeGroup(groupID) {
		return false
	}
	if g := f.m.Group(groupID); g != nil {
		g.folderID = ""
		f.m.groupUpdated(g)
	}
	return true
}

func (f *TabFolder) removeGroup(groupID int) bool {
	idx := slices.Index(f.groupIDs, groupID)
	if idx < 0 {
		return false
	}
	f.groupIDs = slices.Delete(f.groupIDs, idx, idx+1)
	f.changed()
	return true
}

func (f *TabFolder) SetName(name string) bool {
	if f.destroyed || f.name == name {
		return false
	}
	f.name = name
	f.changed()
	return true
}

func (f *TabFolder) SetExpanded(expanded bool) bool {
	if f.destroyed || f.expanded == expanded {
		return false
	}
	f.expanded = expanded
	f.changed()
	return true
}

func (f *TabFolder) SetPosition(position float64) bool {
	if f.destroyed || f.position == position {
		return false
	}
	f.position = position
	f.changed()
	return true
}

// Destroy removes the folder. Its groups stay, unfiled.
func (f *TabFolder) Destroy() error {
	if f.destroyed {
		return fmt.Errorf("tab folder %s: %w", f.id, ErrAlreadyDestroyed)
	}
	for _, id := range f.groupIDs {
		if g := f.m.groups[id]; g != nil && g.folderID == f.id {
			g.folderID = ""
			f.m.groupUpdated(g)
		}
	}
	f.groupIDs = nil
	f.destroyed = true
	delete(f.m.folders, f.id)
	applog.Info("folder.destroyed", "folder", f.id)
	f.m.emit(Event{Kind: FolderRemoved, SpaceID: f.spaceID, Folder: f})
	return nil
}

// CreateTabFolder creates an empty folder. An empty id gets a fresh UUID.
func (m *Manager) CreateTabFolder(id, name, profileID, spaceID string) (*TabFolder, error) {
	if m.destroyed {
		return nil, ErrManagerDestroyed
	}
	if !m.profiles.ResolveProfile(profileID) {
		return nil, fmt.Errorf("profile %q: %w", profileID, ErrInvalidReference)
	}
	if id == "" {
		id = m.newUniqueID()
	}
	if _, dup := m.folders[id]; dup {
		return nil, fmt.Errorf("tab folder %s exists: %w", id, ErrInvalidReference)
	}
	f := &TabFolder{id: id, name: name, profileID: profileID, spaceID: spaceID, expanded: true, m: m}
	m.folders[id] = f
	f.changed()
	return f, nil
}

func (m *Manager) DestroyTabFolder(id string) error {
	f := m.folders[id]
	if f == nil {
		return fmt.Errorf("tab folder %s: %w", id, ErrInvalidReference)
	}
	return f.Destroy()
}

func (m *Manager) Folder(id string) *TabFolder { return m.folders[id] }

// Folders returns every folder ordered by position, then id.
func (m *Manager) Folders() []*TabFolder {
	out := slices.Collect(maps.Values(m.folders))
	slices.SortFunc(out, func(a, b *TabFolder) int {
		return cmp.Or(cmp.Compare(a.position, b.position), cmp.Compare(a.id, b.id))
	})
	return out
}
