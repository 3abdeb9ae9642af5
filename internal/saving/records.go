// Package saving persists the tab manager's state and rebuilds it on start.
package saving

import (
	"context"
	"strconv"

	"github.com/lotas/flowtabs/internal/storage"
	"github.com/lotas/flowtabs/internal/tabs"
	"github.com/lotas/flowtabs/internal/types"
)

// Datastore is one keyed record collection. Values are JSON documents.
type Datastore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	GetAll(ctx context.Context) (map[string][]byte, error)
	Remove(ctx context.Context, key string) (bool, error)
	Wipe(ctx context.Context) error
}

// Namespace names.
const (
	TabsNamespace    = "tabs"
	GroupsNamespace  = "tabgroups"
	FoldersNamespace = "tabfolders"
)

// WindowStateStore keeps the active and focused tab of each window-space.
type WindowStateStore interface {
	SaveWindowStates(ctx context.Context, states []storage.WindowState) error
	LoadWindowStates(ctx context.Context) ([]storage.WindowState, error)
}

// Stores are the record collections. Windows may be nil.
type Stores struct {
	Tabs    Datastore
	Groups  Datastore
	Folders Datastore
	Windows WindowStateStore
}

// StoresFor returns the namespaces of a SQLite store.
func StoresFor(s *storage.Store) Stores {
	return Stores{
		Tabs:    s.Namespace(TabsNamespace),
		Groups:  s.Namespace(GroupsNamespace),
		Folders: s.Namespace(FoldersNamespace),
		Windows: s,
	}
}

// Wipe clears every collection.
func (s Stores) Wipe(ctx context.Context) error {
	for _, ds := range []Datastore{s.Tabs, s.Groups, s.Folders} {
		if err := ds.Wipe(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TabToRecord snapshots a tab. position is the position of its group.
func TabToRecord(t *tabs.Tab, position float64) types.TabRecord {
	return types.TabRecord{
		ID:              t.ID(),
		UniqueID:        t.UniqueID(),
		WindowID:        t.WindowID(),
		GroupID:         t.GroupID(),
		ProfileID:       t.ProfileID(),
		SpaceID:         t.SpaceID(),
		Title:           t.Title(),
		URL:             t.URL(),
		IsLoading:       t.Loading(),
		Audible:         t.Audible(),
		Muted:           t.Muted(),
		Asleep:          t.Asleep(),
		NavHistory:      t.NavHistory(),
		NavHistoryIndex: t.NavHistoryIndex(),
		Position:        position,
		LastActiveAt:    t.LastActiveAt().Unix(),
	}
}

func GroupToRecord(g *tabs.TabGroup) types.TabGroupRecord {
	rec := types.TabGroupRecord{
		ID:        g.ID(),
		Mode:      g.Mode(),
		ProfileID: g.ProfileID(),
		SpaceID:   g.SpaceID(),
		WindowID:  g.WindowID(),
		TabIDs:    g.TabIDs(),
		Position:  g.Position(),
		FolderID:  g.FolderID(),
	}
	if g.Mode() == types.ModeGlance && g.FrontTabID() != 0 {
		front := g.FrontTabID()
		rec.GlanceFrontTabID = &front
	}
	return rec
}

func FolderToRecord(f *tabs.TabFolder) types.TabFolderRecord {
	return types.TabFolderRecord{
		ID:          f.ID(),
		Name:        f.Name(),
		ProfileID:   f.ProfileID(),
		SpaceID:     f.SpaceID(),
		TabGroupIDs: f.GroupIDs(),
		Position:    f.Position(),
		Expanded:    f.Expanded(),
	}
}

// Snapshot collects every record of the manager.
func Snapshot(m *tabs.Manager) types.Session {
	var s types.Session
	for _, t := range m.Tabs() {
		s.Tabs = append(s.Tabs, TabToRecord(t, groupPosition(m, t)))
	}
	for _, g := range m.Groups() {
		s.Groups = append(s.Groups, GroupToRecord(g))
	}
	for _, f := range m.Folders() {
		s.Folders = append(s.Folders, FolderToRecord(f))
	}
	s.Windows = m.WindowStates()
	return s
}

func groupPosition(m *tabs.Manager, t *tabs.Tab) float64 {
	if g := m.Group(t.GroupID()); g != nil {
		return g.Position()
	}
	return 0
}

func groupKey(id int) string { return strconv.Itoa(id) }
