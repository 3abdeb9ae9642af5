package saving

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/tabs"
	"github.com/lotas/flowtabs/internal/types"
)

// Load reads the stored session. Tabs the policy considers stale are
// removed from the store instead of being returned. Records that do not
// decode are skipped.
func Load(ctx context.Context, stores Stores, policy Policy) (types.Session, error) {
	sess := types.Session{SavedAt: policy.now()}

	rawTabs, err := stores.Tabs.GetAll(ctx)
	if err != nil {
		return sess, fmt.Errorf("load tabs: %w", err)
	}
	archived := 0
	for _, key := range slices.Sorted(maps.Keys(rawTabs)) {
		var rec types.TabRecord
		if err := json.Unmarshal(rawTabs[key], &rec); err != nil {
			applog.Warn("load.tab.corrupt", "key", key, "err", err)
			continue
		}
		if rec.LastActiveAt > 0 && policy.ShouldArchive(time.Unix(rec.LastActiveAt, 0)) {
			if _, err := stores.Tabs.Remove(ctx, key); err != nil {
				return sess, fmt.Errorf("archive tab %s: %w", key, err)
			}
			archived++
			continue
		}
		sess.Tabs = append(sess.Tabs, rec)
	}
	slices.SortStableFunc(sess.Tabs, func(a, b types.TabRecord) int {
		return cmp.Or(cmp.Compare(a.WindowID, b.WindowID), cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	if archived > 0 {
		applog.Info("load.archived", "count", archived)
	}

	if sess.Groups, err = loadRecords[types.TabGroupRecord](ctx, stores.Groups, "group"); err != nil {
		return sess, err
	}
	slices.SortStableFunc(sess.Groups, func(a, b types.TabGroupRecord) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	if sess.Folders, err = loadRecords[types.TabFolderRecord](ctx, stores.Folders, "folder"); err != nil {
		return sess, err
	}
	slices.SortStableFunc(sess.Folders, func(a, b types.TabFolderRecord) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})

	if stores.Windows != nil {
		states, err := stores.Windows.LoadWindowStates(ctx)
		if err != nil {
			return sess, fmt.Errorf("load window states: %w", err)
		}
		ids := make(map[string]int, len(sess.Tabs))
		for _, rec := range sess.Tabs {
			ids[rec.UniqueID] = rec.ID
		}
		for _, st := range states {
			sess.Windows = append(sess.Windows, types.WindowState{
				WindowID:     st.WindowID,
				SpaceID:      st.SpaceID,
				ActiveTabID:  ids[st.ActiveTabID],
				FocusedTabID: ids[st.FocusedTabID],
			})
		}
	}
	return sess, nil
}

func loadRecords[T any](ctx context.Context, ds Datastore, kind string) ([]T, error) {
	raw, err := ds.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %ss: %w", kind, err)
	}
	var out []T
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		var rec T
		if err := json.Unmarshal(raw[key], &rec); err != nil {
			applog.Warn("load."+kind+".corrupt", "key", key, "err", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// WindowCreator opens a window showing the given space.
type WindowCreator interface {
	CreateWindow(ctx context.Context, spaceID string) (int, error)
}

// RestoreResult counts what Restore rebuilt.
type RestoreResult struct {
	Windows int
	Tabs    int
	Groups  int
	Folders int
	Skipped int
}

// Restore rebuilds sess in m: one new window per saved window, sleeping
// tabs, then groups, folders and the active tab of every window-space.
// Saved ids are only used to connect records; the manager assigns new ones.
func Restore(ctx context.Context, m *tabs.Manager, sess types.Session, wc WindowCreator) (RestoreResult, error) {
	var res RestoreResult

	byWindow := make(map[int][]types.TabRecord)
	for _, rec := range sess.Tabs {
		byWindow[rec.WindowID] = append(byWindow[rec.WindowID], rec)
	}
	tabByOld := make(map[int]*tabs.Tab)
	windowByOld := make(map[int]int)
	for _, oldWin := range slices.Sorted(maps.Keys(byWindow)) {
		recs := byWindow[oldWin]
		slices.SortStableFunc(recs, func(a, b types.TabRecord) int {
			return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
		})
		winID, err := wc.CreateWindow(ctx, recs[0].SpaceID)
		if err != nil {
			return res, fmt.Errorf("restore window %d: %w", oldWin, err)
		}
		windowByOld[oldWin] = winID
		res.Windows++
		for _, rec := range recs {
			idx, pos := rec.NavHistoryIndex, rec.Position
			opts := tabs.CreateTabOptions{
				WindowID:        winID,
				ProfileID:       rec.ProfileID,
				SpaceID:         rec.SpaceID,
				URL:             rec.URL,
				UniqueID:        rec.UniqueID,
				Title:           rec.Title,
				NavHistory:      rec.NavHistory,
				NavHistoryIndex: &idx,
				Asleep:          true,
				Position:        &pos,
			}
			if rec.LastActiveAt > 0 {
				opts.LastActiveAt = time.Unix(rec.LastActiveAt, 0)
			}
			t, err := m.CreateTab(ctx, opts)
			if err != nil {
				if m.Destroyed() {
					return res, err
				}
				applog.Warn("restore.tab.skipped", "tab", rec.ID, "err", err)
				res.Skipped++
				continue
			}
			tabByOld[rec.ID] = t
			res.Tabs++
		}
	}

	groupByOld := make(map[int]*tabs.TabGroup)
	for _, rec := range sess.Groups {
		var ids []int
		for _, old := range rec.TabIDs {
			if t := tabByOld[old]; t != nil {
				ids = append(ids, t.ID())
			}
		}
		if len(ids) == 0 {
			continue
		}
		var g *tabs.TabGroup
		if rec.Mode == types.ModeNormal && len(ids) == 1 {
			// the tab already owns a normal group
			g = m.GroupByTabID(ids[0])
		} else {
			var err error
			if g, err = m.CreateTabGroup(rec.Mode, ids); err != nil {
				applog.Warn("restore.group.skipped", "group", rec.ID, "err", err)
				res.Skipped++
				continue
			}
		}
		g.SetPosition(rec.Position)
		if rec.GlanceFrontTabID != nil {
			if t := tabByOld[*rec.GlanceFrontTabID]; t != nil {
				g.SetFrontTab(t.ID())
			}
		}
		groupByOld[rec.ID] = g
		res.Groups++
	}

	for _, rec := range sess.Folders {
		if len(rec.TabGroupIDs) == 0 {
			continue
		}
		f, err := m.CreateTabFolder(rec.ID, rec.Name, rec.ProfileID, rec.SpaceID)
		if err != nil {
			applog.Warn("restore.folder.skipped", "folder", rec.ID, "err", err)
			res.Skipped++
			continue
		}
		f.SetPosition(rec.Position)
		for _, old := range rec.TabGroupIDs {
			if g := groupByOld[old]; g != nil {
				f.AddGroup(g.ID())
			}
		}
		f.SetExpanded(rec.Expanded)
		res.Folders++
	}

	for _, st := range sess.Windows {
		winID, ok := windowByOld[st.WindowID]
		if !ok {
			continue
		}
		if t := tabByOld[st.ActiveTabID]; t != nil && t.WindowID() == winID && t.SpaceID() == st.SpaceID {
			if err := m.SetActiveTab(t); err != nil {
				applog.Warn("restore.active.skipped", "tab", t.ID(), "err", err)
			}
		}
		if t := tabByOld[st.FocusedTabID]; t != nil && t.WindowID() == winID && t.SpaceID() == st.SpaceID {
			m.SetFocusedTab(t.ID())
		}
	}

	// every restored window shows something
	for _, winID := range windowByOld {
		space := m.CurrentSpace(winID)
		if m.ActiveItem(winID, space) != nil {
			continue
		}
		if ts := m.TabsInWindowSpace(winID, space); len(ts) > 0 {
			m.SetActiveTab(ts[0])
		}
	}

	applog.Info("session.restored", "windows", res.Windows, "tabs", res.Tabs, "groups", res.Groups, "folders", res.Folders, "skipped", res.Skipped)
	return res, nil
}
