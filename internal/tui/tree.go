package tui

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/lotas/flowtabs/internal/types"
)

type rowKind int

const (
	rowWindow rowKind = iota
	rowSpace
	rowFolder
	rowGroup
	rowTab
)

// Row is one line of the inspector tree.
type Row struct {
	Kind    rowKind
	Depth   int
	Label   string
	TabID   int
	GroupID int
	Active  bool
	Focused bool
	Asleep  bool
}

// Selectable reports whether activating the row means anything.
func (r Row) Selectable() bool { return r.Kind == rowTab || r.Kind == rowGroup }

// BuildRows flattens a session into windows, spaces, folders, groups and
// tabs. Normal groups are shown as their single tab.
func BuildRows(sess *types.Session) []Row {
	if sess == nil {
		return nil
	}
	tabByID := make(map[int]types.TabRecord, len(sess.Tabs))
	for _, t := range sess.Tabs {
		tabByID[t.ID] = t
	}
	folderByID := make(map[string]types.TabFolderRecord, len(sess.Folders))
	for _, f := range sess.Folders {
		folderByID[f.ID] = f
	}
	states := make(map[types.WindowSpace]types.WindowState)
	for _, st := range sess.Windows {
		states[types.WindowSpace{WindowID: st.WindowID, SpaceID: st.SpaceID}] = st
	}

	groups := slices.Clone(sess.Groups)
	slices.SortStableFunc(groups, func(a, b types.TabGroupRecord) int {
		return cmp.Or(
			cmp.Compare(a.WindowID, b.WindowID),
			cmp.Compare(a.SpaceID, b.SpaceID),
			cmp.Compare(a.Position, b.Position),
			cmp.Compare(a.ID, b.ID),
		)
	})

	var rows []Row
	lastWindow, lastSpace, lastFolder := 0, "", ""
	for _, g := range groups {
		if g.WindowID != lastWindow {
			rows = append(rows, Row{Kind: rowWindow, Label: fmt.Sprintf("Window %d", g.WindowID)})
			lastWindow, lastSpace, lastFolder = g.WindowID, "", ""
		}
		if g.SpaceID != lastSpace {
			rows = append(rows, Row{Kind: rowSpace, Depth: 1, Label: "Space " + g.SpaceID})
			lastSpace, lastFolder = g.SpaceID, ""
		}
		st := states[types.WindowSpace{WindowID: g.WindowID, SpaceID: g.SpaceID}]

		depth := 2
		if f, ok := folderByID[g.FolderID]; ok {
			if g.FolderID != lastFolder {
				rows = append(rows, Row{Kind: rowFolder, Depth: 2, Label: "▸ " + f.Name})
				lastFolder = g.FolderID
			}
			depth = 3
		} else {
			lastFolder = ""
		}

		if g.Mode != types.ModeNormal {
			rows = append(rows, Row{
				Kind:    rowGroup,
				Depth:   depth,
				Label:   fmt.Sprintf("%s (%d)", g.Mode, len(g.TabIDs)),
				GroupID: g.ID,
				Active:  st.ActiveGroupID == g.ID,
			})
			depth++
		}
		for _, id := range g.TabIDs {
			t, ok := tabByID[id]
			if !ok {
				continue
			}
			label := t.Title
			if label == "" {
				label = t.URL
			}
			rows = append(rows, Row{
				Kind:    rowTab,
				Depth:   depth,
				Label:   label,
				TabID:   t.ID,
				GroupID: g.ID,
				Active:  g.Mode == types.ModeNormal && st.ActiveTabID == t.ID,
				Focused: st.FocusedTabID == t.ID,
				Asleep:  t.Asleep,
			})
		}
	}
	return rows
}
