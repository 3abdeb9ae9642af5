// Package export renders a stored session in human readable formats.
package export

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lotas/flowtabs/internal/types"
)

// section is the groups of one window-space in display order.
type section struct {
	types.WindowSpace
	groups []types.TabGroupRecord
}

func sections(sess types.Session) []section {
	groups := slices.Clone(sess.Groups)
	slices.SortStableFunc(groups, func(a, b types.TabGroupRecord) int {
		return cmp.Or(
			cmp.Compare(a.WindowID, b.WindowID),
			cmp.Compare(a.SpaceID, b.SpaceID),
			cmp.Compare(a.Position, b.Position),
			cmp.Compare(a.ID, b.ID),
		)
	})
	var out []section
	for _, g := range groups {
		ws := types.WindowSpace{WindowID: g.WindowID, SpaceID: g.SpaceID}
		if len(out) == 0 || out[len(out)-1].WindowSpace != ws {
			out = append(out, section{WindowSpace: ws})
		}
		last := &out[len(out)-1]
		last.groups = append(last.groups, g)
	}
	return out
}

func tabIndex(sess types.Session) map[int]types.TabRecord {
	idx := make(map[int]types.TabRecord, len(sess.Tabs))
	for _, t := range sess.Tabs {
		idx[t.ID] = t
	}
	return idx
}

func folderNames(sess types.Session) map[string]string {
	names := make(map[string]string, len(sess.Folders))
	for _, f := range sess.Folders {
		names[f.ID] = cmp.Or(f.Name, f.ID)
	}
	return names
}

// Markdown formats sess as a markdown document, one section per window
// and space. Ages are relative to now.
func Markdown(sess types.Session, now time.Time) string {
	var b strings.Builder
	tabs := tabIndex(sess)
	folders := folderNames(sess)
	dups := Duplicates(sess.Tabs)

	fmt.Fprintf(&b, "# Flow Tabs\n")
	fmt.Fprintf(&b, "> Exported %s, %d tabs\n", now.Format("2006-01-02 15:04"), len(sess.Tabs))

	for _, sec := range sections(sess) {
		fmt.Fprintf(&b, "\n## Window %d · %s\n\n", sec.WindowID, sec.SpaceID)
		folder := ""
		for _, g := range sec.groups {
			if g.FolderID != folder {
				folder = g.FolderID
				if folder != "" {
					fmt.Fprintf(&b, "\n### %s\n\n", folders[folder])
				}
			}
			indent := ""
			if g.Mode != types.ModeNormal {
				fmt.Fprintf(&b, "- %s (%d)\n", g.Mode, len(g.TabIDs))
				indent = "  "
			}
			for _, id := range g.TabIDs {
				t, ok := tabs[id]
				if !ok {
					continue
				}
				fmt.Fprintf(&b, "%s- %s\n", indent, tabLine(t, now, len(dups[id]) > 0))
			}
		}
	}
	return b.String()
}

func tabLine(t types.TabRecord, now time.Time, duplicate bool) string {
	title := cmp.Or(t.Title, t.URL, "New Tab")
	line := fmt.Sprintf("[%s](%s)", title, t.URL)
	var notes []string
	if t.LastActiveAt > 0 {
		notes = append(notes, relativeTime(time.Unix(t.LastActiveAt, 0), now))
	}
	if t.Asleep {
		notes = append(notes, "asleep")
	}
	if duplicate {
		notes = append(notes, "duplicate")
	}
	if len(notes) > 0 {
		line += " · " + strings.Join(notes, ", ")
	}
	return line
}

func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
