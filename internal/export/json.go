package export

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/lotas/flowtabs/internal/types"
)

type jsonExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	Windows    []jsonWindow `json:"windows"`
}

type jsonWindow struct {
	WindowID int         `json:"window_id"`
	SpaceID  string      `json:"space_id"`
	Groups   []jsonGroup `json:"groups"`
}

type jsonGroup struct {
	Mode   types.Mode `json:"mode"`
	Folder string     `json:"folder,omitempty"`
	Tabs   []jsonTab  `json:"tabs"`
}

type jsonTab struct {
	Title            string     `json:"title"`
	URL              string     `json:"url"`
	Domain           string     `json:"domain"`
	Asleep           bool       `json:"asleep,omitempty"`
	LastActive       *time.Time `json:"last_active,omitempty"`
	LastActivePretty string     `json:"last_active_pretty,omitempty"`
	IsDuplicate      bool       `json:"is_duplicate,omitempty"`
}

// JSON formats sess as an indented JSON document laid out like Markdown.
func JSON(sess types.Session, now time.Time) (string, error) {
	tabs := tabIndex(sess)
	folders := folderNames(sess)
	dups := Duplicates(sess.Tabs)

	out := jsonExport{ExportedAt: now, Windows: []jsonWindow{}}
	for _, sec := range sections(sess) {
		w := jsonWindow{WindowID: sec.WindowID, SpaceID: sec.SpaceID}
		for _, g := range sec.groups {
			group := jsonGroup{Mode: g.Mode, Folder: folders[g.FolderID], Tabs: []jsonTab{}}
			for _, id := range g.TabIDs {
				t, ok := tabs[id]
				if !ok {
					continue
				}
				jt := jsonTab{
					Title:       t.Title,
					URL:         t.URL,
					Domain:      extractDomain(t.URL),
					Asleep:      t.Asleep,
					IsDuplicate: len(dups[id]) > 0,
				}
				if t.LastActiveAt > 0 {
					at := time.Unix(t.LastActiveAt, 0).UTC()
					jt.LastActive = &at
					jt.LastActivePretty = relativeTime(at, now)
				}
				group.Tabs = append(group.Tabs, jt)
			}
			w.Groups = append(w.Groups, group)
		}
		out.Windows = append(out.Windows, w)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
