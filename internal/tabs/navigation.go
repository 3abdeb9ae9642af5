package tabs

import (
	"slices"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/types"
)

func historyWithURL(url string) []types.NavEntry {
	return []types.NavEntry{{URL: url}}
}

// restoreHistory installs a saved history. A missing or out of range index
// points at the last entry.
func (t *Tab) restoreHistory(nav []types.NavEntry, index *int, defaultURL string) {
	if len(nav) == 0 {
		if defaultURL == "" {
			defaultURL = DefaultURL
		}
		nav = historyWithURL(defaultURL)
	}
	t.nav = slices.Clone(nav)
	t.navIndex = len(t.nav) - 1
	if index != nil && *index >= 0 && *index < len(t.nav) {
		t.navIndex = *index
	}
	cur := t.nav[t.navIndex]
	t.url = cur.URL
	if t.title == "" {
		t.title = cur.Title
	}
}

// LoadURL navigates the tab. With replace the current entry is overwritten,
// otherwise forward history is dropped and the URL appended.
func (t *Tab) LoadURL(url string, replace bool) bool {
	if t.destroyed {
		return false
	}
	entry := types.NavEntry{URL: url}
	if replace && t.navIndex >= 0 && t.navIndex < len(t.nav) {
		t.nav[t.navIndex] = entry
	} else {
		t.nav = append(t.nav[:t.navIndex+1:t.navIndex+1], entry)
		t.navIndex = len(t.nav) - 1
	}
	t.url = url
	t.title = ""
	t.navigate()
	t.emit(tabDataChanged)
	return true
}

// SyncNavHistory replaces the stored history with the surface's own records.
func (t *Tab) SyncNavHistory(nav []types.NavEntry, index int) bool {
	if t.destroyed || len(nav) == 0 {
		return false
	}
	if index < 0 || index >= len(nav) {
		index = len(nav) - 1
	}
	t.nav = slices.Clone(nav)
	t.navIndex = index
	t.url = nav[index].URL
	t.emit(tabDataChanged)
	return true
}

// GoBack and GoForward move within the stored history.
func (t *Tab) GoBack() bool { return t.goTo(t.navIndex - 1) }

func (t *Tab) GoForward() bool { return t.goTo(t.navIndex + 1) }

func (t *Tab) goTo(index int) bool {
	if t.destroyed || index < 0 || index >= len(t.nav) {
		return false
	}
	t.navIndex = index
	entry := t.nav[index]
	t.url = entry.URL
	t.title = entry.Title
	t.navigate()
	t.emit(tabDataChanged)
	return true
}

// navigate shows the current URL. A sleeping tab wakes up and its fresh
// surface loads the URL directly.
func (t *Tab) navigate() {
	if t.asleep {
		t.WakeUp()
		return
	}
	if t.surface != nil {
		if err := t.surface.Navigate(t.url); err != nil {
			applog.Error("tab.navigate", err, "tab", t.id, "url", t.url)
		}
	}
}
