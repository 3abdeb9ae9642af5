package tabs

import (
	"fmt"
	"slices"
	"time"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/types"
)

// DefaultURL is loaded by tabs created without a URL or history.
const DefaultURL = "flow://new-tab"

// Tab is a single browsing context. Tabs are created by Manager.CreateTab
// and must only be used from the manager's goroutine.
type Tab struct {
	id        int
	uniqueID  string
	profileID string
	groupID   int
	windowID  int
	spaceID   string

	title    string
	url      string
	loading  bool
	audible  bool
	muted    bool
	nav      []types.NavEntry
	navIndex int

	asleep    bool
	visible   bool
	bounds    *types.Rect
	pipActive bool

	lastActiveAt time.Time
	destroyed    bool

	surface  Surface
	surfaces SurfaceFactory
	events   func(*Tab, tabEventKind)
}

func (t *Tab) ID() int                 { return t.id }
func (t *Tab) UniqueID() string        { return t.uniqueID }
func (t *Tab) ProfileID() string       { return t.profileID }
func (t *Tab) GroupID() int            { return t.groupID }
func (t *Tab) WindowID() int           { return t.windowID }
func (t *Tab) SpaceID() string         { return t.spaceID }
func (t *Tab) Title() string           { return t.title }
func (t *Tab) URL() string             { return t.url }
func (t *Tab) Loading() bool           { return t.loading }
func (t *Tab) Audible() bool           { return t.audible }
func (t *Tab) Muted() bool             { return t.muted }
func (t *Tab) Asleep() bool            { return t.asleep }
func (t *Tab) Visible() bool           { return t.visible }
func (t *Tab) PipActive() bool         { return t.pipActive }
func (t *Tab) LastActiveAt() time.Time { return t.lastActiveAt }
func (t *Tab) Destroyed() bool         { return t.destroyed }

// Attached reports whether the tab currently holds a render surface.
func (t *Tab) Attached() bool { return t.surface != nil }

// Bounds returns a copy of the tab's page bounds, or nil if never set.
func (t *Tab) Bounds() *types.Rect {
	if t.bounds == nil {
		return nil
	}
	b := *t.bounds
	return &b
}

// NavHistory returns a copy of the navigation history.
func (t *Tab) NavHistory() []types.NavEntry { return slices.Clone(t.nav) }

// NavHistoryIndex is the index of the current entry in NavHistory.
func (t *Tab) NavHistoryIndex() int { return t.navIndex }

func (t *Tab) itemKey() itemKey { return itemKey{kind: tabItem, id: t.id} }

func (t *Tab) emit(k tabEventKind) {
	if t.events != nil {
		t.events(t, k)
	}
}

// Destroy releases the tab's surface and removes it from the manager.
// A second call returns ErrAlreadyDestroyed and has no side effects.
func (t *Tab) Destroy() error {
	if t.destroyed {
		return fmt.Errorf("tab %d: %w", t.id, ErrAlreadyDestroyed)
	}
	t.destroyed = true
	t.detachSurface()
	t.emit(tabDestroyed)
	return nil
}

// setWindow moves the tab (and its surface) to another window. Placement
// changes go through the owning group so tab and group never disagree.
func (t *Tab) setWindow(windowID int) bool {
	if t.destroyed || t.windowID == windowID {
		return false
	}
	t.windowID = windowID
	if t.surface != nil {
		t.surface.MoveToWindow(windowID)
	}
	t.emit(tabWindowChanged)
	return true
}

func (t *Tab) setSpace(spaceID string) bool {
	if t.destroyed || t.spaceID == spaceID {
		return false
	}
	t.spaceID = spaceID
	t.emit(tabSpaceChanged)
	return true
}

func (t *Tab) SetVisible(visible bool) bool {
	if t.destroyed || t.visible == visible {
		return false
	}
	t.visible = visible
	if t.surface != nil {
		t.surface.SetVisible(visible)
		if visible && t.bounds != nil {
			t.surface.SetBounds(*t.bounds)
		}
	}
	t.emit(tabVisibilityChanged)
	return true
}

// SetBounds stores the page bounds; they reach the surface only while the
// tab is visible.
func (t *Tab) SetBounds(r types.Rect) bool {
	if t.destroyed || t.bounds.Equal(&r) {
		return false
	}
	t.bounds = &r
	if t.visible && t.surface != nil {
		t.surface.SetBounds(r)
	}
	t.emit(tabBoundsChanged)
	return true
}

// PutToSleep drops the render surface.
func (t *Tab) PutToSleep() bool {
	if t.destroyed || t.asleep {
		return false
	}
	t.asleep = true
	t.detachSurface()
	t.emit(tabSleepChanged)
	return true
}

// WakeUp attaches a fresh render surface.
func (t *Tab) WakeUp() bool {
	if t.destroyed || !t.asleep {
		return false
	}
	t.asleep = false
	t.attachSurface()
	t.emit(tabSleepChanged)
	return true
}

func (t *Tab) attachSurface() {
	if t.surface != nil || t.surfaces == nil {
		return
	}
	s := t.surfaces.NewSurface(t.id, t.profileID)
	if s == nil {
		return
	}
	if err := s.Attach(t.windowID, t.url); err != nil {
		applog.Error("tab.surface.attach", err, "tab", t.id)
		return
	}
	t.surface = s
	s.SetVisible(t.visible)
	if t.bounds != nil {
		s.SetBounds(*t.bounds)
	}
	t.setPip(false)
}

func (t *Tab) detachSurface() bool {
	if t.surface == nil {
		return false
	}
	t.surface.Detach()
	t.surface = nil
	t.setPip(false)
	return true
}

func (t *Tab) setPip(active bool) {
	if t.pipActive == active {
		return
	}
	t.pipActive = active
	t.emit(tabPipChanged)
}

// SetTitle, SetURL, SetLoading, SetAudible and SetMuted mirror the state of
// the render surface.
func (t *Tab) SetTitle(title string) bool {
	if t.destroyed || t.title == title {
		return false
	}
	t.title = title
	if t.navIndex >= 0 && t.navIndex < len(t.nav) && t.nav[t.navIndex].URL == t.url {
		t.nav[t.navIndex].Title = title
	}
	t.emit(tabDataChanged)
	return true
}

func (t *Tab) SetURL(url string) bool {
	if t.destroyed || t.url == url {
		return false
	}
	t.url = url
	t.emit(tabDataChanged)
	return true
}

func (t *Tab) SetLoading(loading bool) bool {
	if t.destroyed || t.loading == loading {
		return false
	}
	t.loading = loading
	t.emit(tabDataChanged)
	return true
}

func (t *Tab) SetAudible(audible bool) bool {
	if t.destroyed || t.audible == audible {
		return false
	}
	t.audible = audible
	t.emit(tabDataChanged)
	return true
}

func (t *Tab) SetMuted(muted bool) bool {
	if t.destroyed || t.muted == muted {
		return false
	}
	t.muted = muted
	t.emit(tabDataChanged)
	return true
}
