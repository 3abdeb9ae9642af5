package tabs

import (
	"context"

	"github.com/lotas/flowtabs/internal/types"
)

// Window is what the manager needs to know about a browser window.
type Window struct {
	ID           int
	CurrentSpace string
}

// WindowProvider resolves browser windows.
type WindowProvider interface {
	ResolveWindow(id int) (Window, bool)
	FocusedWindow() (Window, bool)
	AllWindows() []Window
}

// Space is a profile-owned workspace.
type Space struct {
	ID        string
	ProfileID string
}

// ProfileProvider resolves and loads profiles and their spaces.
type ProfileProvider interface {
	ResolveProfile(id string) bool
	LoadProfile(ctx context.Context, id string) error
	ResolveSpace(id string) (Space, bool)
	LastUsedSpace() (Space, bool)
}

// Surface is the render surface backing an awake tab.
type Surface interface {
	Attach(windowID int, url string) error
	Detach()
	MoveToWindow(windowID int)
	Navigate(url string) error
	SetBounds(r types.Rect)
	SetVisible(visible bool)
	ExecuteScript(ctx context.Context, src string) (any, error)
}

// SurfaceFactory creates a fresh, unattached surface for a tab.
type SurfaceFactory interface {
	NewSurface(tabID int, profileID string) Surface
}

// Notifier receives coalescable "tabs of this window changed" pings.
type Notifier interface {
	NotifyWindowTabsChanged(windowID int)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(windowID int)

func (f NotifierFunc) NotifyWindowTabsChanged(windowID int) { f(windowID) }
