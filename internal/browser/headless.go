package browser

import (
	"context"
	"errors"
	"sync"

	"github.com/lotas/flowtabs/internal/tabs"
	"github.com/lotas/flowtabs/internal/types"
)

// ErrDetached is returned by operations on a surface that is not attached.
var ErrDetached = errors.New("surface detached")

// ScriptFunc answers ExecuteScript on a headless surface.
type ScriptFunc func(ctx context.Context, tabID int, src string) (any, error)

// HeadlessFactory creates surfaces that render nothing and only record
// what they were told.
type HeadlessFactory struct {
	Script ScriptFunc

	mu       sync.Mutex
	surfaces map[int]*HeadlessSurface
}

func (f *HeadlessFactory) NewSurface(tabID int, profileID string) tabs.Surface {
	s := &HeadlessSurface{tabID: tabID, profileID: profileID, script: f.Script}
	f.mu.Lock()
	if f.surfaces == nil {
		f.surfaces = make(map[int]*HeadlessSurface)
	}
	f.surfaces[tabID] = s
	f.mu.Unlock()
	return s
}

// Surface returns the latest surface created for a tab.
func (f *HeadlessFactory) Surface(tabID int) *HeadlessSurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.surfaces[tabID]
}

// HeadlessSurface is a tabs.Surface without a renderer.
type HeadlessSurface struct {
	tabID     int
	profileID string
	script    ScriptFunc

	mu       sync.Mutex
	attached bool
	windowID int
	url      string
	visible  bool
	bounds   types.Rect
	visits   []string
}

func (s *HeadlessSurface) Attach(windowID int, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached, s.windowID, s.url = true, windowID, url
	s.visits = append(s.visits, url)
	return nil
}

func (s *HeadlessSurface) Detach() {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
}

func (s *HeadlessSurface) MoveToWindow(windowID int) {
	s.mu.Lock()
	s.windowID = windowID
	s.mu.Unlock()
}

func (s *HeadlessSurface) Navigate(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return ErrDetached
	}
	s.url = url
	s.visits = append(s.visits, url)
	return nil
}

func (s *HeadlessSurface) SetBounds(r types.Rect) {
	s.mu.Lock()
	s.bounds = r
	s.mu.Unlock()
}

func (s *HeadlessSurface) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
}

func (s *HeadlessSurface) ExecuteScript(ctx context.Context, src string) (any, error) {
	s.mu.Lock()
	attached := s.attached
	s.mu.Unlock()
	if !attached {
		return nil, ErrDetached
	}
	if s.script == nil {
		return nil, nil
	}
	return s.script(ctx, s.tabID, src)
}

func (s *HeadlessSurface) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

func (s *HeadlessSurface) WindowID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowID
}

func (s *HeadlessSurface) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *HeadlessSurface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *HeadlessSurface) Bounds() types.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// Visits lists every URL the surface loaded, oldest first.
func (s *HeadlessSurface) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}
