package tabs

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/lotas/flowtabs/internal/types"
)

type fakeWindows struct {
	windows []Window
	focused int
}

func (w *fakeWindows) ResolveWindow(id int) (Window, bool) {
	for _, win := range w.windows {
		if win.ID == id {
			return win, true
		}
	}
	return Window{}, false
}

func (w *fakeWindows) FocusedWindow() (Window, bool) {
	if w.focused == 0 {
		return Window{}, false
	}
	return w.ResolveWindow(w.focused)
}

func (w *fakeWindows) AllWindows() []Window { return slices.Clone(w.windows) }

type fakeProfiles struct {
	profiles map[string]bool
	spaces   map[string]Space
	lastUsed string
	loadErr  error
	loads    int
	onLoad   func()
}

func (p *fakeProfiles) ResolveProfile(id string) bool { return p.profiles[id] }

func (p *fakeProfiles) LoadProfile(ctx context.Context, id string) error {
	p.loads++
	if p.onLoad != nil {
		p.onLoad()
	}
	return p.loadErr
}

func (p *fakeProfiles) ResolveSpace(id string) (Space, bool) {
	sp, ok := p.spaces[id]
	return sp, ok
}

func (p *fakeProfiles) LastUsedSpace() (Space, bool) { return p.ResolveSpace(p.lastUsed) }

type fakeSurface struct {
	tabID       int
	windowID    int
	url         string
	attached    bool
	visible     bool
	bounds      *types.Rect
	navigations []string
	detaches    int

	scriptResult any
	scriptErr    error
	onScript     func()
}

func (s *fakeSurface) Attach(windowID int, url string) error {
	s.windowID, s.url, s.attached = windowID, url, true
	return nil
}

func (s *fakeSurface) Detach() {
	s.attached = false
	s.detaches++
}

func (s *fakeSurface) MoveToWindow(windowID int) { s.windowID = windowID }

func (s *fakeSurface) Navigate(url string) error {
	s.navigations = append(s.navigations, url)
	s.url = url
	return nil
}

func (s *fakeSurface) SetBounds(r types.Rect) { s.bounds = &r }
func (s *fakeSurface) SetVisible(v bool)      { s.visible = v }

func (s *fakeSurface) ExecuteScript(ctx context.Context, src string) (any, error) {
	if s.onScript != nil {
		s.onScript()
	}
	return s.scriptResult, s.scriptErr
}

type fakeSurfaces struct {
	created []*fakeSurface
}

func (f *fakeSurfaces) NewSurface(tabID int, profileID string) Surface {
	s := &fakeSurface{tabID: tabID}
	f.created = append(f.created, s)
	return s
}

// last returns the most recent surface created for the tab.
func (f *fakeSurfaces) last(tabID int) *fakeSurface {
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].tabID == tabID {
			return f.created[i]
		}
	}
	return nil
}

type testEnv struct {
	windows  *fakeWindows
	profiles *fakeProfiles
	surfaces *fakeSurfaces
	notified []int
	events   []Event
}

func (e *testEnv) count(kind EventKind) int {
	n := 0
	for _, ev := range e.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T) (*Manager, *testEnv) {
	t.Helper()
	env := &testEnv{
		windows: &fakeWindows{
			windows: []Window{{ID: 1, CurrentSpace: "s1"}, {ID: 2, CurrentSpace: "s2"}},
			focused: 1,
		},
		profiles: &fakeProfiles{
			profiles: map[string]bool{"p1": true, "p2": true},
			spaces: map[string]Space{
				"s1": {ID: "s1", ProfileID: "p1"},
				"s2": {ID: "s2", ProfileID: "p1"},
				"s3": {ID: "s3", ProfileID: "p2"},
			},
			lastUsed: "s3",
		},
		surfaces: &fakeSurfaces{},
	}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(Deps{
		Windows:  env.windows,
		Profiles: env.profiles,
		Surfaces: env.surfaces,
		Notifier: NotifierFunc(func(id int) { env.notified = append(env.notified, id) }),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	m.Subscribe(func(e Event) { env.events = append(env.events, e) })
	return m, env
}

func mustTab(t *testing.T, m *Manager, opts CreateTabOptions) *Tab {
	t.Helper()
	tab, err := m.CreateTab(context.Background(), opts)
	if err != nil {
		t.Fatalf("CreateTab(%+v): %v", opts, err)
	}
	return tab
}

func mustGroup(t *testing.T, m *Manager, mode types.Mode, tabs ...*Tab) *TabGroup {
	t.Helper()
	var ids []int
	for _, tab := range tabs {
		ids = append(ids, tab.ID())
	}
	g, err := m.CreateTabGroup(mode, ids)
	if err != nil {
		t.Fatalf("CreateTabGroup(%s, %v): %v", mode, ids, err)
	}
	return g
}

func checkInvariants(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("got error %v, want %v", err, target)
	}
}
