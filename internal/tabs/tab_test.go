package tabs

import (
	"context"
	"errors"
	"testing"

	"github.com/lotas/flowtabs/internal/types"
)

func TestTabDestroyOnce(t *testing.T) {
	m, env := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	surface := env.surfaces.last(a.ID())

	if err := a.Destroy(); err != nil {
		t.Fatalf("first destroy: %v", err)
	}
	wantErr(t, a.Destroy(), ErrAlreadyDestroyed)
	wantErr(t, a.Destroy(), ErrAlreadyDestroyed)

	if got := env.count(TabRemoved); got != 1 {
		t.Errorf("TabRemoved fired %d times, want 1", got)
	}
	if surface.detaches != 1 {
		t.Errorf("surface detached %d times, want 1", surface.detaches)
	}
	if m.Tab(a.ID()) != nil {
		t.Error("destroyed tab still resolves")
	}
	if m.Group(a.GroupID()) != nil {
		t.Error("emptied default group survived")
	}
	checkInvariants(t, m)
}

func TestTabSettersAreIdempotent(t *testing.T) {
	m, env := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	env.events = nil

	if !a.SetTitle("Docs") {
		t.Fatal("SetTitle changed nothing")
	}
	if a.SetTitle("Docs") {
		t.Error("SetTitle with same value reported a change")
	}
	if !a.SetMuted(true) || a.SetMuted(true) {
		t.Error("SetMuted not idempotent")
	}
	r := types.Rect{X: 1, Y: 2, Width: 300, Height: 200}
	if !a.SetBounds(r) || a.SetBounds(r) {
		t.Error("SetBounds not idempotent")
	}
	if a.setWindow(a.WindowID()) || a.setSpace(a.SpaceID()) {
		t.Error("unchanged placement reported a change")
	}
	if got := env.count(TabUpdated); got != 2 {
		t.Errorf("TabUpdated fired %d times, want 2", got)
	}
}

func TestTabSleepDetachesSurface(t *testing.T) {
	m, env := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{URL: "https://example.com"})
	first := env.surfaces.last(a.ID())
	if !a.Attached() || !first.attached || first.url != "https://example.com" {
		t.Fatalf("new tab not attached: %+v", first)
	}

	if !a.PutToSleep() {
		t.Fatal("PutToSleep changed nothing")
	}
	if a.PutToSleep() {
		t.Error("second PutToSleep reported a change")
	}
	if a.Attached() || first.attached {
		t.Error("sleeping tab still holds a surface")
	}

	if !a.WakeUp() {
		t.Fatal("WakeUp changed nothing")
	}
	second := env.surfaces.last(a.ID())
	if second == first || !second.attached {
		t.Error("WakeUp did not attach a fresh surface")
	}
	if second.url != "https://example.com" {
		t.Errorf("woken surface loaded %q", second.url)
	}
}

func TestTabCreatedAsleepHasNoSurface(t *testing.T) {
	m, env := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{Asleep: true})
	if a.Attached() || env.surfaces.last(a.ID()) != nil {
		t.Error("asleep tab got a surface")
	}
}

func TestTabBoundsReachSurfaceOnlyWhenVisible(t *testing.T) {
	m, env := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	s := env.surfaces.last(a.ID())

	r := types.Rect{Width: 800, Height: 600}
	a.SetBounds(r)
	if s.bounds != nil {
		t.Fatal("hidden tab pushed bounds to its surface")
	}

	if err := m.SetActiveTab(a); err != nil {
		t.Fatal(err)
	}
	if !a.Visible() || !s.visible {
		t.Fatal("active tab not visible")
	}
	if s.bounds == nil || *s.bounds != r {
		t.Errorf("surface bounds = %v, want %v", s.bounds, r)
	}
}

func TestTabNavigation(t *testing.T) {
	m, env := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{URL: "https://a.test"})
	s := env.surfaces.last(a.ID())

	a.LoadURL("https://b.test", false)
	if !a.GoBack() {
		t.Fatal("GoBack failed")
	}
	if a.URL() != "https://a.test" {
		t.Errorf("after back URL = %q", a.URL())
	}
	a.LoadURL("https://c.test", false)
	if a.GoForward() {
		t.Error("forward history survived a new navigation")
	}
	a.LoadURL("https://d.test", true)

	var urls []string
	for _, e := range a.NavHistory() {
		urls = append(urls, e.URL)
	}
	want := []string{"https://a.test", "https://d.test"}
	if len(urls) != len(want) || urls[0] != want[0] || urls[1] != want[1] {
		t.Errorf("history = %v, want %v", urls, want)
	}
	if a.NavHistoryIndex() != 1 {
		t.Errorf("index = %d, want 1", a.NavHistoryIndex())
	}
	if len(s.navigations) != 4 {
		t.Errorf("surface navigated %d times, want 4", len(s.navigations))
	}
}

func TestTabRestoresHistory(t *testing.T) {
	m, _ := newTestManager(t)
	nav := []types.NavEntry{
		{Title: "X", URL: "https://x.test"},
		{Title: "Y", URL: "https://y.test"},
		{Title: "Z", URL: "https://z.test"},
	}

	one := 1
	a := mustTab(t, m, CreateTabOptions{NavHistory: nav, NavHistoryIndex: &one})
	if a.URL() != "https://y.test" || a.Title() != "Y" {
		t.Errorf("restored at %q %q, want Y", a.URL(), a.Title())
	}

	bad := 7
	b := mustTab(t, m, CreateTabOptions{NavHistory: nav, NavHistoryIndex: &bad})
	if b.NavHistoryIndex() != 2 {
		t.Errorf("out of range index restored to %d, want 2", b.NavHistoryIndex())
	}

	c := mustTab(t, m, CreateTabOptions{})
	if c.URL() != DefaultURL {
		t.Errorf("blank tab URL = %q", c.URL())
	}
}

func TestTabPictureInPicture(t *testing.T) {
	ctx := context.Background()

	t.Run("no surface", func(t *testing.T) {
		m, _ := newTestManager(t)
		a := mustTab(t, m, CreateTabOptions{Asleep: true})
		if a.TryEnterPiP(ctx) || a.PipActive() {
			t.Error("entered PiP without a surface")
		}
	})

	t.Run("confirmed", func(t *testing.T) {
		m, env := newTestManager(t)
		a := mustTab(t, m, CreateTabOptions{})
		s := env.surfaces.last(a.ID())
		s.scriptResult = true
		if !a.TryEnterPiP(ctx) || !a.PipActive() {
			t.Fatal("PiP not entered")
		}
		if !a.TryExitPiP(ctx) || a.PipActive() {
			t.Error("PiP not left")
		}
	})

	t.Run("not confirmed", func(t *testing.T) {
		m, env := newTestManager(t)
		a := mustTab(t, m, CreateTabOptions{})
		s := env.surfaces.last(a.ID())
		for _, res := range []any{nil, false, "yes"} {
			s.scriptResult = res
			if a.TryEnterPiP(ctx) || a.PipActive() {
				t.Errorf("result %v entered PiP", res)
			}
		}
		s.scriptResult, s.scriptErr = true, errors.New("renderer crashed")
		if a.TryEnterPiP(ctx) || a.PipActive() {
			t.Error("script error entered PiP")
		}
	})

	t.Run("surface lost mid call", func(t *testing.T) {
		m, env := newTestManager(t)
		a := mustTab(t, m, CreateTabOptions{})
		s := env.surfaces.last(a.ID())
		s.scriptResult = true
		s.onScript = func() { a.PutToSleep() }
		if a.TryEnterPiP(ctx) || a.PipActive() {
			t.Error("PiP flag set after the surface went away")
		}
	})
}

func TestSleepingTabWakesWhenNeeded(t *testing.T) {
	t.Run("load url", func(t *testing.T) {
		m, env := newTestManager(t)
		a := mustTab(t, m, CreateTabOptions{URL: "https://a.test", Asleep: true})
		a.LoadURL("https://b.test", false)
		s := env.surfaces.last(a.ID())
		if a.Asleep() || s == nil {
			t.Fatal("navigation did not wake the tab")
		}
		if s.url != "https://b.test" {
			t.Errorf("woken surface loaded %q", s.url)
		}
	})

	t.Run("activation", func(t *testing.T) {
		m, env := newTestManager(t)
		a := mustTab(t, m, CreateTabOptions{Asleep: true})
		m.SetActiveTab(a)
		if a.Asleep() || env.surfaces.last(a.ID()) == nil {
			t.Error("activated tab still asleep")
		}
	})
}
