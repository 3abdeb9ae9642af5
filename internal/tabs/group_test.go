package tabs

import (
	"testing"

	"github.com/lotas/flowtabs/internal/types"
)

func TestScenarioGlanceFromDefaultGroups(t *testing.T) {
	m, _ := newTestManager(t)

	a := mustTab(t, m, CreateTabOptions{WindowID: 1, SpaceID: "s1"})
	g1 := m.ResolveGroup(a)
	if g1 == nil || g1.ID() != a.GroupID() || g1.Mode() != types.ModeNormal {
		t.Fatalf("A not in its own default group: %+v", g1)
	}
	b := mustTab(t, m, CreateTabOptions{WindowID: 1, SpaceID: "s1"})
	g2 := m.ResolveGroup(b)
	if g2 == g1 {
		t.Fatal("A and B share a default group")
	}

	g3 := mustGroup(t, m, types.ModeGlance, a, b)
	if !g1.Destroyed() || !g2.Destroyed() {
		t.Error("emptied default groups survived")
	}
	if m.Group(g1.ID()) != nil || m.Group(g2.ID()) != nil {
		t.Error("emptied default groups still registered")
	}
	if a.GroupID() != g3.ID() || b.GroupID() != g3.ID() {
		t.Errorf("groups = %d,%d, want %d", a.GroupID(), b.GroupID(), g3.ID())
	}
	if g3.FrontTabID() != a.ID() {
		t.Errorf("front tab = %d, want %d", g3.FrontTabID(), a.ID())
	}
	checkInvariants(t, m)
}

func TestAddTabRejections(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	b := mustTab(t, m, CreateTabOptions{})
	ga := m.ResolveGroup(a)

	if ga.AddTab(a.ID()) {
		t.Error("added a member twice")
	}
	if ga.AddTab(b.ID()) {
		t.Error("normal group accepted a second tab")
	}
	if ga.AddTab(999) {
		t.Error("added an unknown tab")
	}
	if b.GroupID() == ga.ID() {
		t.Error("rejected add still moved the tab")
	}
	checkInvariants(t, m)
}

func TestGlanceEvictsOldestNonFrontTab(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	b := mustTab(t, m, CreateTabOptions{})
	c := mustTab(t, m, CreateTabOptions{})

	g := mustGroup(t, m, types.ModeGlance, a, b)
	if !g.AddTab(c.ID()) {
		t.Fatal("glance group refused a third tab")
	}
	if g.Len() != 2 || !g.HasTab(a.ID()) || !g.HasTab(c.ID()) {
		t.Fatalf("members = %v, want [%d %d]", g.TabIDs(), a.ID(), c.ID())
	}
	gb := m.ResolveGroup(b)
	if gb == g || gb.Mode() != types.ModeNormal || gb.Len() != 1 {
		t.Errorf("evicted tab not re-homed: %+v", gb)
	}
	checkInvariants(t, m)
}

func TestGlanceDestroysOnRemoval(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	b := mustTab(t, m, CreateTabOptions{})
	g := mustGroup(t, m, types.ModeGlance, a, b)

	if !g.RemoveTab(a.ID()) {
		t.Fatal("RemoveTab failed")
	}
	if !g.Destroyed() {
		t.Error("glance group with one tab survived")
	}
	if a.GroupID() == g.ID() || b.GroupID() == g.ID() {
		t.Error("a tab still points at the destroyed group")
	}
	checkInvariants(t, m)
}

func TestSplitSelfDestruct(t *testing.T) {
	t.Run("remove", func(t *testing.T) {
		m, _ := newTestManager(t)
		a := mustTab(t, m, CreateTabOptions{})
		b := mustTab(t, m, CreateTabOptions{})
		g := mustGroup(t, m, types.ModeSplit, a, b)

		g.RemoveTab(a.ID())
		if !g.Destroyed() {
			t.Fatal("split group with one tab survived")
		}
		ga, gb := m.ResolveGroup(a), m.ResolveGroup(b)
		if ga == gb || ga.Mode() != types.ModeNormal || gb.Mode() != types.ModeNormal {
			t.Errorf("tabs not re-homed into separate default groups")
		}
		checkInvariants(t, m)
	})

	t.Run("close member", func(t *testing.T) {
		m, _ := newTestManager(t)
		a := mustTab(t, m, CreateTabOptions{})
		b := mustTab(t, m, CreateTabOptions{})
		g := mustGroup(t, m, types.ModeSplit, a, b)

		a.Destroy()
		if !g.Destroyed() {
			t.Fatal("split group with one tab survived")
		}
		if gb := m.ResolveGroup(b); gb == nil || gb.Len() != 1 {
			t.Errorf("B not re-homed: %+v", gb)
		}
		checkInvariants(t, m)
	})
}

func TestSplitCapacity(t *testing.T) {
	m, _ := newTestManager(t)
	var tabs []*Tab
	for range SplitMaxTabs + 1 {
		tabs = append(tabs, mustTab(t, m, CreateTabOptions{}))
	}
	_, err := m.CreateTabGroup(types.ModeSplit, []int{tabs[0].ID(), tabs[1].ID(), tabs[2].ID(), tabs[3].ID(), tabs[4].ID()})
	wantErr(t, err, ErrGroupFull)

	g := mustGroup(t, m, types.ModeSplit, tabs[:SplitMaxTabs]...)
	if g.AddTab(tabs[SplitMaxTabs].ID()) {
		t.Error("split group exceeded its capacity")
	}
	checkInvariants(t, m)
}

func TestDestroyGroupReassignsEveryMember(t *testing.T) {
	m, env := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	b := mustTab(t, m, CreateTabOptions{})
	c := mustTab(t, m, CreateTabOptions{})
	g := mustGroup(t, m, types.ModeSplit, a, b, c)
	env.events = nil

	if err := m.DestroyTabGroup(g.ID()); err != nil {
		t.Fatal(err)
	}
	seen := map[int]bool{}
	for _, tab := range []*Tab{a, b, c} {
		if tab.GroupID() == g.ID() {
			t.Errorf("tab %d still points at destroyed group", tab.ID())
		}
		ng := m.ResolveGroup(tab)
		if ng.Len() != 1 || ng.Mode() != types.ModeNormal {
			t.Errorf("tab %d group = %v", tab.ID(), ng.TabIDs())
		}
		seen[ng.ID()] = true
	}
	if len(seen) != 3 {
		t.Errorf("got %d distinct groups, want 3", len(seen))
	}

	wantErr(t, m.DestroyTabGroup(g.ID()), ErrInvalidReference)
	wantErr(t, g.Destroy(), ErrAlreadyDestroyed)
	if got := env.count(GroupRemoved); got != 1 {
		t.Errorf("GroupRemoved fired %d times, want 1", got)
	}
	if got := env.count(GroupCreated); got != 3 {
		t.Errorf("GroupCreated fired %d times, want 3", got)
	}
	checkInvariants(t, m)
}

func TestCreateTabGroupReHomesOtherMembers(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	b := mustTab(t, m, CreateTabOptions{})
	c := mustTab(t, m, CreateTabOptions{})
	split := mustGroup(t, m, types.ModeSplit, a, b)

	g := mustGroup(t, m, types.ModeGlance, a, c)
	if !split.Destroyed() {
		t.Error("split group left with one tab survived")
	}
	if b.GroupID() == split.ID() || b.GroupID() == g.ID() {
		t.Errorf("B group = %d", b.GroupID())
	}
	checkInvariants(t, m)
}

func TestCreateTabGroupErrors(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.CreateTabGroup(types.ModeSplit, []int{41, 42})
	wantErr(t, err, ErrEmptyGroup)

	a := mustTab(t, m, CreateTabOptions{})
	b := mustTab(t, m, CreateTabOptions{})
	c := mustTab(t, m, CreateTabOptions{})
	_, err = m.CreateTabGroup(types.ModeGlance, []int{a.ID(), b.ID(), c.ID()})
	wantErr(t, err, ErrGroupFull)
	_, err = m.CreateTabGroup(types.ModeNormal, []int{a.ID(), b.ID()})
	wantErr(t, err, ErrGroupFull)
	_, err = m.CreateTabGroup(types.Mode("bogus"), []int{a.ID(), b.ID()})
	wantErr(t, err, ErrInvalidReference)
	if a.GroupID() == b.GroupID() {
		t.Error("unknown mode still gathered the tabs")
	}
	if got := len(m.Groups()); got != 3 {
		t.Errorf("failed creations left %d groups, want 3", got)
	}

	g, err := m.CreateTabGroup(types.ModeSplit, []int{a.ID(), 404, b.ID(), a.ID()})
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 2 {
		t.Errorf("members = %v", g.TabIDs())
	}
	checkInvariants(t, m)
}

func TestGroupFocusFollowsRemoval(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	b := mustTab(t, m, CreateTabOptions{})
	c := mustTab(t, m, CreateTabOptions{})
	g := mustGroup(t, m, types.ModeSplit, a, b, c)

	if g.FocusedTabID() != a.ID() {
		t.Fatalf("focus = %d, want first member", g.FocusedTabID())
	}
	g.SetFocusedTab(b.ID())
	g.RemoveTab(b.ID())
	if g.FocusedTabID() != c.ID() {
		t.Errorf("focus = %d, want next member %d", g.FocusedTabID(), c.ID())
	}
}

func TestResolveGroupHealsOrphan(t *testing.T) {
	m, _ := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{})
	old := a.GroupID()

	// corrupt the registry directly
	delete(m.groups, old)
	if err := m.CheckInvariants(); err == nil {
		t.Fatal("CheckInvariants missed an orphan")
	}

	g := m.ResolveGroup(a)
	if g == nil || g.ID() == old || !g.HasTab(a.ID()) {
		t.Fatalf("orphan not healed: %+v", g)
	}
	checkInvariants(t, m)
}

func TestClosingLoneTabNeverShowsEmptyGroup(t *testing.T) {
	m, env := newTestManager(t)
	a := mustTab(t, m, CreateTabOptions{Activate: true})
	b := mustTab(t, m, CreateTabOptions{})
	g := m.GroupByTabID(a.ID())
	m.Subscribe(func(e Event) {
		if e.Group != nil && !e.Group.Destroyed() && e.Group.Len() == 0 {
			t.Errorf("%v delivered group %d with no members", e.Kind, e.Group.ID())
		}
	})
	env.events = nil

	a.Destroy()
	if got := env.count(GroupUpdated); got != 0 {
		t.Errorf("GroupUpdated fired %d times for a closing lone tab", got)
	}
	if env.count(GroupRemoved) != 1 || m.Group(g.ID()) != nil {
		t.Error("lone tab's group survived")
	}
	if m.ActiveTab(1, "s1") != b {
		t.Errorf("active tab = %v, want %d", m.ActiveTab(1, "s1"), b.ID())
	}

	// the last member leaving on its own is re-homed in one step
	old := m.GroupByTabID(b.ID())
	env.events = nil
	old.RemoveTab(b.ID())
	if got := env.count(GroupUpdated); got != 0 {
		t.Errorf("GroupUpdated fired %d times for an emptied group", got)
	}
	if ng := m.GroupByTabID(b.ID()); ng == nil || ng == old || !old.Destroyed() {
		t.Fatalf("tab %d not re-homed out of group %d", b.ID(), old.ID())
	}
	checkInvariants(t, m)
}
