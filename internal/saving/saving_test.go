package saving

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lotas/flowtabs/internal/browser"
	"github.com/lotas/flowtabs/internal/storage"
	"github.com/lotas/flowtabs/internal/tabs"
	"github.com/lotas/flowtabs/internal/types"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) GetAll(ctx context.Context) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Remove(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok, nil
}

func (s *memStore) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *memStore) record(t *testing.T, key string, v any) bool {
	t.Helper()
	raw, ok, _ := s.Get(context.Background(), key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("record %s: %v", key, err)
	}
	return true
}

func memStores() (Stores, *memStore, *memStore, *memStore) {
	ts, gs, fs := newMemStore(), newMemStore(), newMemStore()
	return Stores{Tabs: ts, Groups: gs, Folders: fs}, ts, gs, fs
}

func newManager(t *testing.T, now func() time.Time) (*tabs.Manager, *browser.Windows) {
	t.Helper()
	w := browser.NewWindows()
	p := browser.NewProfiles()
	p.AddProfile("default")
	p.AddSpace("home", "default")
	p.AddSpace("work", "default")
	w.Create("home")
	m := tabs.New(tabs.Deps{Windows: w, Profiles: p, Surfaces: &browser.HeadlessFactory{}, Now: now})
	t.Cleanup(m.Destroy)
	return m, w
}

func mustTab(t *testing.T, m *tabs.Manager, opts tabs.CreateTabOptions) *tabs.Tab {
	t.Helper()
	tab, err := m.CreateTab(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func flush(t *testing.T, s *Saver) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSaverMirrorsChanges(t *testing.T) {
	m, _ := newManager(t, nil)
	stores, ts, gs, fs := memStores()
	s := NewSaver(context.Background(), m, stores)
	defer s.Close()

	a := mustTab(t, m, tabs.CreateTabOptions{URL: "https://a.test"})
	b := mustTab(t, m, tabs.CreateTabOptions{URL: "https://b.test"})
	flush(t, s)
	if ts.len() != 2 || gs.len() != 2 {
		t.Fatalf("stored %d tabs, %d groups; want 2 and 2", ts.len(), gs.len())
	}

	g, err := m.CreateTabGroup(types.ModeSplit, []int{a.ID(), b.ID()})
	if err != nil {
		t.Fatal(err)
	}
	f, err := m.CreateTabFolder("", "Reading", "default", "home")
	if err != nil {
		t.Fatal(err)
	}
	f.AddGroup(g.ID())
	flush(t, s)

	if gs.len() != 1 {
		t.Errorf("stored %d groups after merge, want 1", gs.len())
	}
	var grec types.TabGroupRecord
	if !gs.record(t, groupKey(g.ID()), &grec) || grec.Mode != types.ModeSplit || len(grec.TabIDs) != 2 {
		t.Errorf("group record = %+v", grec)
	}
	var trec types.TabRecord
	if !ts.record(t, a.UniqueID(), &trec) || trec.GroupID != g.ID() {
		t.Errorf("tab record group = %d, want %d", trec.GroupID, g.ID())
	}
	var frec types.TabFolderRecord
	if !fs.record(t, f.ID(), &frec) || len(frec.TabGroupIDs) != 1 || frec.TabGroupIDs[0] != g.ID() {
		t.Errorf("folder record = %+v", frec)
	}

	b.Destroy()
	flush(t, s)
	if ts.record(t, b.UniqueID(), &trec) {
		t.Error("closed tab still stored")
	}

	m.DestroyTabFolder(f.ID())
	flush(t, s)
	if fs.len() != 0 {
		t.Error("destroyed folder still stored")
	}
}

func TestSaverSleepingTabKeepsStoredURL(t *testing.T) {
	m, _ := newManager(t, nil)
	stores, ts, _, _ := memStores()
	s := NewSaver(context.Background(), m, stores)
	defer s.Close()

	a := mustTab(t, m, tabs.CreateTabOptions{URL: "https://a.test"})
	flush(t, s)
	a.PutToSleep()
	a.SetURL("about:blank")
	flush(t, s)

	var rec types.TabRecord
	ts.record(t, a.UniqueID(), &rec)
	if !rec.Asleep || rec.URL != "https://a.test" {
		t.Errorf("record = asleep %v url %q", rec.Asleep, rec.URL)
	}
}

func TestSaverIgnoresTeardown(t *testing.T) {
	m, _ := newManager(t, nil)
	stores, ts, gs, _ := memStores()
	s := NewSaver(context.Background(), m, stores)
	defer s.Close()

	mustTab(t, m, tabs.CreateTabOptions{})
	mustTab(t, m, tabs.CreateTabOptions{})
	flush(t, s)
	m.Destroy()
	flush(t, s)
	if ts.len() != 2 || gs.len() != 2 {
		t.Errorf("teardown removed records: %d tabs, %d groups left", ts.len(), gs.len())
	}
}

func TestSaverResync(t *testing.T) {
	m, _ := newManager(t, nil)
	stores, ts, gs, _ := memStores()
	ctx := context.Background()
	stores.Tabs.Set(ctx, "stale", []byte(`{"id":99}`))
	stores.Groups.Set(ctx, "99", []byte(`{"id":99}`))

	s := NewSaver(ctx, m, stores)
	defer s.Close()
	mustTab(t, m, tabs.CreateTabOptions{})
	s.Resync()
	flush(t, s)
	if ts.len() != 1 || gs.len() != 1 {
		t.Errorf("after resync: %d tabs, %d groups", ts.len(), gs.len())
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	s.Close()
	if err := s.Flush(ctx); err != ErrClosed {
		t.Errorf("Flush after Close = %v", err)
	}
}

func TestLoadArchivesStaleTabs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stores, ts, _, _ := memStores()
	put := func(rec types.TabRecord) {
		b, _ := json.Marshal(rec)
		ts.Set(ctx, rec.UniqueID, b)
	}
	put(types.TabRecord{ID: 1, UniqueID: "fresh", URL: "https://a.test", LastActiveAt: now.Add(-time.Hour).Unix()})
	put(types.TabRecord{ID: 2, UniqueID: "stale", URL: "https://b.test", LastActiveAt: now.Add(-30 * 24 * time.Hour).Unix()})
	put(types.TabRecord{ID: 3, UniqueID: "undated", URL: "https://c.test"})
	ts.Set(ctx, "broken", []byte("{"))

	sess, err := Load(ctx, stores, Policy{ArchiveAfter: 7 * 24 * time.Hour, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Tabs) != 2 {
		t.Fatalf("loaded %d tabs, want 2: %+v", len(sess.Tabs), sess.Tabs)
	}
	for _, rec := range sess.Tabs {
		if rec.UniqueID == "stale" {
			t.Error("stale tab loaded")
		}
	}
	if _, ok, _ := ts.Get(ctx, "stale"); ok {
		t.Error("stale tab not removed from the store")
	}
	if _, ok, _ := ts.Get(ctx, "broken"); !ok {
		t.Error("undecodable record was removed")
	}
}

func TestPolicy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Policy{SleepAfter: time.Hour, Now: func() time.Time { return now }}
	if !p.ShouldSleep(now.Add(-2 * time.Hour)) {
		t.Error("idle tab should sleep")
	}
	if p.ShouldSleep(now.Add(-time.Hour)) {
		t.Error("threshold is exclusive")
	}
	if p.ShouldSleep(time.Time{}) || p.ShouldArchive(now.Add(-1000*time.Hour)) {
		t.Error("zero time or disabled rule matched")
	}
}

func TestSleepIdle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m, _ := newManager(t, clock)
	old := now.Add(-3 * time.Hour)

	idle := mustTab(t, m, tabs.CreateTabOptions{LastActiveAt: old})
	fresh := mustTab(t, m, tabs.CreateTabOptions{})
	shown := mustTab(t, m, tabs.CreateTabOptions{LastActiveAt: old})
	m.SetActiveTab(shown)
	if !shown.Visible() {
		t.Fatal("active tab not visible")
	}

	n := SleepIdle(m, Policy{SleepAfter: time.Hour, Now: clock})
	if n != 1 || !idle.Asleep() || fresh.Asleep() || shown.Asleep() {
		t.Errorf("slept %d; idle %v fresh %v shown %v", n, idle.Asleep(), fresh.Asleep(), shown.Asleep())
	}
}

func TestRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := storage.Open(filepath.Join(t.TempDir(), "flowtabs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	stores := StoresFor(st)

	m, _ := newManager(t, nil)
	s := NewSaver(ctx, m, stores)
	a := mustTab(t, m, tabs.CreateTabOptions{URL: "https://a.test"})
	b := mustTab(t, m, tabs.CreateTabOptions{URL: "https://b.test"})
	b.LoadURL("https://b.test/next", false)
	c := mustTab(t, m, tabs.CreateTabOptions{URL: "https://c.test"})
	w := mustTab(t, m, tabs.CreateTabOptions{URL: "https://w.test", SpaceID: "work"})
	split, err := m.CreateTabGroup(types.ModeSplit, []int{a.ID(), b.ID()})
	if err != nil {
		t.Fatal(err)
	}
	f, _ := m.CreateTabFolder("f1", "Work", "default", "home")
	f.AddGroup(split.ID())
	f.SetExpanded(true)
	m.SetActiveTab(b)
	flush(t, s)
	s.Close()
	m.Destroy()

	sess, err := Load(ctx, stores, Policy{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Tabs) != 4 || len(sess.Groups) != 3 || len(sess.Folders) != 1 {
		t.Fatalf("loaded %d tabs, %d groups, %d folders", len(sess.Tabs), len(sess.Groups), len(sess.Folders))
	}

	m2, w2 := newManager(t, nil)
	// a window that is not part of the session
	w2.Create("home")
	res, err := Restore(ctx, m2, sess, w2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Windows != 1 || res.Tabs != 4 || res.Folders != 1 || res.Skipped != 0 {
		t.Errorf("restore result = %+v", res)
	}
	if err := m2.CheckInvariants(); err != nil {
		t.Fatal(err)
	}

	ra, rb := m2.TabByUniqueID(a.UniqueID()), m2.TabByUniqueID(b.UniqueID())
	rc, rw := m2.TabByUniqueID(c.UniqueID()), m2.TabByUniqueID(w.UniqueID())
	if ra == nil || rb == nil || rc == nil || rw == nil {
		t.Fatal("restored tabs missing")
	}
	if rw.SpaceID() != "work" || rw.WindowID() != ra.WindowID() {
		t.Errorf("work tab restored to %d/%s", rw.WindowID(), rw.SpaceID())
	}
	g := m2.GroupByTabID(ra.ID())
	if g.Mode() != types.ModeSplit || !g.HasTab(rb.ID()) {
		t.Errorf("split not restored: %v %v", g.Mode(), g.TabIDs())
	}
	if rc.GroupID() == g.ID() {
		t.Error("c joined the split group")
	}
	if got := rb.NavHistory(); len(got) != 2 || rb.URL() != "https://b.test/next" {
		t.Errorf("b history = %v, url %q", got, rb.URL())
	}
	folder := m2.Folder("f1")
	if folder == nil || !folder.Expanded() || len(folder.GroupIDs()) != 1 || folder.GroupIDs()[0] != g.ID() {
		t.Errorf("folder not restored: %+v", folder)
	}
	if at := m2.ActiveTab(ra.WindowID(), "home"); at != rb {
		t.Errorf("active tab = %v, want b", at)
	}
	if rb.Asleep() || !rc.Asleep() {
		t.Errorf("asleep: b %v c %v; only hidden tabs should sleep", rb.Asleep(), rc.Asleep())
	}
}

type gatedStore struct {
	*memStore
	gate chan struct{}
}

func (s *gatedStore) Set(ctx context.Context, key string, value []byte) error {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.memStore.Set(ctx, key, value)
}

func TestSaverFullQueueDoesNotBlockManager(t *testing.T) {
	m, _ := newManager(t, nil)
	stores, ts, gs, _ := memStores()
	gate := make(chan struct{})
	stores.Tabs = &gatedStore{memStore: ts, gate: gate}
	s := newSaver(context.Background(), m, stores, 2)
	defer s.Close()

	// every tab queues several writes while the writer is stuck on the first
	var ids []string
	for range 20 {
		ids = append(ids, mustTab(t, m, tabs.CreateTabOptions{}).UniqueID())
	}
	if !s.overflowed {
		t.Fatal("queue of 2 should have overflowed")
	}

	close(gate)
	flush(t, s)
	if s.overflowed {
		t.Error("flush left the saver overflowed")
	}
	if ts.len() != 20 || gs.len() != 20 {
		t.Fatalf("stored %d tabs, %d groups, want 20 each", ts.len(), gs.len())
	}
	for _, id := range ids {
		var rec types.TabRecord
		if !ts.record(t, id, &rec) {
			t.Errorf("tab %s missing after catch up", id)
		}
	}
}
