package saving

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/storage"
	"github.com/lotas/flowtabs/internal/tabs"
	"github.com/lotas/flowtabs/internal/types"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("saver closed")

type jobKind int

const (
	putTab jobKind = iota + 1
	removeTab
	putGroup
	removeGroup
	putFolder
	removeFolder
	putWindows
	replaceAll
	flushJob
)

var jobNames = map[jobKind]string{
	putTab:       "put-tab",
	removeTab:    "remove-tab",
	putGroup:     "put-group",
	removeGroup:  "remove-group",
	putFolder:    "put-folder",
	removeFolder: "remove-folder",
	putWindows:   "put-windows",
	replaceAll:   "replace-all",
	flushJob:     "flush",
}

func (k jobKind) String() string { return jobNames[k] }

type job struct {
	kind    jobKind
	key     string
	tab     types.TabRecord
	group   types.TabGroupRecord
	folder  types.TabFolderRecord
	windows []storage.WindowState
	session types.Session
	done    chan struct{}
}

// Saver mirrors manager changes into the stores. Records are built on the
// manager goroutine; a single writer goroutine applies them in order.
// Subscribe, Resync and Close must be called from the manager goroutine.
type Saver struct {
	m      *tabs.Manager
	stores Stores
	ctx    context.Context

	jobs        chan job
	done        chan struct{}
	unsubscribe func()
	stopped     bool
	closed      bool
	overflowed  bool
	failures    atomic.Int64
}

const queueSize = 1024

// NewSaver starts the writer and subscribes to m. ctx bounds every write.
func NewSaver(ctx context.Context, m *tabs.Manager, stores Stores) *Saver {
	return newSaver(ctx, m, stores, queueSize)
}

func newSaver(ctx context.Context, m *tabs.Manager, stores Stores, size int) *Saver {
	s := &Saver{
		m:      m,
		stores: stores,
		ctx:    ctx,
		jobs:   make(chan job, size),
		done:   make(chan struct{}),
	}
	go s.run()
	s.unsubscribe = m.Subscribe(s.handle)
	return s
}

// Failures is the number of writes that returned an error.
func (s *Saver) Failures() int64 { return s.failures.Load() }

// enqueue never blocks the manager. A full queue drops the job and marks
// the saver overflowed; the session is then rewritten as a whole once the
// writer catches up.
func (s *Saver) enqueue(j job) {
	if s.closed || s.overflowed {
		return
	}
	select {
	case s.jobs <- j:
	default:
		s.overflowed = true
		applog.Warn("saver.overflow", "pending", len(s.jobs))
	}
}

// send queues j even when the queue is full, waiting for the writer.
func (s *Saver) send(ctx context.Context, j job) error {
	select {
	case s.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saver) replaceJob() job {
	return job{kind: replaceAll, session: Snapshot(s.m), windows: s.windowStates()}
}

// catchUp rewrites the session after an overflow. It waits for the queue to
// drain to half so a busy manager does not queue a snapshot per event.
func (s *Saver) catchUp(ctx context.Context, wait bool) error {
	if !wait && len(s.jobs) > cap(s.jobs)/2 {
		return nil
	}
	s.overflowed = false
	return s.send(ctx, s.replaceJob())
}

func (s *Saver) handle(e tabs.Event) {
	if e.Kind == tabs.Teardown {
		// Teardown removes everything; the stored session must survive it.
		if s.overflowed && !s.stopped {
			if err := s.catchUp(s.ctx, true); err != nil {
				applog.Error("saver.catchup", err)
			}
		}
		s.stopped = true
		return
	}
	if s.stopped {
		return
	}
	if s.overflowed {
		// the snapshot taken on catch up already holds e
		if err := s.catchUp(s.ctx, false); err != nil {
			applog.Error("saver.catchup", err)
		}
		return
	}
	switch e.Kind {
	case tabs.TabCreated, tabs.TabUpdated:
		s.putTab(e.Tab)
	case tabs.TabRemoved:
		s.enqueue(job{kind: removeTab, key: e.Tab.UniqueID()})
	case tabs.GroupCreated, tabs.GroupUpdated:
		s.enqueue(job{kind: putGroup, key: groupKey(e.Group.ID()), group: GroupToRecord(e.Group)})
		// member records carry the group id and position
		for _, t := range e.Group.Tabs() {
			s.putTab(t)
		}
	case tabs.GroupRemoved:
		s.enqueue(job{kind: removeGroup, key: groupKey(e.Group.ID())})
	case tabs.FolderChanged:
		s.enqueue(job{kind: putFolder, key: e.Folder.ID(), folder: FolderToRecord(e.Folder)})
	case tabs.FolderRemoved:
		s.enqueue(job{kind: removeFolder, key: e.Folder.ID()})
	case tabs.ActiveChanged:
		if s.stores.Windows != nil {
			s.enqueue(job{kind: putWindows, windows: s.windowStates()})
		}
	}
}

func (s *Saver) putTab(t *tabs.Tab) {
	if t == nil || t.Destroyed() {
		return
	}
	s.enqueue(job{kind: putTab, key: t.UniqueID(), tab: TabToRecord(t, groupPosition(s.m, t))})
}

// windowStates maps the manager's window states to unique tab ids, which
// survive a restart.
func (s *Saver) windowStates() []storage.WindowState {
	var out []storage.WindowState
	for _, st := range s.m.WindowStates() {
		out = append(out, storage.WindowState{
			WindowID:     st.WindowID,
			SpaceID:      st.SpaceID,
			ActiveTabID:  s.uniqueID(st.ActiveTabID),
			FocusedTabID: s.uniqueID(st.FocusedTabID),
		})
	}
	return out
}

func (s *Saver) uniqueID(tabID int) string {
	if t := s.m.Tab(tabID); t != nil {
		return t.UniqueID()
	}
	return ""
}

// Resync replaces the stored session with the manager's current state.
func (s *Saver) Resync() {
	if s.stopped {
		return
	}
	s.enqueue(s.replaceJob())
}

// Flush waits until every change made so far has been written.
func (s *Saver) Flush(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.overflowed && !s.stopped {
		if err := s.catchUp(ctx, true); err != nil {
			return err
		}
	}
	done := make(chan struct{})
	if err := s.send(ctx, job{kind: flushJob, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unsubscribes and waits for pending writes.
func (s *Saver) Close() {
	if s.closed {
		return
	}
	s.unsubscribe()
	if s.overflowed && !s.stopped {
		if err := s.catchUp(s.ctx, true); err != nil {
			applog.Error("saver.catchup", err)
		}
	}
	s.closed = true
	close(s.jobs)
	<-s.done
}

func (s *Saver) run() {
	defer close(s.done)
	for j := range s.jobs {
		if j.kind == flushJob {
			close(j.done)
			continue
		}
		if err := s.apply(j); err != nil {
			s.failures.Add(1)
			applog.Error("saver.write", err, "job", j.kind.String(), "key", j.key)
		}
	}
}

func (s *Saver) apply(j job) error {
	ctx := s.ctx
	switch j.kind {
	case putTab:
		return s.writeTab(ctx, j.tab)
	case removeTab:
		_, err := s.stores.Tabs.Remove(ctx, j.key)
		return err
	case putGroup:
		return setJSON(ctx, s.stores.Groups, j.key, j.group)
	case removeGroup:
		_, err := s.stores.Groups.Remove(ctx, j.key)
		return err
	case putFolder:
		return setJSON(ctx, s.stores.Folders, j.key, j.folder)
	case removeFolder:
		_, err := s.stores.Folders.Remove(ctx, j.key)
		return err
	case putWindows:
		return s.stores.Windows.SaveWindowStates(ctx, j.windows)
	case replaceAll:
		return s.replace(ctx, j.session, j.windows)
	}
	return fmt.Errorf("unknown job %d", j.kind)
}

// writeTab stores a tab record. A sleeping tab keeps the navigation of an
// existing record so a restart reopens the page it was on.
func (s *Saver) writeTab(ctx context.Context, rec types.TabRecord) error {
	if rec.Asleep {
		raw, ok, err := s.stores.Tabs.Get(ctx, rec.UniqueID)
		if err != nil {
			return err
		}
		var old types.TabRecord
		if ok && json.Unmarshal(raw, &old) == nil && old.URL != "" {
			rec.URL = old.URL
			rec.NavHistory = old.NavHistory
			rec.NavHistoryIndex = old.NavHistoryIndex
		}
	}
	return setJSON(ctx, s.stores.Tabs, rec.UniqueID, rec)
}

func (s *Saver) replace(ctx context.Context, sess types.Session, windows []storage.WindowState) error {
	if err := s.stores.Groups.Wipe(ctx); err != nil {
		return err
	}
	if err := s.stores.Folders.Wipe(ctx); err != nil {
		return err
	}
	live := make(map[string]bool, len(sess.Tabs))
	for _, rec := range sess.Tabs {
		live[rec.UniqueID] = true
		if err := s.writeTab(ctx, rec); err != nil {
			return err
		}
	}
	stored, err := s.stores.Tabs.GetAll(ctx)
	if err != nil {
		return err
	}
	for key := range stored {
		if !live[key] {
			if _, err := s.stores.Tabs.Remove(ctx, key); err != nil {
				return err
			}
		}
	}
	for _, rec := range sess.Groups {
		if err := setJSON(ctx, s.stores.Groups, groupKey(rec.ID), rec); err != nil {
			return err
		}
	}
	for _, rec := range sess.Folders {
		if err := setJSON(ctx, s.stores.Folders, rec.ID, rec); err != nil {
			return err
		}
	}
	if s.stores.Windows != nil {
		return s.stores.Windows.SaveWindowStates(ctx, windows)
	}
	return nil
}

func setJSON(ctx context.Context, ds Datastore, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return ds.Set(ctx, key, b)
}
