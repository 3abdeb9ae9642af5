package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/saving"
	"github.com/lotas/flowtabs/internal/tabs"
	"github.com/lotas/flowtabs/internal/types"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnavailable    = errors.New("unavailable")
)

// SpaceSwitcher changes the space a window shows.
type SpaceSwitcher interface {
	SetCurrentSpace(windowID int, spaceID string) bool
}

// Dispatcher is the only goroutine that touches the manager. It applies
// queued commands, functions passed to Do and the periodic Tick.
type Dispatcher struct {
	m      *tabs.Manager
	srv    *Server
	spaces SpaceSwitcher
	calls  chan func()

	// Tick runs on the dispatcher every TickEvery when both are set.
	TickEvery time.Duration
	Tick      func()
}

// NewDispatcher wires m to srv. spaces may be nil, which disables the
// switch-space command.
func NewDispatcher(m *tabs.Manager, srv *Server, spaces SpaceSwitcher) *Dispatcher {
	return &Dispatcher{m: m, srv: srv, spaces: spaces, calls: make(chan func())}
}

// Run processes work until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if d.TickEvery > 0 && d.Tick != nil {
		t := time.NewTicker(d.TickEvery)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-d.srv.Requests():
			d.handle(ctx, req)
		case fn := <-d.calls:
			fn()
			d.srv.FlushNotifications()
		case <-tick:
			d.Tick()
			d.srv.FlushNotifications()
		}
	}
}

// Do runs fn on the dispatcher goroutine and waits for it to finish.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case d.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) handle(ctx context.Context, req Request) {
	out, err := d.apply(ctx, req.Msg)
	d.srv.FlushNotifications()
	ok := err == nil
	out.OK = &ok
	if err != nil {
		out.Error = err.Error()
		applog.Warn("dispatch.failed", "type", req.Msg.Type, "id", req.Msg.ID, "err", err)
	}
	d.srv.Reply(req, out)
}

func (d *Dispatcher) apply(ctx context.Context, msg IncomingMsg) (OutgoingMsg, error) {
	var out OutgoingMsg
	switch msg.Type {
	case CmdCreateTab:
		t, err := d.m.CreateTab(ctx, tabs.CreateTabOptions{
			WindowID:  msg.WindowID,
			ProfileID: msg.ProfileID,
			SpaceID:   msg.SpaceID,
			GroupID:   msg.GroupID,
			URL:       msg.URL,
			Activate:  msg.Activate,
		})
		if t != nil {
			out.Tab = d.tabRecord(t)
		}
		return out, err

	case CmdCloseTab:
		t, err := d.tab(msg.TabID)
		if err != nil {
			return out, err
		}
		return out, t.Destroy()

	case CmdSetActive:
		if msg.GroupID != 0 {
			g := d.m.Group(msg.GroupID)
			if g == nil {
				return out, fmt.Errorf("tab group %d: %w", msg.GroupID, tabs.ErrInvalidReference)
			}
			return out, d.m.SetActiveTab(g)
		}
		t, err := d.tab(msg.TabID)
		if err != nil {
			return out, err
		}
		return out, d.m.SetActiveTab(t)

	case CmdSetFocused:
		return out, d.m.SetFocusedTab(msg.TabID)

	case CmdMoveTab:
		if err := d.m.MoveTab(msg.TabID, msg.WindowID, msg.SpaceID); err != nil {
			return out, err
		}
		out.Tab = d.tabRecord(d.m.Tab(msg.TabID))
		return out, nil

	case CmdSwitchSpace:
		if d.spaces == nil {
			return out, fmt.Errorf("switch-space: %w", ErrUnavailable)
		}
		d.spaces.SetCurrentSpace(msg.WindowID, msg.SpaceID)
		d.m.SetCurrentSpace(msg.WindowID, msg.SpaceID)
		return out, nil

	case CmdCreateGroup:
		mode, err := types.ParseMode(msg.Mode)
		if err != nil {
			return out, err
		}
		g, err := d.m.CreateTabGroup(mode, msg.TabIDs)
		if err != nil {
			return out, err
		}
		rec := saving.GroupToRecord(g)
		out.Group = &rec
		return out, nil

	case CmdDestroyGroup:
		return out, d.m.DestroyTabGroup(msg.GroupID)

	case CmdCheck:
		return out, d.m.CheckInvariants()

	case CmdGetState:
		s := saving.Snapshot(d.m)
		s.SavedAt = time.Now()
		out.State = &s
		return out, nil
	}

	// the remaining commands act on one tab
	t, err := d.tab(msg.TabID)
	if err != nil {
		if !isTabCommand(msg.Type) {
			return out, fmt.Errorf("%w %q", ErrUnknownCommand, msg.Type)
		}
		return out, err
	}
	switch msg.Type {
	case CmdSleep:
		t.PutToSleep()
	case CmdWake:
		t.WakeUp()
	case CmdLoadURL:
		if msg.URL == "" {
			return out, errors.New("load-url: url is required")
		}
		t.LoadURL(msg.URL, msg.Replace)
	case CmdGoBack:
		t.GoBack()
	case CmdGoForward:
		t.GoForward()
	case CmdEnterPiP:
		if !t.TryEnterPiP(ctx) {
			return out, fmt.Errorf("picture-in-picture: %w", ErrUnavailable)
		}
	case CmdExitPiP:
		t.TryExitPiP(ctx)
	default:
		return out, fmt.Errorf("%w %q", ErrUnknownCommand, msg.Type)
	}
	out.Tab = d.tabRecord(t)
	return out, nil
}

func isTabCommand(typ string) bool {
	switch typ {
	case CmdSleep, CmdWake, CmdLoadURL, CmdGoBack, CmdGoForward, CmdEnterPiP, CmdExitPiP:
		return true
	}
	return false
}

func (d *Dispatcher) tab(id int) (*tabs.Tab, error) {
	t := d.m.Tab(id)
	if t == nil {
		return nil, fmt.Errorf("tab %d: %w", id, tabs.ErrInvalidReference)
	}
	return t, nil
}

func (d *Dispatcher) tabRecord(t *tabs.Tab) *types.TabRecord {
	if t == nil || t.Destroyed() {
		return nil
	}
	pos := 0.0
	if g := d.m.Group(t.GroupID()); g != nil {
		pos = g.Position()
	}
	rec := saving.TabToRecord(t, pos)
	return &rec
}
