// Package browser provides the window, profile and render surface
// collaborators the tab manager runs against.
package browser

import (
	"context"
	"slices"

	"github.com/lotas/flowtabs/internal/tabs"
)

// Windows is an in-memory window registry. Like the manager it is owned by
// a single goroutine.
type Windows struct {
	windows []tabs.Window
	focused int
	nextID  int
}

func NewWindows() *Windows { return &Windows{} }

// Create opens a window showing spaceID and focuses it.
func (w *Windows) Create(spaceID string) int {
	w.nextID++
	w.windows = append(w.windows, tabs.Window{ID: w.nextID, CurrentSpace: spaceID})
	w.focused = w.nextID
	return w.nextID
}

// CreateWindow is Create for session restore.
func (w *Windows) CreateWindow(ctx context.Context, spaceID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return w.Create(spaceID), nil
}

// Close forgets a window. Focus moves to the most recently created one left.
func (w *Windows) Close(id int) bool {
	idx := slices.IndexFunc(w.windows, func(win tabs.Window) bool { return win.ID == id })
	if idx < 0 {
		return false
	}
	w.windows = slices.Delete(w.windows, idx, idx+1)
	if w.focused == id {
		w.focused = 0
		if n := len(w.windows); n > 0 {
			w.focused = w.windows[n-1].ID
		}
	}
	return true
}

func (w *Windows) Focus(id int) bool {
	if _, ok := w.ResolveWindow(id); !ok {
		return false
	}
	w.focused = id
	return true
}

// SetCurrentSpace switches the space a window shows.
func (w *Windows) SetCurrentSpace(id int, spaceID string) bool {
	for i := range w.windows {
		if w.windows[i].ID == id {
			if w.windows[i].CurrentSpace == spaceID {
				return false
			}
			w.windows[i].CurrentSpace = spaceID
			return true
		}
	}
	return false
}

func (w *Windows) ResolveWindow(id int) (tabs.Window, bool) {
	for _, win := range w.windows {
		if win.ID == id {
			return win, true
		}
	}
	return tabs.Window{}, false
}

func (w *Windows) FocusedWindow() (tabs.Window, bool) {
	if w.focused == 0 {
		return tabs.Window{}, false
	}
	return w.ResolveWindow(w.focused)
}

func (w *Windows) AllWindows() []tabs.Window { return slices.Clone(w.windows) }
