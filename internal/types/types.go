package types

import (
	"fmt"
	"time"
)

// Mode is the variant of a tab group.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeSplit  Mode = "split"
	ModeGlance Mode = "glance"
)

// ParseMode validates a mode string coming from storage or IPC.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNormal, ModeSplit, ModeGlance:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown tab group mode %q", s)
}

// Rect is a page bounds rectangle in window coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Equal reports whether both rectangles cover the same area. Nil equals nil.
func (r *Rect) Equal(o *Rect) bool {
	if r == nil || o == nil {
		return r == o
	}
	return *r == *o
}

// NavEntry is one navigation history entry.
type NavEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// WindowSpace addresses active and focus state.
type WindowSpace struct {
	WindowID int
	SpaceID  string
}

func (ws WindowSpace) String() string {
	return fmt.Sprintf("%d/%s", ws.WindowID, ws.SpaceID)
}

// TabRecord is the persisted and transmitted shape of a tab.
type TabRecord struct {
	ID              int        `json:"id"`
	UniqueID        string     `json:"uniqueId"`
	WindowID        int        `json:"windowId"`
	GroupID         int        `json:"groupId"`
	ProfileID       string     `json:"profileId"`
	SpaceID         string     `json:"spaceId"`
	Title           string     `json:"title"`
	URL             string     `json:"url"`
	IsLoading       bool       `json:"isLoading"`
	Audible         bool       `json:"audible"`
	Muted           bool       `json:"muted"`
	Asleep          bool       `json:"asleep"`
	NavHistory      []NavEntry `json:"navHistory"`
	NavHistoryIndex int        `json:"navHistoryIndex"`
	Position        float64    `json:"position"`
	LastActiveAt    int64      `json:"lastActiveAt,omitempty"` // unix seconds
}

// TabGroupRecord is the persisted and transmitted shape of a tab group.
type TabGroupRecord struct {
	ID               int     `json:"id"`
	Mode             Mode    `json:"mode"`
	ProfileID        string  `json:"profileId"`
	SpaceID          string  `json:"spaceId"`
	WindowID         int     `json:"windowId"`
	TabIDs           []int   `json:"tabIds"`
	GlanceFrontTabID *int    `json:"glanceFrontTabId,omitempty"`
	Position         float64 `json:"position"`
	FolderID         string  `json:"folderId,omitempty"`
}

// TabFolderRecord is the persisted shape of a tab folder.
type TabFolderRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ProfileID   string  `json:"profileId"`
	SpaceID     string  `json:"spaceId"`
	TabGroupIDs []int   `json:"tabGroupIds"`
	Position    float64 `json:"position"`
	Expanded    bool    `json:"expanded"`
}

// WindowState is a snapshot of the active and focus maps for one window-space.
type WindowState struct {
	WindowID      int    `json:"windowId"`
	SpaceID       string `json:"spaceId"`
	ActiveTabID   int    `json:"activeTabId,omitempty"`
	ActiveGroupID int    `json:"activeGroupId,omitempty"`
	FocusedTabID  int    `json:"focusedTabId,omitempty"`
}

// Session bundles every record needed to rebuild the tab state.
type Session struct {
	SavedAt time.Time         `json:"savedAt"`
	Tabs    []TabRecord       `json:"tabs"`
	Groups  []TabGroupRecord  `json:"groups"`
	Folders []TabFolderRecord `json:"folders"`
	Windows []WindowState     `json:"windows,omitempty"`
}
