package server

import "github.com/lotas/flowtabs/internal/types"

// Command types.
const (
	CmdCreateTab    = "create-tab"
	CmdCloseTab     = "close-tab"
	CmdSetActive    = "set-active"
	CmdSetFocused   = "set-focused"
	CmdMoveTab      = "move-tab"
	CmdSwitchSpace  = "switch-space"
	CmdCreateGroup  = "create-group"
	CmdDestroyGroup = "destroy-group"
	CmdSleep        = "sleep"
	CmdWake         = "wake"
	CmdLoadURL      = "load-url"
	CmdGoBack       = "go-back"
	CmdGoForward    = "go-forward"
	CmdEnterPiP     = "enter-pip"
	CmdExitPiP      = "exit-pip"
	CmdGetState     = "get-state"
	CmdCheck        = "check"
)

// Outgoing message types.
const (
	TypeReply             = "reply"
	TypeWindowTabsChanged = "window-tabs-changed"
)

// IncomingMsg is a command from a client. Which fields are read depends
// on Type.
type IncomingMsg struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	TabID     int    `json:"tabId,omitempty"`
	TabIDs    []int  `json:"tabIds,omitempty"`
	GroupID   int    `json:"groupId,omitempty"`
	WindowID  int    `json:"windowId,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
	SpaceID   string `json:"spaceId,omitempty"`
	URL       string `json:"url,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Replace   bool   `json:"replace,omitempty"`
	Activate  bool   `json:"activate,omitempty"`
}

// OutgoingMsg is a reply to a command or a change notification.
type OutgoingMsg struct {
	ID       string                `json:"id,omitempty"`
	Type     string                `json:"type"`
	OK       *bool                 `json:"ok,omitempty"`
	Error    string                `json:"error,omitempty"`
	WindowID int                   `json:"windowId,omitempty"`
	Tab      *types.TabRecord      `json:"tab,omitempty"`
	Group    *types.TabGroupRecord `json:"group,omitempty"`
	State    *types.Session        `json:"state,omitempty"`
}
