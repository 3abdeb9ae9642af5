package sessionfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/lotas/flowtabs/internal/types"
)

// Target is the profile and space imported tabs are assigned to.
type Target struct {
	ProfileID string
	SpaceID   string
}

type ffEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type ffTab struct {
	Entries      []ffEntry `json:"entries"`
	Index        int       `json:"index"`
	LastAccessed int64     `json:"lastAccessed"`
	Group        string    `json:"groupId"`
}

type ffGroup struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Collapsed bool   `json:"collapsed"`
}

type ffWindow struct {
	Tabs   []ffTab   `json:"tabs"`
	Groups []ffGroup `json:"groups"`
}

type ffSession struct {
	Windows []ffWindow `json:"windows"`
}

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
func DecompressMozLz4(data []byte) ([]byte, error) {
	out, err := decompressBlock(mozMagic, data)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: %w", err)
	}
	return out, nil
}

// ParseFirefox converts Firefox session JSON into a session. Every Firefox
// tab becomes a tab in its own normal group; Firefox tab groups become
// folders. Ids are local to the returned session.
func ParseFirefox(data []byte, target Target) (types.Session, error) {
	var raw ffSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.Session{}, fmt.Errorf("parse session JSON: %w", err)
	}

	sess := types.Session{SavedAt: time.Now()}
	nextID := 0
	for winIdx, w := range raw.Windows {
		windowID := winIdx + 1

		folders := make(map[string]*types.TabFolderRecord)
		var order []string
		for i, g := range w.Groups {
			folders[g.ID] = &types.TabFolderRecord{
				ID:        g.ID,
				Name:      g.Name,
				ProfileID: target.ProfileID,
				SpaceID:   target.SpaceID,
				Position:  float64(i),
				Expanded:  !g.Collapsed,
			}
			order = append(order, g.ID)
		}

		for tabIdx, rt := range w.Tabs {
			if len(rt.Entries) == 0 {
				continue
			}
			// index is 1-based
			idx := rt.Index - 1
			if idx < 0 || idx >= len(rt.Entries) {
				idx = len(rt.Entries) - 1
			}
			nav := make([]types.NavEntry, len(rt.Entries))
			for i, e := range rt.Entries {
				nav[i] = types.NavEntry{Title: e.Title, URL: e.URL}
			}

			nextID++
			pos := float64(tabIdx)
			sess.Tabs = append(sess.Tabs, types.TabRecord{
				ID:              nextID,
				WindowID:        windowID,
				GroupID:         nextID,
				ProfileID:       target.ProfileID,
				SpaceID:         target.SpaceID,
				Title:           nav[idx].Title,
				URL:             nav[idx].URL,
				Asleep:          true,
				NavHistory:      nav,
				NavHistoryIndex: idx,
				Position:        pos,
				LastActiveAt:    rt.LastAccessed / 1000,
			})
			group := types.TabGroupRecord{
				ID:        nextID,
				Mode:      types.ModeNormal,
				ProfileID: target.ProfileID,
				SpaceID:   target.SpaceID,
				WindowID:  windowID,
				TabIDs:    []int{nextID},
				Position:  pos,
			}
			if f := folders[rt.Group]; f != nil {
				group.FolderID = f.ID
				f.TabGroupIDs = append(f.TabGroupIDs, group.ID)
			}
			sess.Groups = append(sess.Groups, group)
		}

		for _, id := range order {
			sess.Folders = append(sess.Folders, *folders[id])
		}
	}
	return sess, nil
}

// ImportFirefox reads a Firefox profile's session. It tries
// recovery.jsonlz4 first (active session), then previous.jsonlz4.
func ImportFirefox(profileDir string, target Target) (types.Session, error) {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	var data []byte
	var err error
	for _, name := range []string{"recovery.jsonlz4", "previous.jsonlz4"} {
		data, err = os.ReadFile(filepath.Join(backupDir, name))
		if err == nil {
			break
		}
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("no session file found in %s", backupDir)
	}
	raw, err := DecompressMozLz4(data)
	if err != nil {
		return types.Session{}, err
	}
	return ParseFirefox(raw, target)
}

// FirefoxProfile is one entry of profiles.ini.
type FirefoxProfile struct {
	Name      string
	Path      string
	IsDefault bool
}

// FindFirefoxDir returns the platform-specific Firefox profile directory.
func FindFirefoxDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "linux":
		return filepath.Join(home, ".mozilla", "firefox")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	default:
		return ""
	}
}

// ParseProfilesINI reads profiles.ini. Relative paths are resolved against
// firefoxDir.
func ParseProfilesINI(iniPath, firefoxDir string) ([]FirefoxProfile, error) {
	f, err := os.Open(iniPath)
	if err != nil {
		return nil, fmt.Errorf("open profiles.ini: %w", err)
	}
	defer f.Close()

	var profiles []FirefoxProfile
	var current *FirefoxProfile
	relative := false
	flush := func() {
		if current == nil {
			return
		}
		if relative {
			current.Path = filepath.Join(firefoxDir, current.Path)
		}
		profiles = append(profiles, *current)
		current, relative = nil, false
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			if strings.HasPrefix(line[1:len(line)-1], "Profile") {
				current = &FirefoxProfile{}
			}
			continue
		}
		if current == nil {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "Name":
			current.Name = value
		case "Path":
			current.Path = value
		case "IsRelative":
			relative = value == "1"
		case "Default":
			current.IsDefault = value == "1"
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan profiles.ini: %w", err)
	}
	return profiles, nil
}

// FindFirefoxProfile returns the directory of the named profile, or of the
// default profile when name is empty.
func FindFirefoxProfile(name string) (string, error) {
	dir := FindFirefoxDir()
	if dir == "" {
		return "", fmt.Errorf("could not find Firefox directory for %s", runtime.GOOS)
	}
	profiles, err := ParseProfilesINI(filepath.Join(dir, "profiles.ini"), dir)
	if err != nil {
		return "", err
	}
	for _, p := range profiles {
		if (name == "" && p.IsDefault) || (name != "" && p.Name == name) {
			return p.Path, nil
		}
	}
	if name == "" && len(profiles) > 0 {
		return profiles[0].Path, nil
	}
	return "", fmt.Errorf("firefox profile %q not found", name)
}
