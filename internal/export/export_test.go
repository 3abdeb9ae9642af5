package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lotas/flowtabs/internal/types"
)

func TestDuplicates(t *testing.T) {
	tabs := []types.TabRecord{
		{ID: 1, URL: "https://example.com/page#section1"},
		{ID: 2, URL: "https://example.com/page#section2"},
		{ID: 3, URL: "https://example.com/other"},
		{ID: 4, URL: "https://example.com/page?b=2&a=1"},
		{ID: 5, URL: "https://example.com/page?a=1&b=2"},
		{ID: 6},
		{ID: 7},
	}

	dups := Duplicates(tabs)

	if got := dups[1]; len(got) != 1 || got[0] != 2 {
		t.Errorf("dups[1] = %v, want [2]", got)
	}
	if got := dups[4]; len(got) != 1 || got[0] != 5 {
		t.Errorf("dups[4] = %v, want [5]", got)
	}
	for _, id := range []int{3, 6, 7} {
		if _, ok := dups[id]; ok {
			t.Errorf("tab %d should not be a duplicate", id)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/page/", "https://example.com/page"},
		{"https://example.com/page?b=2&a=1", "https://example.com/page?a=1&b=2"},
		{"https://example.com", "https://example.com"},
	}

	for _, tt := range tests {
		got := NormalizeURL(tt.input)
		if got != tt.expected {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func testSession(now time.Time) types.Session {
	return types.Session{
		Tabs: []types.TabRecord{
			{ID: 1, WindowID: 1, SpaceID: "home", GroupID: 10, Title: "Go docs", URL: "https://go.dev/doc", LastActiveAt: now.Add(-3 * 24 * time.Hour).Unix()},
			{ID: 2, WindowID: 1, SpaceID: "home", GroupID: 11, Title: "Left", URL: "https://a.test/x/", Asleep: true},
			{ID: 3, WindowID: 1, SpaceID: "home", GroupID: 11, URL: "https://a.test/x", LastActiveAt: now.Add(-5 * time.Hour).Unix()},
			{ID: 4, WindowID: 2, SpaceID: "work", GroupID: 12, Title: "Tracker", URL: "https://bugs.test/1"},
		},
		Groups: []types.TabGroupRecord{
			{ID: 12, Mode: types.ModeNormal, WindowID: 2, SpaceID: "work", TabIDs: []int{4}},
			{ID: 11, Mode: types.ModeSplit, WindowID: 1, SpaceID: "home", TabIDs: []int{2, 3}, Position: 1, FolderID: "f1"},
			{ID: 10, Mode: types.ModeNormal, WindowID: 1, SpaceID: "home", TabIDs: []int{1}},
		},
		Folders: []types.TabFolderRecord{
			{ID: "f1", Name: "Research", SpaceID: "home", TabGroupIDs: []int{11}},
		},
	}
}

func TestMarkdown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	result := Markdown(testSession(now), now)

	for _, want := range []string{
		"# Flow Tabs",
		"> Exported 2025-03-01 12:00, 4 tabs",
		"## Window 1 · home",
		"## Window 2 · work",
		"- [Go docs](https://go.dev/doc) · 3d ago",
		"### Research",
		"- split (2)",
		"  - [Left](https://a.test/x/) · asleep, duplicate",
		"  - [https://a.test/x](https://a.test/x) · 5h ago, duplicate",
		"- [Tracker](https://bugs.test/1)\n",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("missing %q in:\n%s", want, result)
		}
	}
	if strings.Index(result, "Window 1") > strings.Index(result, "Window 2") {
		t.Errorf("windows out of order:\n%s", result)
	}
	if strings.Index(result, "Go docs") > strings.Index(result, "split (2)") {
		t.Errorf("groups not ordered by position:\n%s", result)
	}
}

func TestMarkdownEmpty(t *testing.T) {
	now := time.Now()
	result := Markdown(types.Session{}, now)
	if !strings.Contains(result, "0 tabs") || strings.Contains(result, "## ") {
		t.Errorf("unexpected output:\n%s", result)
	}
}

func TestJSON(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := JSON(testSession(now), now)
	if err != nil {
		t.Fatal(err)
	}

	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\noutput:\n%s", err, result)
	}
	if len(parsed.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(parsed.Windows))
	}
	home := parsed.Windows[0]
	if home.WindowID != 1 || home.SpaceID != "home" || len(home.Groups) != 2 {
		t.Fatalf("unexpected first window: %+v", home)
	}
	split := home.Groups[1]
	if split.Mode != types.ModeSplit || split.Folder != "Research" || len(split.Tabs) != 2 {
		t.Fatalf("unexpected split group: %+v", split)
	}
	if !split.Tabs[0].Asleep || !split.Tabs[0].IsDuplicate || split.Tabs[0].Domain != "a.test" {
		t.Errorf("unexpected split tab: %+v", split.Tabs[0])
	}
	doc := home.Groups[0].Tabs[0]
	if doc.LastActivePretty != "3d ago" || doc.LastActive == nil || doc.Domain != "go.dev" {
		t.Errorf("unexpected doc tab: %+v", doc)
	}
	if work := parsed.Windows[1]; work.Groups[0].Tabs[0].LastActive != nil {
		t.Errorf("tab without activity has a last_active time: %+v", work.Groups[0].Tabs[0])
	}
}
