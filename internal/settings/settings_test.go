package settings

import (
	"path/filepath"
	"testing"

	"github.com/qdirstat-go/qdirstat/internal/cleanup"
	"github.com/qdirstat-go/qdirstat/internal/excludes"
)

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.conf")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rules, err := s.LoadExcludeRules()
	if err != nil {
		t.Fatalf("LoadExcludeRules: %v", err)
	}
	if len(rules.Rules) != 0 {
		t.Fatalf("expected no rules from a missing file, got %d", len(rules.Rules))
	}
}

func TestExcludeRulesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qdirstat.conf")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	original := &excludes.List{Rules: []*excludes.Rule{
		{Pattern: `\.cache$`, Syntax: excludes.RegExp, Enabled: true, CaseSensitive: true},
		{Pattern: "*.tmp", Syntax: excludes.Wildcard, Enabled: true, UseFullPath: true},
		{Pattern: "node_modules", Syntax: excludes.FixedString, Enabled: false},
	}}
	if err := s.SaveExcludeRules(original); err != nil {
		t.Fatalf("SaveExcludeRules: %v", err)
	}
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := reloaded.LoadExcludeRules()
	if err != nil {
		t.Fatalf("LoadExcludeRules: %v", err)
	}
	if len(got.Rules) != len(original.Rules) {
		t.Fatalf("got %d rules, want %d", len(got.Rules), len(original.Rules))
	}
	for i, want := range original.Rules {
		r := got.Rules[i]
		if r.Pattern != want.Pattern || r.Syntax != want.Syntax || r.Enabled != want.Enabled ||
			r.CaseSensitive != want.CaseSensitive || r.UseFullPath != want.UseFullPath {
			t.Fatalf("rule %d round-trip mismatch: got %+v, want %+v", i, r, want)
		}
	}
}

func TestCleanupsRoundTripAndReplaceOnResave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qdirstat.conf")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	first := []*cleanup.Cleanup{
		{Title: "Open in Terminal", Command: "%terminal", Active: true, WorksForDir: true},
		{Title: "Delete", Command: "rm -rf %p", Active: true, WorksForDir: true, WorksForFile: true, RefreshPolicy: cleanup.AssumeDeleted},
	}
	if err := s.SaveCleanups(first); err != nil {
		t.Fatalf("SaveCleanups: %v", err)
	}

	got, err := s.LoadCleanups()
	if err != nil {
		t.Fatalf("LoadCleanups: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d cleanups, want 2", len(got))
	}
	if got[1].RefreshPolicy != cleanup.AssumeDeleted {
		t.Fatalf("RefreshPolicy = %v, want AssumeDeleted", got[1].RefreshPolicy)
	}

	// Saving a shorter list must fully replace the prior array, not
	// merge with it.
	second := []*cleanup.Cleanup{
		{Title: "Only One", Command: "echo hi", Active: true},
	}
	if err := s.SaveCleanups(second); err != nil {
		t.Fatalf("SaveCleanups (second): %v", err)
	}
	got2, err := s.LoadCleanups()
	if err != nil {
		t.Fatalf("LoadCleanups (second): %v", err)
	}
	if len(got2) != 1 || got2[0].Title != "Only One" {
		t.Fatalf("got2 = %+v, want exactly [{Title: Only One}]", got2)
	}
}

func TestMimeCategoriesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qdirstat.conf")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	original := []MimeCategoryRecord{
		{Name: "Documents", Patterns: []string{"*.pdf", "*.doc", "*.txt"}, Color: "#3daee9"},
		{Name: "Video", Patterns: []string{"*.mp4", "*.mkv"}, Color: "#e91e63"},
	}
	if err := s.SaveMimeCategories(original); err != nil {
		t.Fatalf("SaveMimeCategories: %v", err)
	}

	got, err := s.LoadMimeCategories()
	if err != nil {
		t.Fatalf("LoadMimeCategories: %v", err)
	}
	if len(got) != len(original) {
		t.Fatalf("got %d categories, want %d", len(got), len(original))
	}
	for i, want := range original {
		if got[i].Name != want.Name || got[i].Color != want.Color || len(got[i].Patterns) != len(want.Patterns) {
			t.Fatalf("category %d mismatch: got %+v, want %+v", i, got[i], want)
		}
		for j, p := range want.Patterns {
			if got[i].Patterns[j] != p {
				t.Fatalf("category %d pattern %d: got %q, want %q", i, j, got[i].Patterns[j], p)
			}
		}
	}
}
