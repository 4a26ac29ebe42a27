// Package settings persists the three independent namespaces spec.md
// §6 describes — ExcludeRules/Rules, Cleanup_, MimeCategory_ — each an
// indexed array of groups, one group per element. Grounded on the
// teacher's app.go config handling (a single flat settings struct);
// generalized here to the spec's group-per-array-element model using
// gopkg.in/ini.v1, whose Section/Key model is a structural match for
// that shape (already present in this corpus's dependency graph via
// spf13/viper's ini support in gcsfuse and rcc).
package settings

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/qdirstat-go/qdirstat/internal/cleanup"
	"github.com/qdirstat-go/qdirstat/internal/excludes"
)

// ExcludeRuleRecord is the persisted shape of one excludes.Rule, per
// spec.md §4.2: {Pattern, CaseSensitive, UseFullPath, Syntax}.
type ExcludeRuleRecord struct {
	Pattern           string
	CaseSensitive     bool
	UseFullPath       bool
	Syntax            excludes.Syntax
	Enabled           bool
	CheckAnyFileChild bool
}

// MimeCategoryRecord is the persisted shape of one MIME category: a
// name, its match patterns, and an opaque color string the core never
// interprets (icon/theme handling is out of scope per spec.md §1; the
// core only owns the round-trip).
type MimeCategoryRecord struct {
	Name     string
	Patterns []string
	Color    string
}

// Store wraps a loaded ini.File and exposes typed accessors for each
// namespace.
type Store struct {
	file *ini.File
	path string
}

// Load reads path (creating an empty in-memory store if it does not
// exist yet — matching the teacher's "missing config is not an error"
// startup behavior).
func Load(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Store{file: ini.Empty(), path: path}, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("settings: cannot load %s: %w", path, err)
	}
	return &Store{file: f, path: path}, nil
}

// Save writes the store back to its path. If $SUDO_UID/$SUDO_GID are
// set, the file is chowned to those ids afterward, per spec.md §6.
func (s *Store) Save(path string) error {
	if path == "" {
		path = s.path
	}
	if err := s.file.SaveTo(path); err != nil {
		return fmt.Errorf("settings: cannot save %s: %w", path, err)
	}
	chownToSudoUser(path)
	return nil
}

func chownToSudoUser(path string) {
	uidStr := os.Getenv("SUDO_UID")
	gidStr := os.Getenv("SUDO_GID")
	if uidStr == "" || gidStr == "" {
		return
	}
	uid, err1 := strconv.Atoi(uidStr)
	gid, err2 := strconv.Atoi(gidStr)
	if err1 != nil || err2 != nil {
		return
	}
	_ = os.Chown(path, uid, gid) // best-effort, matching the source's fire-and-forget chown
}

// --- ExcludeRules/Rules namespace ---

const excludeRulesGroupPrefix = "ExcludeRules/Rules"

// LoadExcludeRules reads every ExcludeRules/Rules_NN group into a
// compiled excludes.List.
func (s *Store) LoadExcludeRules() (*excludes.List, error) {
	var records []ExcludeRuleRecord
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s_%d", excludeRulesGroupPrefix, i)
		if !s.file.HasSection(name) {
			break
		}
		sec := s.file.Section(name)
		records = append(records, ExcludeRuleRecord{
			Pattern:           sec.Key("Pattern").String(),
			CaseSensitive:     sec.Key("CaseSensitive").MustBool(false),
			UseFullPath:       sec.Key("UseFullPath").MustBool(false),
			Syntax:            excludes.Syntax(sec.Key("Syntax").MustInt(int(excludes.RegExp))),
			Enabled:           sec.Key("Enabled").MustBool(true),
			CheckAnyFileChild: sec.Key("CheckAnyFileChild").MustBool(false),
		})
	}
	list := &excludes.List{}
	for _, r := range records {
		list.Rules = append(list.Rules, &excludes.Rule{
			Pattern:           r.Pattern,
			Syntax:            r.Syntax,
			CaseSensitive:     r.CaseSensitive,
			Enabled:           r.Enabled,
			UseFullPath:       r.UseFullPath,
			CheckAnyFileChild: r.CheckAnyFileChild,
		})
	}
	if err := list.Compile(); err != nil {
		return nil, err
	}
	return list, nil
}

// SaveExcludeRules writes list back to the ExcludeRules/Rules
// namespace, one indexed group per rule, replacing whatever groups
// were there before.
func (s *Store) SaveExcludeRules(list *excludes.List) error {
	s.clearIndexedGroups(excludeRulesGroupPrefix)
	for i, r := range list.Rules {
		sec, err := s.file.NewSection(fmt.Sprintf("%s_%d", excludeRulesGroupPrefix, i))
		if err != nil {
			return err
		}
		sec.Key("Pattern").SetValue(r.Pattern)
		sec.Key("CaseSensitive").SetValue(strconv.FormatBool(r.CaseSensitive))
		sec.Key("UseFullPath").SetValue(strconv.FormatBool(r.UseFullPath))
		sec.Key("Syntax").SetValue(strconv.Itoa(int(r.Syntax)))
		sec.Key("Enabled").SetValue(strconv.FormatBool(r.Enabled))
		sec.Key("CheckAnyFileChild").SetValue(strconv.FormatBool(r.CheckAnyFileChild))
	}
	return nil
}

// --- Cleanup_ namespace ---

const cleanupGroupPrefix = "Cleanup_"

// LoadCleanups reads every Cleanup_NN group into a []*cleanup.Cleanup.
func (s *Store) LoadCleanups() ([]*cleanup.Cleanup, error) {
	var out []*cleanup.Cleanup
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", cleanupGroupPrefix, i)
		if !s.file.HasSection(name) {
			break
		}
		sec := s.file.Section(name)
		out = append(out, &cleanup.Cleanup{
			Title:              sec.Key("Title").String(),
			Command:            sec.Key("Command").String(),
			Active:             sec.Key("Active").MustBool(true),
			Shell:              sec.Key("Shell").String(),
			Recurse:            sec.Key("Recurse").MustBool(false),
			AskForConfirmation: sec.Key("AskForConfirmation").MustBool(false),
			WorksForDir:        sec.Key("WorksForDir").MustBool(true),
			WorksForFile:       sec.Key("WorksForFile").MustBool(true),
			WorksForDotEntry:   sec.Key("WorksForDotEntry").MustBool(false),
			RefreshPolicy:      cleanup.RefreshPolicy(sec.Key("RefreshPolicy").MustInt(0)),
			OutputWindowPolicy: cleanup.OutputWindowPolicy(sec.Key("OutputWindowPolicy").MustInt(0)),
			Timeout:            sec.Key("Timeout").MustInt(0),
		})
	}
	return out, nil
}

// SaveCleanups writes cleanups back to the Cleanup_ namespace, one
// indexed group per entry.
func (s *Store) SaveCleanups(cleanups []*cleanup.Cleanup) error {
	s.clearIndexedGroups(cleanupGroupPrefix)
	for i, c := range cleanups {
		sec, err := s.file.NewSection(fmt.Sprintf("%s%d", cleanupGroupPrefix, i))
		if err != nil {
			return err
		}
		sec.Key("Title").SetValue(c.Title)
		sec.Key("Command").SetValue(c.Command)
		sec.Key("Active").SetValue(strconv.FormatBool(c.Active))
		sec.Key("Shell").SetValue(c.Shell)
		sec.Key("Recurse").SetValue(strconv.FormatBool(c.Recurse))
		sec.Key("AskForConfirmation").SetValue(strconv.FormatBool(c.AskForConfirmation))
		sec.Key("WorksForDir").SetValue(strconv.FormatBool(c.WorksForDir))
		sec.Key("WorksForFile").SetValue(strconv.FormatBool(c.WorksForFile))
		sec.Key("WorksForDotEntry").SetValue(strconv.FormatBool(c.WorksForDotEntry))
		sec.Key("RefreshPolicy").SetValue(strconv.Itoa(int(c.RefreshPolicy)))
		sec.Key("OutputWindowPolicy").SetValue(strconv.Itoa(int(c.OutputWindowPolicy)))
		sec.Key("Timeout").SetValue(strconv.Itoa(c.Timeout))
	}
	return nil
}

// --- MimeCategory_ namespace ---

const mimeCategoryGroupPrefix = "MimeCategory_"

// LoadMimeCategories reads every MimeCategory_NN group.
func (s *Store) LoadMimeCategories() ([]MimeCategoryRecord, error) {
	var out []MimeCategoryRecord
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", mimeCategoryGroupPrefix, i)
		if !s.file.HasSection(name) {
			break
		}
		sec := s.file.Section(name)
		out = append(out, MimeCategoryRecord{
			Name:     sec.Key("Name").String(),
			Patterns: sec.Key("Patterns").Strings(","),
			Color:    sec.Key("Color").String(),
		})
	}
	return out, nil
}

// SaveMimeCategories writes categories back to the MimeCategory_
// namespace, one indexed group per entry.
func (s *Store) SaveMimeCategories(categories []MimeCategoryRecord) error {
	s.clearIndexedGroups(mimeCategoryGroupPrefix)
	for i, c := range categories {
		sec, err := s.file.NewSection(fmt.Sprintf("%s%d", mimeCategoryGroupPrefix, i))
		if err != nil {
			return err
		}
		sec.Key("Name").SetValue(c.Name)
		sec.Key("Patterns").SetValue(joinComma(c.Patterns))
		sec.Key("Color").SetValue(c.Color)
	}
	return nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// clearIndexedGroups deletes every section whose name starts with
// prefix, so a Save call fully replaces the prior array rather than
// appending to it.
func (s *Store) clearIndexedGroups(prefix string) {
	for _, sec := range s.file.Sections() {
		if len(sec.Name()) >= len(prefix) && sec.Name()[:len(prefix)] == prefix {
			s.file.DeleteSection(sec.Name())
		}
	}
}
