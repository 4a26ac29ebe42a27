package cleanup

import (
	"os"
	"strings"

	"github.com/qdirstat-go/qdirstat/internal/model"
)

// desktopPrograms maps a desktop hint to its %terminal/%filemanager
// expansion, per spec.md §4.6. Looked up against
// $QDIRSTAT_DESKTOP ∪ $XDG_CURRENT_DESKTOP.
var desktopPrograms = map[string]struct{ terminal, filemanager string }{
	"kde":            {"konsole", "dolphin"},
	"gnome":          {"gnome-terminal", "nautilus"},
	"unity":          {"gnome-terminal", "nautilus"},
	"xfce":           {"xfce4-terminal", "thunar"},
	"lxde":           {"lxterminal", "pcmanfm"},
	"enlightenment":  {"terminology", "pcmanfm"},
}

const (
	fallbackTerminal   = "xterm"
	fallbackFileManager = "xdg-open"
)

// detectDesktop returns the lowercased desktop hint from
// $QDIRSTAT_DESKTOP, falling back to $XDG_CURRENT_DESKTOP.
func detectDesktop() string {
	hint := os.Getenv("QDIRSTAT_DESKTOP")
	if hint == "" {
		hint = os.Getenv("XDG_CURRENT_DESKTOP")
	}
	return strings.ToLower(hint)
}

func terminalProgram() string {
	if p, ok := desktopPrograms[detectDesktop()]; ok {
		return p.terminal
	}
	return fallbackTerminal
}

func fileManagerProgram() string {
	if p, ok := desktopPrograms[detectDesktop()]; ok {
		return p.filemanager
	}
	return fallbackFileManager
}

// Expand applies the %-variable substitution rules to template in the
// order spec.md §4.6 lists them: %p, %n, %d, %terminal, %filemanager.
// A template containing no placeholder is returned unchanged
// (spec.md §8 property 7). Replacement values are inserted verbatim, so
// expanding twice is a no-op the second time only when item's path and
// name contain no '%'; a placeholder inside either is expanded again.
func Expand(template string, item *model.Node) string {
	if !strings.Contains(template, "%") {
		return template
	}
	path := item.URL()
	name := item.Name
	dir := containingDir(item)

	r := strings.NewReplacer(
		"%p", quoteShellArg(path),
		"%n", quoteShellArg(name),
		"%d", quoteShellArg(dir),
		"%terminal", terminalProgram(),
		"%filemanager", fileManagerProgram(),
	)
	return r.Replace(template)
}
