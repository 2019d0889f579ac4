package extension

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Kind selects which suffix family and downstream sink an autoload
// entry belongs to.
type Kind int

const (
	KindExtensionBinary Kind = iota
	KindModule
)

func (k Kind) String() string {
	if k == KindModule {
		return "module"
	}
	return "extension"
}

// suffixes returns the platform-appropriate file extensions accepted
// for kind.
func (k Kind) suffixes() []string {
	if k == KindExtensionBinary {
		if runtime.GOOS == "windows" {
			return []string{".exe"}
		}
		return []string{".ext"}
	}
	switch runtime.GOOS {
	case "windows":
		return []string{".dll"}
	case "darwin":
		return []string{".dylib"}
	default:
		return []string{".so"}
	}
}

func (k Kind) hasValidSuffix(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range k.suffixes() {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Launcher is the narrow contract for the child-process launcher: a
// supervisor that forks extension binaries whose paths are handed to
// it.
type Launcher interface {
	Launch(path string) error
}

// ModuleLoader is the narrow contract for the registry's in-process
// module loader.
type ModuleLoader interface {
	LoadModule(path string) error
}

// Entry is a sanitized autoload candidate: an absolute filesystem path
// that survived every check in isFileSafe/sanitizeLine.
type Entry struct {
	Kind Kind
	Path string
}

// sanitizeLine trims whitespace, then checks in order: blank/comment,
// directory, parent-directory permissions, then suffix. It is
// idempotent: sanitizeLine(sanitizeLine(l).Path) yields the same Entry,
// since the output is always an absolute, already-trimmed path. A path
// that doesn't exist yet is not itself rejected here — only an entry
// that already exists as a directory is — since a well-named entry may
// simply not have been forked into existence yet; the parent-directory
// check below still has to pass regardless.
func sanitizeLine(line string, kind Kind) (Entry, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Entry{}, "blank line"
	}
	if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
		return Entry{}, "comment"
	}

	if info, err := os.Stat(trimmed); err == nil && info.IsDir() {
		return Entry{}, "path is a directory"
	}

	dir := filepath.Dir(trimmed)
	if !isFileSafe(dir) {
		return Entry{}, "parent directory failed permission safety check: " + dir
	}

	if !kind.hasValidSuffix(trimmed) {
		return Entry{}, "unrecognized suffix for " + kind.String()
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		abs = trimmed
	}
	return Entry{Kind: kind, Path: abs}, ""
}

// isFileSafe reports whether dir is owner-controlled and not
// world-writable. A directory owned by neither root nor the running
// user is rejected outright, since a legitimate autoload path has no
// business living under someone else's home directory; a world-writable
// directory is rejected unless the sticky bit blocks a sibling from
// being swapped out from under a legitimate file between this check and
// the fork/exec.
func isFileSafe(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	if !ownerSafe(info) {
		return false
	}
	mode := info.Mode()
	if mode&0o002 != 0 && mode&os.ModeSticky == 0 {
		return false
	}
	return true
}

// LoadExtensions reads loadfile, vets each line as a KindExtensionBinary
// entry, and hands every surviving path to launcher.Launch. Reading a
// missing or unreadable loadfile is a soft failure: it returns 0, nil
// rather than propagating the open error, since an absent loadfile just
// means "no extensions configured".
func LoadExtensions(loadfile string, launcher Launcher, logger *slog.Logger) (int, error) {
	lines, err := readLoadfileLines(loadfile)
	if err != nil {
		logger.Warn("extensions autoload file unreadable, continuing with none", "path", loadfile, "error", err)
		return 0, nil
	}

	launched := 0
	for _, line := range lines {
		entry, reason := sanitizeLine(line, KindExtensionBinary)
		if reason != "" {
			if reason != "blank line" && reason != "comment" {
				logger.Warn("rejected autoload entry", "line", line, "reason", reason)
			}
			continue
		}
		if err := launcher.Launch(entry.Path); err != nil {
			logger.Warn("failed to launch autoloaded extension", "path", entry.Path, "error", err)
			continue
		}
		launched++
	}
	return launched, nil
}

// LoadModules reads loadfile, vets each line as a KindModule entry, and
// loads every surviving path in-process via loader. It returns an
// aggregate "all succeeded" boolean: false as soon as any line is
// rejected or fails to load, but processing still continues through the
// remaining lines.
func LoadModules(loadfile string, loader ModuleLoader, logger *slog.Logger) (bool, error) {
	lines, err := readLoadfileLines(loadfile)
	if err != nil {
		logger.Warn("modules autoload file unreadable, continuing with none", "path", loadfile, "error", err)
		return true, nil
	}

	allOK := true
	for _, line := range lines {
		entry, reason := sanitizeLine(line, KindModule)
		if reason != "" {
			if reason != "blank line" && reason != "comment" {
				logger.Warn("rejected module autoload entry", "line", line, "reason", reason)
				allOK = false
			}
			continue
		}
		if err := loader.LoadModule(entry.Path); err != nil {
			logger.Warn("failed to load autoloaded module", "path", entry.Path, "error", err)
			allOK = false
			continue
		}
	}
	return allOK, nil
}

// LoadSingleUnsafe is a shell-only side path: it hands path straight to
// launcher without running sanitizeLine or isFileSafe at all. It exists
// for developer workflows driven by the `extension` CLI flag and must
// never be folded into the vetted LoadExtensions pipeline.
func LoadSingleUnsafe(path string, launcher Launcher) error {
	if path == "" {
		return nil
	}
	return launcher.Launch(path)
}

func readLoadfileLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errAutoload("open loadfile", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errAutoload("read loadfile", err)
	}
	return lines, nil
}
