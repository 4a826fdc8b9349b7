package sync

import (
	"bufio"
	"log/slog"
	"os"
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/vaultsync/vaultsync/internal/utils"
)

// IgnoreFileName is an optional gitignore-style rule file at the vault root.
// Its rules are merged with the configured exclusion rules.
const IgnoreFileName = ".vaultsyncignore"

// Filter decides whether a path participates in sync at all. It is applied
// identically to both indices, so excluded paths are invisible to planning.
// Rules are independent; a path is excluded if any rule matches.
type Filter struct {
	folders       []string
	extensions    map[string]struct{}
	includeHidden bool
	ignore        *gitignore.GitIgnore
}

// NewFilter builds a Filter from configured rules. Folder prefixes and
// extensions are normalized once so ShouldExclude stays allocation-free.
func NewFilter(folders, extensions []string, includeHidden bool) *Filter {
	normFolders := make([]string, 0, len(folders))
	for _, f := range folders {
		f = strings.Trim(utils.NormPath(f), "/")
		if f != "" && f != "." {
			normFolders = append(normFolders, f)
		}
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	return &Filter{
		folders:       normFolders,
		extensions:    exts,
		includeHidden: includeHidden,
	}
}

// LoadIgnoreFile merges gitignore-style rules from baseDir/.vaultsyncignore,
// if present. Missing files are fine.
func (f *Filter) LoadIgnoreFile(baseDir string) {
	ignorePath := path.Join(baseDir, IgnoreFileName)
	if !utils.FileExists(ignorePath) {
		return
	}

	file, err := os.Open(ignorePath)
	if err != nil {
		slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		return
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
		return
	}

	f.ignore = gitignore.CompileIgnoreLines(lines...)
	slog.Info("loaded ignore file", "path", ignorePath, "rules", len(lines))
}

// ShouldExclude reports whether path is excluded from sync. The path must be
// normalized and relative to the tree root.
func (f *Filter) ShouldExclude(p string) bool {
	if p == "" || p == "." {
		return false
	}

	segments := strings.Split(p, "/")

	if !f.includeHidden {
		for _, seg := range segments {
			if seg != "." && strings.HasPrefix(seg, ".") {
				return true
			}
		}
	}

	for _, folder := range f.folders {
		if p == folder || strings.HasPrefix(p, folder+"/") {
			return true
		}
	}

	if len(f.extensions) > 0 {
		if ext := strings.ToLower(path.Ext(p)); ext != "" {
			if _, ok := f.extensions[ext]; ok {
				return true
			}
		}
	}

	if f.ignore != nil && f.ignore.MatchesPath(p) {
		return true
	}

	return false
}
