package scan

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/mirrorlab/codesync/internal/utils"
)

// IgnoreFileName is the per-project ignore file, gitignore syntax.
const IgnoreFileName = ".codesyncignore"

var defaultIgnoreLines = []string{
	// codesync
	IgnoreFileName,
	".codesync/",
	// VCS
	".git",
	".hg",
	".svn",
	// python
	"__pycache__/",
	"*.py[cod]",
	".venv/",
	"venv/",
	".ipynb_checkpoints/",
	// node
	"node_modules/",
	// build output
	"dist/",
	"build/",
	"target/",
	// IDE/Editor-specific
	".vscode",
	".idea",
	// General excludes
	".env",
	"*.tmp",
	"*.log",
	"logs/",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList decides which paths the enumerator tracks. Rules come from the
// built-in defaults plus the project's .codesyncignore file.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	il := &IgnoreList{baseDir: baseDir}
	il.Load()
	return il
}

// Load compiles the rules. Call again to pick up edits to the ignore file.
func (s *IgnoreList) Load() {
	ignorePath := filepath.Join(s.baseDir, IgnoreFileName)
	ignoreLines := defaultIgnoreLines

	if utils.FileExists(ignorePath) {
		rules := 0
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()

			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					ignoreLines = append(ignoreLines, line)
					rules++
				}
			}

			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	s.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

// ShouldIgnore reports whether the relative forward-slash path is excluded.
// Directory paths should be passed with isDir=true so trailing-slash rules
// apply.
func (s *IgnoreList) ShouldIgnore(relPath string, isDir bool) bool {
	if s.ignore == nil {
		return false
	}
	if s.ignore.MatchesPath(relPath) {
		return true
	}
	if isDir {
		return s.ignore.MatchesPath(relPath + "/")
	}
	return false
}
