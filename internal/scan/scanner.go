// Package scan enumerates a project's tracked files. It walks the root
// honoring ignore rules and yields a deterministic, name-ordered list of
// relative paths with their content digests. Digests are cached across scans
// keyed by (size, mtime) so unchanged files are not re-hashed every cycle.
package scan

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mirrorlab/codesync/internal/merkle"
	"github.com/mirrorlab/codesync/internal/utils"
)

// FileRecord describes one tracked file at scan time. Records are owned by
// the scan that produced them and are never mutated afterwards.
type FileRecord struct {
	Path    string // relative, forward-slash
	Hash    string // hex sha256 of full content
	Size    int64
	ModTime time.Time
}

// Result is the outcome of one enumeration pass.
type Result struct {
	Files    []FileRecord // sorted by path
	Rejected []merkle.RejectedFile
}

// Leaves returns the path→hash map for feeding merkle.FromLeaves.
func (r *Result) Leaves() map[string]string {
	leaves := make(map[string]string, len(r.Files))
	for _, f := range r.Files {
		leaves[f.Path] = f.Hash
	}
	return leaves
}

// Scanner walks a project root. Safe for use by a single sync loop; scans
// are strictly sequential per project.
type Scanner struct {
	rootDir   string
	ignore    *IgnoreList
	lastState map[string]FileRecord
}

func NewScanner(rootDir string, ignore *IgnoreList) *Scanner {
	return &Scanner{
		rootDir:   rootDir,
		ignore:    ignore,
		lastState: make(map[string]FileRecord),
	}
}

// Scan enumerates the tree. A missing or unreadable root fails with
// *merkle.EnumerationError; individual unreadable files go to the reject
// list and the scan continues.
func (s *Scanner) Scan() (*Result, error) {
	if !utils.DirExists(s.rootDir) {
		return nil, &merkle.EnumerationError{Root: s.rootDir, Err: os.ErrNotExist}
	}

	res := &Result{}
	newState := make(map[string]FileRecord)

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == s.rootDir {
				return &merkle.EnumerationError{Root: s.rootDir, Err: walkErr}
			}
			rel, relErr := filepath.Rel(s.rootDir, path)
			if relErr != nil {
				rel = path
			}
			res.Rejected = append(res.Rejected, merkle.RejectedFile{Path: utils.NormPath(rel), Err: walkErr})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path == s.rootDir {
			return nil
		}

		rel, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return err
		}
		relPath := utils.NormPath(rel)

		if s.ignore != nil && s.ignore.ShouldIgnore(relPath, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			res.Rejected = append(res.Rejected, merkle.RejectedFile{Path: relPath, Err: err})
			return nil
		}

		var hash string
		prev, cached := s.lastState[relPath]
		if cached && prev.Size == info.Size() && prev.ModTime.Equal(info.ModTime()) {
			hash = prev.Hash
		} else {
			hash, err = hashFile(path)
			if err != nil {
				slog.Warn("scan: failed to hash file", "path", relPath, "error", err)
				res.Rejected = append(res.Rejected, merkle.RejectedFile{Path: relPath, Err: err})
				return nil
			}
		}

		rec := FileRecord{
			Path:    relPath,
			Hash:    hash,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		newState[relPath] = rec
		res.Files = append(res.Files, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	s.lastState = newState

	return res, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return merkle.HashReader(f)
}
