// Package discovery walks a directory tree and yields the files worth
// handing to the detector orchestrator: text files within the size
// limit, matching the caller's include globs, minus generated artifacts
// and the label sidecars this tool writes itself. It is the thin
// filesystem collaborator in front of the core pipeline; deciding what
// to do with each target stays with the caller.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// Target is one file the walker selected for scanning.
type Target struct {
	Path string
	Size int64
}

// WalkConfig controls which files a walk yields.
type WalkConfig struct {
	// Include globs (doublestar syntax) matched against the path
	// relative to the walk root. Empty means every file.
	Include []string
	// Exclude globs, checked before Include. A file matching any
	// exclude glob is skipped.
	Exclude []string
	// MaxFileSize skips files larger than this many bytes. Zero means
	// no size cutoff; callers normally pass the orchestrator's
	// MAX_TEXT_BYTES so the walker never yields a file the orchestrator
	// would reject anyway.
	MaxFileSize int64
	// SkipBinary skips files whose leading bytes look binary (null
	// bytes, invalid UTF-8, or a high non-printable ratio).
	SkipBinary bool
	// SkipHidden skips dotfiles. Off by default: .env files are prime
	// credential-scanning territory.
	SkipHidden bool
}

// DefaultWalkConfig excludes version-control internals, dependency
// trees, build output, and the sidecar files riskscan itself produces.
func DefaultWalkConfig() WalkConfig {
	return WalkConfig{
		Exclude: []string{
			"**/.git/**", "**/.svn/**", "**/.hg/**",
			"**/vendor/**", "**/node_modules/**",
			"**/build/**", "**/dist/**", "**/target/**",
			"**/*.min.js", "**/*.min.css",
			"**/*.openlabel.json",
		},
		MaxFileSize: 10 * 1024 * 1024,
		SkipBinary:  true,
	}
}

// Walker selects scan targets under a root directory.
type Walker struct {
	cfg WalkConfig
}

// NewWalker builds a Walker over cfg.
func NewWalker(cfg WalkConfig) *Walker {
	return &Walker{cfg: cfg}
}

// Walk visits every selected file under root in directory order,
// invoking visit for each. A visit error stops the walk and is returned
// to the caller. Unreadable files and permission-denied subtrees are
// logged and skipped rather than failing the walk.
func (w *Walker) Walk(ctx context.Context, root string, visit func(Target) error) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("discovery: stat %s: %w", root, err)
	}

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if os.IsPermission(err) {
				log.Warn().Str("path", path).Msg("discovery: permission denied, skipping subtree")
				return fs.SkipDir
			}
			return err
		}
		if entry.IsDir() {
			if w.cfg.SkipHidden && path != root && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("discovery: stat failed, skipping file")
			return nil
		}
		ok, err := w.selects(root, path, info)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("discovery: probe failed, skipping file")
			return nil
		}
		if !ok {
			return nil
		}
		return visit(Target{Path: path, Size: info.Size()})
	})
}

// Targets materializes a full walk into a slice, for callers that want
// the whole target list up front rather than streaming.
func (w *Walker) Targets(ctx context.Context, root string) ([]Target, error) {
	targets := []Target{}
	err := w.Walk(ctx, root, func(t Target) error {
		targets = append(targets, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

func (w *Walker) selects(root, path string, info fs.FileInfo) (bool, error) {
	if w.cfg.MaxFileSize > 0 && info.Size() > w.cfg.MaxFileSize {
		return false, nil
	}
	if w.cfg.SkipHidden && strings.HasPrefix(filepath.Base(path), ".") {
		return false, nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, glob := range w.cfg.Exclude {
		if matched, _ := doublestar.Match(glob, rel); matched {
			return false, nil
		}
	}
	if len(w.cfg.Include) > 0 {
		included := false
		for _, glob := range w.cfg.Include {
			if matched, _ := doublestar.Match(glob, rel); matched {
				included = true
				break
			}
		}
		if !included {
			return false, nil
		}
	}

	if w.cfg.SkipBinary {
		binary, err := looksBinary(path)
		if err != nil {
			return false, err
		}
		if binary {
			return false, nil
		}
	}
	return true, nil
}

// looksBinary sniffs the file's first 512 bytes: a null byte, invalid
// UTF-8, or more than 30% non-printable characters classifies the file
// as binary.
func looksBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	buf = buf[:n]

	nonPrintable := 0
	for _, b := range buf {
		if b == 0 {
			return true, nil
		}
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
	}
	if !utf8.Valid(buf) {
		return true, nil
	}
	return len(buf) > 0 && float64(nonPrintable)/float64(len(buf)) > 0.3, nil
}
