package replace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// ErrProtectedPath marks an attempt to rewrite a file matching a
// protected glob pattern (for example an earlier backup).
var ErrProtectedPath = errors.New("path is protected from replacement")

// Options controls a single find-and-replace run over one file.
type Options struct {
	// Find is the literal string to search for. Must not be empty.
	Find string

	// Replace is the literal replacement. Empty means deletion.
	Replace string

	// CaseSensitive disables the default case-insensitive matching.
	CaseSensitive bool

	// DryRun reports every match without touching the file.
	DryRun bool

	// Backup writes a timestamped copy of the original before the
	// replacement write.
	Backup bool
}

// Result describes what a run found and did.
type Result struct {
	// Matches in document order, located against the original content
	Matches []Match

	// WasModified indicates the target file was rewritten
	WasModified bool

	// BackupPath is the backup file written, if any
	BackupPath string

	// OriginalContent is the content before replacement
	OriginalContent string

	// ModifiedContent is the content after replacement. Computed even
	// on a dry run, for preview purposes; equal to OriginalContent when
	// nothing matched.
	ModifiedContent string
}

// Engine performs literal find-and-replace over a single file with
// fail-safe backup ordering: the backup is written before the target,
// and a backup failure aborts the run with the target untouched.
type Engine struct {
	protect []string
	now     func() time.Time
}

// NewEngine creates an Engine. protect holds doublestar glob patterns
// for paths the engine refuses to rewrite.
func NewEngine(protect []string) *Engine {
	return &Engine{
		protect: protect,
		now:     time.Now,
	}
}

// Run reads the file at path, scans for opts.Find, and (unless DryRun
// is set or nothing matched) rewrites the file. Zero matches is a clean
// outcome: nothing is written, not even a requested backup.
func (e *Engine) Run(ctx context.Context, path string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !opts.DryRun {
		if err := e.checkProtected(path); err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return nil, errors.Errorf("%s: content is not valid UTF-8", path)
	}
	content := string(raw)

	matches, err := Scan(content, opts.Find, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Matches:         matches,
		OriginalContent: content,
		ModifiedContent: content,
	}
	if len(matches) == 0 {
		return result, nil
	}

	modified, err := Apply(content, opts.Find, opts.Replace, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}
	result.ModifiedContent = modified

	if opts.DryRun {
		return result, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Errorf("stat %s: %w", path, err)
	}
	perm := info.Mode().Perm()

	// Backup first. If the safety copy cannot be made, the original
	// must not be overwritten.
	if opts.Backup {
		backupPath := e.backupPath(path)
		if err := os.WriteFile(backupPath, raw, perm); err != nil {
			return nil, errors.Errorf("writing backup %s: %w", backupPath, err)
		}
		result.BackupPath = backupPath
	}

	if err := writeAtomic(path, []byte(modified), perm); err != nil {
		return nil, errors.Errorf("writing %s: %w", path, err)
	}
	result.WasModified = true

	return result, nil
}

// writeAtomic stages data in a temp file in the target's directory and
// renames it over the target, so a failed write never leaves the target
// half-replaced.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".nounscan-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// backupPath derives the timestamped backup name: the stem gets a
// _backup_YYYYMMDD_HHMMSS suffix inserted before the extension.
func (e *Engine) backupPath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	stamp := e.now().Format("20060102_150405")
	return fmt.Sprintf("%s_backup_%s%s", stem, stamp, ext)
}

func (e *Engine) checkProtected(path string) error {
	name := filepath.ToSlash(path)
	for _, pattern := range e.protect {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return errors.Errorf("invalid protect pattern %q: %w", pattern, err)
		}
		if ok {
			return errors.Errorf("%s matches %q: %w", path, pattern, ErrProtectedPath)
		}
	}
	return nil
}
