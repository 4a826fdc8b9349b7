// Package vault adapts a local directory tree to the sync core's LocalStore
// contract. All paths crossing the boundary are normalized and relative to
// the vault root.
package vault

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vaultsync/vaultsync/internal/client/sync"
	"github.com/vaultsync/vaultsync/internal/utils"
)

// InternalDirName holds vaultsync's own data inside the vault (trash, temp
// files, lock). It is never indexed.
const InternalDirName = ".vaultsync"

// Vault is a LocalStore over one directory tree.
type Vault struct {
	root     string
	tmpDir   string
	trashDir string
}

// New resolves root and prepares the internal data directories.
func New(root string) (*Vault, error) {
	resolved, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	if !utils.DirExists(resolved) {
		return nil, fmt.Errorf("vault root does not exist: %s", resolved)
	}

	v := &Vault{
		root:     resolved,
		tmpDir:   filepath.Join(resolved, InternalDirName, "tmp"),
		trashDir: filepath.Join(resolved, InternalDirName, "trash"),
	}
	if err := utils.EnsureDir(v.tmpDir); err != nil {
		return nil, fmt.Errorf("ensure tmp dir: %w", err)
	}
	if err := utils.EnsureDir(v.trashDir); err != nil {
		return nil, fmt.Errorf("ensure trash dir: %w", err)
	}
	return v, nil
}

// Root returns the absolute vault root.
func (v *Vault) Root() string {
	return v.root
}

// InternalPath returns an absolute path under the vault's internal data dir.
func (v *Vault) InternalPath(parts ...string) string {
	return filepath.Join(append([]string{v.root, InternalDirName}, parts...)...)
}

// ListAll enumerates every file and directory under the root, excluding the
// root itself and the internal data dir. Unreadable entries are skipped, not
// fatal.
func (v *Vault) ListAll() ([]*sync.LocalEntry, error) {
	var entries []*sync.LocalEntry

	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %q: %w", p, walkErr)
		}
		if p == v.root {
			return nil
		}
		if d.IsDir() && d.Name() == InternalDirName {
			return filepath.SkipDir
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("vault stat failed, skipping", "path", p, "error", err)
			return nil
		}

		relPath, err := filepath.Rel(v.root, p)
		if err != nil {
			return fmt.Errorf("rel path %q: %w", p, err)
		}

		entry := &sync.LocalEntry{
			Path:  utils.NormPath(relPath),
			IsDir: d.IsDir(),
			Mtime: info.ModTime().UnixMilli(),
		}
		if !d.IsDir() {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault scan failed: %w", err)
	}

	return entries, nil
}

// Stat returns metadata for one path.
func (v *Vault) Stat(relPath string) (*sync.LocalEntry, error) {
	info, err := os.Stat(v.abs(relPath))
	if err != nil {
		return nil, err
	}

	entry := &sync.LocalEntry{
		Path:  utils.NormPath(relPath),
		IsDir: info.IsDir(),
		Mtime: info.ModTime().UnixMilli(),
	}
	if !info.IsDir() {
		entry.Size = info.Size()
	}
	return entry, nil
}

// ReadBytes reads a whole file.
func (v *Vault) ReadBytes(relPath string) ([]byte, error) {
	return os.ReadFile(v.abs(relPath))
}

// WriteBytes writes a file atomically: the body goes to a temp file inside
// the internal dir, then renames into place. The mtime (unix millis, zero to
// skip) is stamped on the result so converged pairs compare equal next run.
func (v *Vault) WriteBytes(relPath string, data []byte, mtime int64) error {
	target := v.abs(relPath)
	if err := utils.EnsureParent(target); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}

	tmp, err := os.CreateTemp(v.tmpDir, filepath.Base(target)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	success = true

	if mtime > 0 {
		ts := time.UnixMilli(mtime)
		if err := os.Chtimes(target, ts, ts); err != nil {
			return fmt.Errorf("set mtime: %w", err)
		}
	}
	return nil
}

// EnsureDir creates a directory and any missing parents.
func (v *Vault) EnsureDir(relPath string) error {
	return utils.EnsureDir(v.abs(relPath))
}

// Exists reports whether a path exists in the vault.
func (v *Vault) Exists(relPath string) bool {
	_, err := os.Stat(v.abs(relPath))
	return err == nil
}

// RemoveEmptyDir removes a directory; fails if it still has children.
func (v *Vault) RemoveEmptyDir(relPath string) error {
	return os.Remove(v.abs(relPath))
}

// MoveToTrash moves a file into the vault's trash dir, preserving its
// relative path. An occupied trash slot is timestamped instead of
// overwritten.
func (v *Vault) MoveToTrash(relPath string) error {
	src := v.abs(relPath)
	dst := filepath.Join(v.trashDir, filepath.FromSlash(relPath))

	if err := utils.EnsureParent(dst); err != nil {
		return fmt.Errorf("ensure trash parent: %w", err)
	}
	if _, err := os.Stat(dst); err == nil {
		dst = fmt.Sprintf("%s.%d", dst, time.Now().UnixMilli())
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move to trash: %w", err)
	}

	slog.Debug("vault trashed", "path", relPath, "trash", dst)
	return nil
}

func (v *Vault) abs(relPath string) string {
	return filepath.Join(v.root, filepath.FromSlash(relPath))
}
