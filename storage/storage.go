// Package storage locates the ledger root and performs atomic, locked file
// I/O against it.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"

	"github.com/faffhub/faff-go/ledgererr"
)

// RootDirName is the ledger marker directory, ".faff".
const RootDirName = ".faff"

// Storage translates logical ledger paths to physical paths and performs
// atomic file replacement (temp file + rename) for every ledger file kind.
type Storage struct {
	root   string // absolute path to the directory containing .faff/
	logger *logrus.Logger
}

// LocateRoot ascends parents from startingDir until a directory containing
// .faff/ is found.
func LocateRoot(startingDir string) (string, error) {
	dir, err := filepath.Abs(startingDir)
	if err != nil {
		return "", ledgererr.Wrap(ledgererr.RootNotFound, err, "resolving %q", startingDir)
	}
	for {
		candidate := filepath.Join(dir, RootDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ledgererr.New(ledgererr.RootNotFound, "no %s directory found above %s", RootDirName, startingDir)
		}
		dir = parent
	}
}

// Init creates the `.faff/` directory structure under targetDir. It fails
// RootExists if targetDir itself already has a .faff, and NestedRoot if an
// ancestor has one and allowNested is false.
func Init(targetDir string, allowNested bool) (string, error) {
	abs, err := filepath.Abs(targetDir)
	if err != nil {
		return "", ledgererr.Wrap(ledgererr.RootNotFound, err, "resolving %q", targetDir)
	}
	if info, err := os.Stat(filepath.Join(abs, RootDirName)); err == nil && info.IsDir() {
		return "", ledgererr.New(ledgererr.RootExists, "%s already contains a %s directory", abs, RootDirName)
	}
	if !allowNested {
		if ancestorRoot, err := LocateRoot(filepath.Dir(abs)); err == nil {
			return "", ledgererr.New(ledgererr.NestedRoot, "%s is nested under existing root %s", abs, ancestorRoot)
		}
	}
	dirs := []string{
		filepath.Join(abs, RootDirName, "logs"),
		filepath.Join(abs, RootDirName, "plans"),
		filepath.Join(abs, RootDirName, "timesheets"),
		filepath.Join(abs, RootDirName, "keys"),
		filepath.Join(abs, RootDirName, "plugins"),
		filepath.Join(abs, RootDirName, "plugin_state"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", ledgererr.Wrap(ledgererr.RootNotFound, err, "creating %s", d)
		}
	}
	cfgPath := filepath.Join(abs, RootDirName, "config.toml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfgPath, []byte(defaultConfigTOML), 0o644); err != nil {
			return "", ledgererr.Wrap(ledgererr.RootNotFound, err, "writing %s", cfgPath)
		}
	}
	return abs, nil
}

const defaultConfigTOML = "timezone = \"UTC\"\n"

// New wraps an already-located ledger root.
func New(root string, logger *logrus.Logger) *Storage {
	return &Storage{root: root, logger: logger}
}

// Root returns the ledger root directory (the parent of .faff/).
func (s *Storage) Root() string { return s.root }

func (s *Storage) faffPath(parts ...string) string {
	return filepath.Join(append([]string{s.root, RootDirName}, parts...)...)
}

// LogPath returns logs/<ISO-date>.toml.
func (s *Storage) LogPath(date string) string { return s.faffPath("logs", date+".toml") }

// PlanPath returns plans/<source>.<YYYYMMDD>.toml.
func (s *Storage) PlanPath(source, compactDate string) string {
	return s.faffPath("plans", fmt.Sprintf("%s.%s.toml", source, compactDate))
}

// PlansDir returns the plans/ directory.
func (s *Storage) PlansDir() string { return s.faffPath("plans") }

// LogsDir returns the logs/ directory.
func (s *Storage) LogsDir() string { return s.faffPath("logs") }

// TimesheetPath returns timesheets/<audience>.<ISO-date>[-vN].toml.
func (s *Storage) TimesheetPath(audienceID, date string, version int) string {
	if version <= 1 {
		return s.faffPath("timesheets", fmt.Sprintf("%s.%s.toml", audienceID, date))
	}
	return s.faffPath("timesheets", fmt.Sprintf("%s.%s-v%d.toml", audienceID, date, version))
}

// TimesheetsDir returns the timesheets/ directory.
func (s *Storage) TimesheetsDir() string { return s.faffPath("timesheets") }

// KeyPath returns keys/<name>.toml.
func (s *Storage) KeyPath(name string) string { return s.faffPath("keys", name+".toml") }

// KeysDir returns the keys/ directory.
func (s *Storage) KeysDir() string { return s.faffPath("keys") }

// PluginStatePath returns plugin_state/<instance-id>/.
func (s *Storage) PluginStatePath(instanceID string) string {
	return s.faffPath("plugin_state", instanceID)
}

// ConfigPath returns config.toml.
func (s *Storage) ConfigPath() string { return s.faffPath("config.toml") }

// WriteAtomic writes bytes to a sibling temp file then renames it into
// place, so readers observe either the old bytes or the new bytes, never a
// torn file.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ledgererr.Wrap(ledgererr.RootNotFound, err, "creating %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return ledgererr.Wrap(ledgererr.RootNotFound, err, "creating temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ledgererr.Wrap(ledgererr.RootNotFound, err, "writing temp file %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ledgererr.Wrap(ledgererr.RootNotFound, err, "syncing temp file %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return ledgererr.Wrap(ledgererr.RootNotFound, err, "closing temp file %s", tmpPath)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return ledgererr.Wrap(ledgererr.RootNotFound, err, "chmod temp file %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return ledgererr.Wrap(ledgererr.RootNotFound, err, "renaming %s to %s", tmpPath, path)
	}
	cleanup = false
	return nil
}

// ReadText reads path and sniffs the leading bytes to guard against a
// ledger text file having been corrupted into binary content.
func ReadText(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		head := data
		if len(head) > 8192 {
			head = head[:8192]
		}
		if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
			return nil, ledgererr.New(ledgererr.FileCorrupt, "%s looks like binary content (%s), not a ledger text file", path, kind.MIME.Value)
		}
	}
	return data, nil
}

// LockFor returns an advisory flock.Flock guarding mutations of path. Lock
// ordering across multiple files (Plan before Log before Timesheet before
// Identity) is the caller's responsibility.
func LockFor(path string) *flock.Flock {
	return flock.New(path + ".lock")
}

// WithExclusiveLock acquires an exclusive advisory lock on path's lock file,
// retrying with exponential backoff for up to the given timeout before
// failing LockContention, then runs fn.
func WithExclusiveLock(path string, timeout time.Duration, fn func() error) error {
	lock := LockFor(path)
	deadline := time.Now().Add(timeout)
	delay := 10 * time.Millisecond
	for {
		locked, err := lock.TryLock()
		if err != nil {
			return ledgererr.Wrap(ledgererr.LockContention, err, "could not acquire lock for %s", path)
		}
		if locked {
			break
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ledgererr.New(ledgererr.LockContention, "could not acquire lock for %s within %s", path, timeout)
		}
		if delay > remaining {
			delay = remaining
		}
		time.Sleep(delay)
		delay *= 2
	}
	defer lock.Unlock()
	return fn()
}

// WithSharedLock acquires an advisory shared (read) lock on path's lock
// file, then runs fn.
func WithSharedLock(path string, timeout time.Duration, fn func() error) error {
	lock := LockFor(path)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	locked, err := lock.TryRLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return ledgererr.New(ledgererr.LockContention, "could not acquire read lock for %s within %s", path, timeout)
	}
	defer lock.Unlock()
	return fn()
}
