// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package status

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrDestinationExists is returned when a move would overwrite something.
var ErrDestinationExists = errors.Base("destination already exists")

// 📊 FileStatus is the outcome of one member move
type FileStatus int

const (
	StatusUnknown  FileStatus = iota
	StatusPending             // not attempted yet
	StatusMoved               // moved into the target layout
	StatusSkipped             // left alone by the plan
	StatusFailed              // the move returned an error
	StatusReverted            // moved back to its source
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusMoved:
		return "moved"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// 📄 FileInfo is what the reporter remembers about a path
type FileInfo struct {
	Path   string     // source path of the move
	Dest   string     // destination path of the move
	Status FileStatus // current status
	Error  error      // failure, if any
}

// 💾 FileManager handles all file system operations
type FileManager interface {
	Exists(ctx context.Context, path string) (bool, error)
	Move(ctx context.Context, from, to string) error
	MkdirAll(ctx context.Context, dir string) error
	PruneEmptyDirs(ctx context.Context, dir, stopAt string) error
	RealPath(ctx context.Context, path string) (string, error)

	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFileAtomic(ctx context.Context, path string, content []byte) error
}

// 📈 StatusReporter tracks file status and reports progress
type StatusReporter interface {
	TrackFile(ctx context.Context, info FileInfo)
	GetFileInfo(ctx context.Context, path string) (FileInfo, error)
	ListFiles(ctx context.Context) []FileInfo

	StartOperation(ctx context.Context, name string, total int)
	UpdateProgress(ctx context.Context, processed int)
	FinishOperation(ctx context.Context)
}

// 🔧 Manager implements both FileManager and StatusReporter
type Manager struct {
	logger       *zerolog.Logger
	formatter    FileFormatter
	copyFallback bool

	mu    sync.RWMutex
	files map[string]FileInfo

	operation string
	total     int
	processed int
}

var (
	_ FileManager    = (*Manager)(nil)
	_ StatusReporter = (*Manager)(nil)
)

// Option configures a Manager.
type Option func(*Manager)

// WithCopyFallback enables copy + remove when a rename crosses devices.
func WithCopyFallback(enabled bool) Option {
	return func(m *Manager) { m.copyFallback = enabled }
}

// WithFormatter replaces the default message formatter.
func WithFormatter(f FileFormatter) Option {
	return func(m *Manager) { m.formatter = f }
}

// 🏭 New creates a new status manager
func New(logger *zerolog.Logger, opts ...Option) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	m := &Manager{
		logger:    logger,
		formatter: NewDefaultFileFormatter(),
		files:     make(map[string]FileInfo),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// FileManager interface implementation

func (m *Manager) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, errors.Errorf("checking existence: %w", err)
}

func (m *Manager) MkdirAll(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Errorf("creating directory: %w", err)
	}
	return nil
}

// 🚚 Move renames from to to, creating parents and refusing to overwrite
func (m *Manager) Move(ctx context.Context, from, to string) error {
	exists, err := m.Exists(ctx, to)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("%w: %s", ErrDestinationExists, to)
	}
	if err := m.MkdirAll(ctx, filepath.Dir(to)); err != nil {
		return err
	}

	err = os.Rename(from, to)
	if err == nil {
		return nil
	}
	if !m.copyFallback || !isCrossDevice(err) {
		return errors.Errorf("renaming %s: %w", from, err)
	}

	zerolog.Ctx(ctx).Debug().Str("from", from).Str("to", to).Msg("rename crosses devices, copying")
	if err := copyTree(from, to); err != nil {
		_ = os.RemoveAll(to)
		return errors.Errorf("copying across devices: %w", err)
	}
	if err := os.RemoveAll(from); err != nil {
		return errors.Errorf("removing source after copy: %w", err)
	}
	return nil
}

// PruneEmptyDirs removes dir and its parents while they are empty, stopping
// before stopAt. Errors other than "not empty" are returned.
func (m *Manager) PruneEmptyDirs(ctx context.Context, dir, stopAt string) error {
	dir = filepath.Clean(dir)
	stopAt = filepath.Clean(stopAt)
	for dir != stopAt && within(stopAt, dir) {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			dir = filepath.Dir(dir)
			continue
		}
		if err != nil {
			return errors.Errorf("reading %s: %w", dir, err)
		}
		if len(entries) > 0 {
			return nil
		}
		if err := os.Remove(dir); err != nil {
			return errors.Errorf("removing empty directory: %w", err)
		}
		zerolog.Ctx(ctx).Debug().Str("dir", dir).Msg("pruned empty directory")
		dir = filepath.Dir(dir)
	}
	return nil
}

// RealPath resolves symlinks in the longest existing prefix of path and
// appends the rest unchanged.
func (m *Manager) RealPath(ctx context.Context, path string) (string, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Errorf("making path absolute: %w", err)
	}
	var rest []string
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", errors.Errorf("resolving %s: %w", cur, err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

func (m *Manager) ReadFile(ctx context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading file: %w", err)
	}
	return content, nil
}

// WriteFileAtomic writes through a temp file in the same directory and renames it.
func (m *Manager) WriteFileAtomic(ctx context.Context, path string, content []byte) error {
	if err := m.MkdirAll(ctx, filepath.Dir(path)); err != nil {
		return err
	}
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// StatusReporter interface implementation

func (m *Manager) TrackFile(ctx context.Context, info FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[info.Path] = info
	msg := m.formatter.FormatMove(info.Path, info.Dest, info.Status)
	if info.Error != nil {
		msg = m.formatter.FormatError(info.Error)
	}
	m.logger.Info().Str("path", info.Path).Str("status", info.Status.String()).Msg(msg)
}

func (m *Manager) GetFileInfo(ctx context.Context, path string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[path]
	if !ok {
		return FileInfo{}, errors.Errorf("file not tracked: %s", path)
	}
	return info, nil
}

// ListFiles returns tracked files sorted by path.
func (m *Manager) ListFiles(ctx context.Context) []FileInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]FileInfo, 0, len(m.files))
	for _, info := range m.files {
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

func (m *Manager) StartOperation(ctx context.Context, name string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operation = name
	m.total = total
	m.processed = 0
	m.files = make(map[string]FileInfo)
	m.logger.Info().Str("operation", name).Int("total", total).Msg(m.formatter.FormatProgress(name, 0, total))
}

func (m *Manager) UpdateProgress(ctx context.Context, processed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = processed
	m.logger.Debug().
		Str("operation", m.operation).
		Int("processed", processed).
		Int("total", m.total).
		Msg(m.formatter.FormatProgress(m.operation, processed, m.total))
}

func (m *Manager) FinishOperation(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info().
		Str("operation", m.operation).
		Int("processed", m.processed).
		Int("total", m.total).
		Msg(m.formatter.FormatProgress(m.operation, m.processed, m.total))
}

// Helper functions

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return errors.Is(linkErr.Err, syscall.EXDEV)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return errors.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return copyFile(src, dst, info)
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		fi, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, fi.Mode().Perm()|0700)
		case fi.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(p, target, fi)
		}
	})
}

func copyFile(src, dst string, info fs.FileInfo) error {
	source, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening source file: %w", err)
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}
	destination, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return errors.Errorf("creating destination file: %w", err)
	}

	if _, err := io.Copy(destination, source); err != nil {
		destination.Close()
		return errors.Errorf("copying file: %w", err)
	}
	if err := destination.Close(); err != nil {
		return errors.Errorf("closing destination file: %w", err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
