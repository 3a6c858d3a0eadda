// Package segmentmanager provides rotating on-disk log segments. Callers see
// only Active/Write to obtain the current segment to append to and Segments
// to enumerate the full ordered history; rotation past a size budget is
// handled internally. This backs the WAL's durable append path.
package segmentmanager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

const (
	defaultMaxSegmentSize = 16 * 1024 * 1024
	defaultLogFileExt     = ".log"
)

var segmentFileNamePattern = regexp.MustCompile(`^segment-(\d+)$`)

// Manager exposes the active segment for appends and lets callers enumerate
// the ordered segment history for replay.
type Manager interface {
	Active(n int) (io.Writer, error)
	Write(n int, fn func(w io.Writer)) error
	Sync() error
	RotateSegment() error
	Segments() ([]string, error)
	Close() error
}

type segmentEntry struct {
	id   int
	name string
}

// segmentEntries sorts by ascending segment id.
type segmentEntries []segmentEntry

func (a segmentEntries) Len() int           { return len(a) }
func (a segmentEntries) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a segmentEntries) Less(i, j int) bool { return a[i].id < a[j].id }

type diskSegmentManager struct {
	mu             sync.Mutex
	active         *os.File
	activeID       int
	dir            string
	logFileExt     string
	maxSegmentSize int64
}

// Option configures a DiskSegmentManager.
type Option func(sm *diskSegmentManager)

// WithMaxSegmentSize overrides the rotation threshold in bytes.
func WithMaxSegmentSize(maxSegmentSize int64) Option {
	return func(sm *diskSegmentManager) { sm.maxSegmentSize = maxSegmentSize }
}

// WithLogFileExt overrides the segment file extension.
func WithLogFileExt(ext string) Option {
	return func(sm *diskSegmentManager) { sm.logFileExt = ext }
}

func isDirectoryValid(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("path exists but is not a directory: %s", path)
	}
	return err
}

// NewDiskSegmentManager opens dir, resuming the latest segment if one
// exists, or creating the directory and the first segment otherwise.
func NewDiskSegmentManager(dir string, options ...Option) (*diskSegmentManager, error) {
	sm := &diskSegmentManager{
		dir:            dir,
		logFileExt:     defaultLogFileExt,
		maxSegmentSize: defaultMaxSegmentSize,
	}
	for _, option := range options {
		option(sm)
	}

	if err := isDirectoryValid(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return sm, sm.RotateSegment()
	}

	entries, err := sm.readSegmentEntries()
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return sm, sm.RotateSegment()
	}

	sort.Sort(entries)
	if !validateSegmentEntries(entries) {
		return nil, errors.New("segmentmanager: segment ids are not contiguous from 1")
	}

	sm.activeID = entries[len(entries)-1].id
	activeFile, err := os.OpenFile(sm.idToPath(sm.activeID), os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("segmentmanager: open active segment: %w", err)
	}
	sm.active = activeFile

	return sm, nil
}

func (s *diskSegmentManager) readSegmentEntries() (segmentEntries, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var entries segmentEntries
	for _, e := range dirEntries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != s.logFileExt {
			continue
		}
		stem := e.Name()[:len(e.Name())-len(s.logFileExt)]
		matches := segmentFileNamePattern.FindStringSubmatch(stem)
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		entries = append(entries, segmentEntry{id: id, name: e.Name()})
	}
	return entries, nil
}

func validateSegmentEntries(entries segmentEntries) bool {
	for i, e := range entries {
		if e.id != i+1 {
			return false
		}
	}
	return true
}

func (s *diskSegmentManager) idToPath(id int) string {
	return filepath.Join(s.dir, fmt.Sprintf("segment-%04d%s", id, s.logFileExt))
}

// RotateSegment closes the active segment, if any, and opens the next one.
func (s *diskSegmentManager) RotateSegment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotateLocked()
}

func (s *diskSegmentManager) rotateLocked() error {
	if s.active != nil {
		if err := s.active.Close(); err != nil {
			return fmt.Errorf("segmentmanager: close previous segment: %w", err)
		}
	}

	s.activeID++
	file, err := os.Create(s.idToPath(s.activeID))
	if err != nil {
		return err
	}
	s.active = file
	return nil
}

// Active returns the current segment file, rotating first if appending n
// more bytes would exceed the size budget.
func (s *diskSegmentManager) Active(n int) (io.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(n)
}

func (s *diskSegmentManager) activeLocked(n int) (*os.File, error) {
	if int64(n) > s.maxSegmentSize {
		return nil, fmt.Errorf("segmentmanager: entry of %d bytes exceeds max segment size %d", n, s.maxSegmentSize)
	}
	if s.active == nil {
		return nil, fmt.Errorf("segmentmanager: active segment not initialized")
	}

	stat, err := s.active.Stat()
	if err != nil {
		return nil, fmt.Errorf("segmentmanager: stat active segment: %w", err)
	}
	if stat.Size()+int64(n) > s.maxSegmentSize {
		if err := s.rotateLocked(); err != nil {
			return nil, fmt.Errorf("segmentmanager: rotate segment: %w", err)
		}
	}
	return s.active, nil
}

// Write runs fn against the active segment (rotating first if needed) and
// fsyncs before returning, so callers observe a durable append.
func (s *diskSegmentManager) Write(n int, fn func(w io.Writer)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.activeLocked(n)
	if err != nil {
		return err
	}

	fn(active)

	if err := active.Sync(); err != nil {
		return fmt.Errorf("segmentmanager: sync active segment: %w", err)
	}
	return nil
}

// Sync fsyncs the active segment.
func (s *diskSegmentManager) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return fmt.Errorf("segmentmanager: active segment not initialized")
	}
	if err := s.active.Sync(); err != nil {
		return fmt.Errorf("segmentmanager: sync active segment: %w", err)
	}
	return nil
}

// Segments returns the ordered paths of every segment file, oldest first,
// including the active one — the replay order the WAL reader walks.
func (s *diskSegmentManager) Segments() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readSegmentEntries()
	if err != nil {
		return nil, err
	}
	sort.Sort(entries)

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = filepath.Join(s.dir, e.name)
	}
	return paths, nil
}

// Close closes the active segment.
func (s *diskSegmentManager) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	if err := s.active.Close(); err != nil {
		return fmt.Errorf("segmentmanager: close active segment: %w", err)
	}
	return nil
}
