package segmentmanager

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupDiskTests(t *testing.T, options ...Option) (sm *diskSegmentManager, dir string) {
	dir = t.TempDir()
	sm, err := NewDiskSegmentManager(dir, options...)
	if err != nil {
		t.Fatal("failed to create disk segment manager", err)
	}
	return sm, dir
}

func TestWithOptionInitializers(t *testing.T) {
	sm, _ := setupDiskTests(t, WithLogFileExt(".dog"), WithMaxSegmentSize(10))

	if sm.logFileExt != ".dog" {
		t.Fatal("expected .dog", "got", sm.logFileExt)
	}
	if sm.maxSegmentSize != 10 {
		t.Fatal("expected 10", "got", sm.maxSegmentSize)
	}
}

func TestInitializeEmptyDirDiskSegmentManager(t *testing.T) {
	sm, dir := setupDiskTests(t)

	if sm.activeID != 1 {
		t.Fatal("active id not set")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatal("expected one entry", "got", len(entries))
	}
	if entries[0].Name() != "segment-0001.log" {
		t.Fatal("expected segment-0001.log", "got", entries[0].Name())
	}
}

func TestExistingDirDiskSegmentManager(t *testing.T) {
	dir := t.TempDir()
	sm, err := NewDiskSegmentManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	sm.Close()

	sm2, err := NewDiskSegmentManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if sm2.activeID != 1 {
		t.Fatal("active id not resumed")
	}
	if !strings.Contains(sm2.active.Name(), "segment-0001.log") {
		t.Fatal("expected segment-0001.log", "got", sm2.active.Name())
	}
}

func TestDiskWriteWithoutRotation(t *testing.T) {
	sm, dir := setupDiskTests(t, WithMaxSegmentSize(100))

	err := sm.Write(8, func(w io.Writer) {
		_, _ = fmt.Fprint(w, "whats up")
	})
	if err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "segment-0001.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "whats up" {
		t.Fatal("expected whats up", "got", string(content))
	}
}

func TestDiskWriteWithRotation(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		iterations     int
		maxSegmentSize int
		expectedFiles  int
	}{
		{"2 writes per file", "hello", 50, 10, 25},
		{"content size greater than half", "hello", 50, 8, 50},
		{"content size equal to max segment size", "hello", 50, 5, 50},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sm, dir := setupDiskTests(t, WithMaxSegmentSize(int64(test.maxSegmentSize)))

			for i := 0; i < test.iterations; i++ {
				err := sm.Write(len(test.content), func(w io.Writer) {
					_, _ = fmt.Fprint(w, test.content)
				})
				if err != nil {
					t.Fatal(err)
				}
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != test.expectedFiles {
				t.Fatal("expected", test.expectedFiles, "got", len(entries))
			}
		})
	}
}

func TestActiveReturnsWriterDirectly(t *testing.T) {
	sm, dir := setupDiskTests(t, WithMaxSegmentSize(100))

	w, err := sm.Active(8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fmt.Fprint(w, "whats up"); err != nil {
		t.Fatal(err)
	}
	if err := sm.Sync(); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "segment-0001.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "whats up" {
		t.Fatal("expected whats up", "got", string(content))
	}
}

func TestSegmentsListsOrderedPaths(t *testing.T) {
	sm, dir := setupDiskTests(t, WithMaxSegmentSize(5))

	for i := 0; i < 3; i++ {
		if err := sm.Write(5, func(w io.Writer) {
			_, _ = fmt.Fprint(w, "hello")
		}); err != nil {
			t.Fatal(err)
		}
	}

	segments, err := sm.Segments()
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i, p := range segments {
		want := filepath.Join(dir, fmt.Sprintf("segment-%04d.log", i+1))
		if p != want {
			t.Fatalf("segment %d: got %s want %s", i, p, want)
		}
	}
}
