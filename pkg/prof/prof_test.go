package prof

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/muge/pkg"
)

func nonEmpty(t *testing.T, path string) {
	t.Helper()
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if fi.Size() == 0 {
		t.Errorf("%s is empty", path)
	}
}

func TestSession(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPU:       filepath.Join(dir, "cpu.prof"),
		Heap:      filepath.Join(dir, "heap.prof"),
		Goroutine: filepath.Join(dir, "goroutine.prof"),
		Block:     filepath.Join(dir, "block.prof"),
		Mutex:     filepath.Join(dir, "mutex.prof"),
	}
	if !opts.Enabled() {
		t.Fatal("Enabled() = false, want true")
	}

	s, err := Start(opts)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	for _, p := range []string{opts.CPU, opts.Heap, opts.Goroutine, opts.Block, opts.Mutex} {
		nonEmpty(t, p)
	}

	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestSessionDisabled(t *testing.T) {
	if (Options{}).Enabled() {
		t.Error("zero Options enabled")
	}
	s, err := Start(Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	var nilSession *Session
	if err := nilSession.Stop(); err != nil {
		t.Errorf("nil Stop() error = %v", err)
	}
}

func TestCPUProfileExclusive(t *testing.T) {
	dir := t.TempDir()
	s, err := Start(Options{CPU: filepath.Join(dir, "a.prof")})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if _, err := Start(Options{CPU: filepath.Join(dir, "b.prof")}); !errors.Is(err, ErrCPUProfileActive) {
		t.Errorf("second Start() error = %v, want ErrCPUProfileActive", err)
	}
}

func TestStartInvalidPath(t *testing.T) {
	if _, err := Start(Options{CPU: "/nonexistent/directory/cpu.prof"}); err == nil {
		t.Error("Start() error = nil, want error for invalid path")
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")
	if err := Write(ProfileHeap, path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	nonEmpty(t, path)

	if err := Write("bogus", path); !errors.Is(err, pkg.ErrInvalidArgument) {
		t.Errorf("Write(bogus) error = %v, want ErrInvalidArgument", err)
	}
}
