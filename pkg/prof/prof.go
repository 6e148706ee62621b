package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/ardnew/muge/pkg"
)

// ErrCPUProfileActive indicates another session already owns the CPU profiler.
var ErrCPUProfileActive = errors.New("cpu profile already active")

// Profile names a runtime/pprof profile.
type Profile string

// Snapshot profiles written by Stop.
const (
	ProfileHeap      Profile = "heap"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

func (p Profile) String() string {
	return string(p)
}

// Options selects the output file of each profile.
type Options struct {
	CPU       string
	Heap      string
	Goroutine string
	Block     string
	Mutex     string
}

// Enabled reports whether any profile is requested.
func (o Options) Enabled() bool {
	return o != Options{}
}

// Session is an active profiling run.
type Session struct {
	opts    Options
	cpuFile *os.File
}

var (
	cpuMutex  sync.Mutex
	cpuActive bool
)

// Start begins the profiles selected by opts. A zero Options yields a
// session whose Stop does nothing.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}
	if opts.CPU != "" {
		if err := s.startCPU(); err != nil {
			return nil, err
		}
	}
	if opts.Block != "" {
		runtime.SetBlockProfileRate(1)
	}
	if opts.Mutex != "" {
		runtime.SetMutexProfileFraction(1)
	}
	pkg.LogDebug(pkg.ComponentCLI, "profiling started", "cpu", opts.CPU)
	return s, nil
}

func (s *Session) startCPU() error {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	if cpuActive {
		return ErrCPUProfileActive
	}
	f, err := os.Create(s.opts.CPU)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	s.cpuFile = f
	cpuActive = true
	return nil
}

// Stop ends the CPU profile and writes every requested snapshot profile.
// It returns all errors encountered; Stop is safe to call more than once.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.cpuFile != nil {
		cpuMutex.Lock()
		pprof.StopCPUProfile()
		cpuActive = false
		cpuMutex.Unlock()
		errs = append(errs, s.cpuFile.Close())
		s.cpuFile = nil
	}

	for _, w := range []struct {
		p    Profile
		path string
	}{
		{ProfileHeap, s.opts.Heap},
		{ProfileGoroutine, s.opts.Goroutine},
		{ProfileBlock, s.opts.Block},
		{ProfileMutex, s.opts.Mutex},
	} {
		if w.path != "" {
			errs = append(errs, Write(w.p, w.path))
		}
	}
	if s.opts.Block != "" {
		runtime.SetBlockProfileRate(0)
	}
	if s.opts.Mutex != "" {
		runtime.SetMutexProfileFraction(0)
	}
	s.opts = Options{}
	return errors.Join(errs...)
}

// Write saves a snapshot of profile p to path.
func Write(p Profile, path string) error {
	prof := pprof.Lookup(string(p))
	if prof == nil {
		return fmt.Errorf("%w: profile %q", pkg.ErrInvalidArgument, p)
	}
	if p == ProfileHeap {
		runtime.GC()
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := prof.WriteTo(f, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
