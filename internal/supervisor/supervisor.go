package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shieldline/internal/logger"
	"shieldline/internal/singbox"
	"shieldline/internal/tailer"
)

var (
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
)

type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

const (
	defaultTailInterval = 300 * time.Millisecond
	eventBuffer         = 64
)

// LaunchSpec is what a Platform needs to start the engine.
type LaunchSpec struct {
	Binary     string
	ConfigPath string
	LogPath    string
}

// Process is a launched engine. Done, when set, receives once when the
// launcher child exits.
type Process struct {
	PID  int
	Done <-chan error
}

// Platform starts and kills the engine with elevated privileges.
type Platform interface {
	Launch(ctx context.Context, spec LaunchSpec) (*Process, error)
	Terminate(ctx context.Context, processName string) error
}

// Plan describes one engine start.
type Plan struct {
	Binary       string
	ProcessName  string
	ConfigPath   string
	LogPath      string
	Config       *singbox.Config
	TailInterval time.Duration
	// Grace is how long Start waits for an immediate exit of a tracked
	// launcher (declined elevation, bad config) before reporting success.
	Grace time.Duration
}

type Supervisor struct {
	platform Platform

	mu          sync.Mutex
	state       State
	processName string
	cancelTail  context.CancelFunc
	generation  uint64

	events chan tailer.Batch

	// OnExit is called, without the lock held, when a tracked engine exits
	// on its own.
	OnExit func(err error)
}

func New(platform Platform) *Supervisor {
	return &Supervisor{
		platform: platform,
		events:   make(chan tailer.Batch, eventBuffer),
	}
}

// Events delivers log batches from the running engine. The channel is
// shared by all sessions and never closed.
func (s *Supervisor) Events() <-chan tailer.Batch {
	return s.events
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Running
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start writes the engine config, launches the engine and begins tailing
// its log. The lock is held for the whole sequence so a concurrent Start
// observes either Stopped or Running.
func (s *Supervisor) Start(ctx context.Context, plan Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return ErrAlreadyRunning
	}
	if plan.Config == nil {
		return fmt.Errorf("no engine config to write")
	}

	if err := resetLog(plan.LogPath); err != nil {
		return err
	}
	if err := plan.Config.WriteFile(plan.ConfigPath); err != nil {
		return err
	}

	logger.Log.Debugf("Launching %s with %s", plan.Binary, plan.ConfigPath)
	proc, err := s.platform.Launch(ctx, LaunchSpec{
		Binary:     plan.Binary,
		ConfigPath: plan.ConfigPath,
		LogPath:    plan.LogPath,
	})
	if err != nil {
		return fmt.Errorf("failed to launch engine: %w", err)
	}

	var done <-chan error
	if proc != nil {
		done = proc.Done
	}
	if done != nil && plan.Grace > 0 {
		select {
		case exitErr := <-done:
			if exitErr != nil {
				return fmt.Errorf("engine exited during startup: %w", exitErr)
			}
			return fmt.Errorf("engine exited during startup")
		case <-time.After(plan.Grace):
		case <-ctx.Done():
			s.abortLaunch(plan.ProcessName)
			return ctx.Err()
		}
	}

	s.state = Running
	s.processName = plan.ProcessName
	s.generation++
	gen := s.generation

	interval := plan.TailInterval
	if interval <= 0 {
		interval = defaultTailInterval
	}
	tailCtx, cancel := context.WithCancel(context.Background())
	s.cancelTail = cancel
	go tailer.Run(tailCtx, plan.LogPath, interval, s.emit)

	if done != nil {
		go s.watch(gen, done)
	}

	if proc != nil && proc.PID > 0 {
		logger.Log.Infof("Engine started (pid %d)", proc.PID)
	} else {
		logger.Log.Info("Engine started")
	}
	return nil
}

// abortLaunch kills an engine launched by a Start that is about to fail.
func (s *Supervisor) abortLaunch(processName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.platform.Terminate(ctx, processName); err != nil {
		logger.Log.Warnf("Terminating aborted launch of %s failed: %v", processName, err)
	}
}

// Stop kills the engine by name. A failed kill is logged and the state
// still becomes Stopped.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		return ErrNotRunning
	}

	if err := s.platform.Terminate(ctx, s.processName); err != nil {
		logger.Log.Warnf("Terminating %s failed: %v", s.processName, err)
	}
	s.toStopped()
	logger.Log.Info("Engine stopped")
	return nil
}

// Adopt marks an engine started by an earlier invocation as running so it
// can be stopped.
func (s *Supervisor) Adopt(processName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return ErrAlreadyRunning
	}
	s.state = Running
	s.processName = processName
	s.generation++
	return nil
}

// toStopped must be called with mu held.
func (s *Supervisor) toStopped() {
	s.state = Stopped
	s.generation++
	if s.cancelTail != nil {
		s.cancelTail()
		s.cancelTail = nil
	}
}

func (s *Supervisor) watch(gen uint64, done <-chan error) {
	err := <-done

	s.mu.Lock()
	if s.generation != gen || s.state != Running {
		s.mu.Unlock()
		return
	}
	s.toStopped()
	s.mu.Unlock()

	if err != nil {
		logger.Log.Warnf("Engine exited: %v", err)
	} else {
		logger.Log.Info("Engine exited")
	}
	if s.OnExit != nil {
		s.OnExit(err)
	}
}

func (s *Supervisor) emit(b tailer.Batch) {
	select {
	case s.events <- b:
	default:
		logger.Log.Debugf("Dropping %d log lines, no reader", len(b.Lines))
	}
}

func resetLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to truncate log file: %w", err)
	}
	return f.Close()
}
