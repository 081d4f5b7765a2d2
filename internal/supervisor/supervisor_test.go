package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"shieldline/internal/model"
	"shieldline/internal/singbox"
)

type fakePlatform struct {
	mu          sync.Mutex
	launches    []LaunchSpec
	terminated  []string
	launchErr   error
	terminateEr error
	done        chan error
	onLaunch    func(spec LaunchSpec)
}

func (f *fakePlatform) Launch(ctx context.Context, spec LaunchSpec) (*Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	f.launches = append(f.launches, spec)
	if f.onLaunch != nil {
		f.onLaunch(spec)
	}
	p := &Process{PID: 4242}
	if f.done != nil {
		p.Done = f.done
	}
	return p, nil
}

func (f *fakePlatform) Terminate(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, name)
	return f.terminateEr
}

func (f *fakePlatform) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

func testPlan(t *testing.T) Plan {
	dir := t.TempDir()
	proxy := singbox.SOCKSOutbound{Server: "1.2.3.4", ServerPort: 1080, Version: "5"}
	return Plan{
		Binary:       "sing-box",
		ProcessName:  "sing-box",
		ConfigPath:   filepath.Join(dir, "cache", "config.json"),
		LogPath:      filepath.Join(dir, "logs", "session.log"),
		Config:       singbox.Synthesize(proxy, model.DefaultSettings(), singbox.Options{}),
		TailInterval: 10 * time.Millisecond,
	}
}

func TestStartTwiceFails(t *testing.T) {
	fp := &fakePlatform{}
	sv := New(fp)
	plan := testPlan(t)

	if err := sv.Start(context.Background(), plan); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if !sv.Running() {
		t.Fatalf("expected running after start")
	}

	if err := os.Remove(plan.ConfigPath); err != nil {
		t.Fatalf("config not written by first start: %v", err)
	}
	err := sv.Start(context.Background(), plan)
	if !errors.Is(err, ErrAlreadyRunning) || err.Error() != "already running" {
		t.Fatalf("expected already running, got %v", err)
	}
	if _, statErr := os.Stat(plan.ConfigPath); !os.IsNotExist(statErr) {
		t.Fatalf("rejected start must not write the config")
	}
	if fp.launchCount() != 1 {
		t.Fatalf("expected a single launch, got %d", fp.launchCount())
	}
	sv.Stop(context.Background())
}

func TestStopWhenStopped(t *testing.T) {
	sv := New(&fakePlatform{})
	err := sv.Stop(context.Background())
	if !errors.Is(err, ErrNotRunning) || err.Error() != "not running" {
		t.Fatalf("expected not running, got %v", err)
	}
}

func TestStopAlwaysReachesStopped(t *testing.T) {
	fp := &fakePlatform{terminateEr: errors.New("pkill: exit status 1")}
	sv := New(fp)
	if err := sv.Start(context.Background(), testPlan(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := sv.Stop(context.Background()); err != nil {
		t.Fatalf("terminate failure must not fail stop: %v", err)
	}
	if sv.Running() {
		t.Fatalf("expected stopped")
	}
	if len(fp.terminated) != 1 || fp.terminated[0] != "sing-box" {
		t.Fatalf("unexpected terminate calls: %v", fp.terminated)
	}
	if err := sv.Start(context.Background(), testPlan(t)); err != nil {
		t.Fatalf("restart after stop failed: %v", err)
	}
	sv.Stop(context.Background())
}

func TestLaunchFailureLeavesStopped(t *testing.T) {
	fp := &fakePlatform{launchErr: errors.New("elevation declined")}
	sv := New(fp)
	err := sv.Start(context.Background(), testPlan(t))
	if err == nil || !strings.Contains(err.Error(), "elevation declined") {
		t.Fatalf("expected launch error, got %v", err)
	}
	if sv.Running() {
		t.Fatalf("failed launch must leave state stopped")
	}
}

func TestStartTruncatesLogAndWritesConfig(t *testing.T) {
	plan := testPlan(t)
	os.MkdirAll(filepath.Dir(plan.LogPath), 0755)
	os.WriteFile(plan.LogPath, []byte("previous session\n"), 0644)

	sv := New(&fakePlatform{})
	if err := sv.Start(context.Background(), plan); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sv.Stop(context.Background())

	data, err := os.ReadFile(plan.LogPath)
	if err != nil || len(data) != 0 {
		t.Fatalf("expected truncated log, got %q (%v)", data, err)
	}
	cfg, err := os.ReadFile(plan.ConfigPath)
	if err != nil || !strings.Contains(string(cfg), `"tag": "proxy"`) {
		t.Fatalf("unexpected engine config: %s (%v)", cfg, err)
	}
}

func TestEventsFromLog(t *testing.T) {
	fp := &fakePlatform{onLaunch: func(spec LaunchSpec) {
		os.WriteFile(spec.LogPath, []byte("\x1b[36mINFO\x1b[0m sing-box started\n"), 0644)
	}}
	sv := New(fp)
	if err := sv.Start(context.Background(), testPlan(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sv.Stop(context.Background())

	select {
	case b := <-sv.Events():
		if len(b.Lines) != 1 || b.Lines[0] != "INFO sing-box started" {
			t.Fatalf("unexpected batch: %#v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no log batch received")
	}
}

func TestProcessExitStops(t *testing.T) {
	done := make(chan error, 1)
	fp := &fakePlatform{done: done}
	sv := New(fp)

	exited := make(chan error, 1)
	sv.OnExit = func(err error) { exited <- err }

	if err := sv.Start(context.Background(), testPlan(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	done <- errors.New("exit status 1")

	select {
	case err := <-exited:
		if err == nil {
			t.Fatalf("expected exit error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("exit not observed")
	}
	if sv.Running() {
		t.Fatalf("expected stopped after exit")
	}
	if err := sv.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected not running, got %v", err)
	}
}

func TestImmediateExitIsLaunchFailure(t *testing.T) {
	done := make(chan error, 1)
	done <- errors.New("exit status 126")
	sv := New(&fakePlatform{done: done})

	plan := testPlan(t)
	plan.Grace = 200 * time.Millisecond
	err := sv.Start(context.Background(), plan)
	if err == nil || !strings.Contains(err.Error(), "126") {
		t.Fatalf("expected startup exit error, got %v", err)
	}
	if sv.Running() {
		t.Fatalf("expected stopped")
	}
}

func TestCancelDuringGraceTerminates(t *testing.T) {
	fp := &fakePlatform{done: make(chan error)}
	sv := New(fp)

	plan := testPlan(t)
	plan.Grace = 2 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sv.Start(ctx, plan); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if sv.Running() {
		t.Fatalf("expected stopped after cancelled start")
	}
	fp.mu.Lock()
	terminated := append([]string(nil), fp.terminated...)
	fp.mu.Unlock()
	if len(terminated) != 1 || terminated[0] != "sing-box" {
		t.Fatalf("launched engine was not terminated: %v", terminated)
	}

	fp.mu.Lock()
	fp.done = nil
	fp.mu.Unlock()
	if err := sv.Start(context.Background(), plan); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if fp.launchCount() != 2 {
		t.Fatalf("expected two launches, got %d", fp.launchCount())
	}
	sv.Stop(context.Background())
}

func TestAdoptThenStop(t *testing.T) {
	fp := &fakePlatform{}
	sv := New(fp)
	if err := sv.Adopt("sing-box"); err != nil {
		t.Fatalf("adopt failed: %v", err)
	}
	if err := sv.Adopt("sing-box"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected already running, got %v", err)
	}
	if err := sv.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if len(fp.terminated) != 1 {
		t.Fatalf("expected terminate call")
	}
}

func TestConcurrentStartsLaunchOnce(t *testing.T) {
	fp := &fakePlatform{}
	sv := New(fp)
	plan := testPlan(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, rejected int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sv.Start(context.Background(), plan)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyRunning):
				rejected++
			}
		}()
	}
	wg.Wait()
	if ok != 1 || rejected != 7 || fp.launchCount() != 1 {
		t.Fatalf("ok=%d rejected=%d launches=%d", ok, rejected, fp.launchCount())
	}
	sv.Stop(context.Background())
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Fatalf("unexpected quoting: %s", got)
	}
	cmd := engineCommand("/usr/bin/sing-box", LaunchSpec{ConfigPath: "/tmp/a b/config.json", LogPath: "/tmp/log"})
	want := `exec '/usr/bin/sing-box' run -c '/tmp/a b/config.json' >>'/tmp/log' 2>&1`
	if cmd != want {
		t.Fatalf("unexpected command:\n%s\nwant\n%s", cmd, want)
	}
}

func TestKillPattern(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"sing-box", "[s]ing-box"},
		{"x", "[x]"},
		{"", ""},
		{".hidden", ".hidden"},
	} {
		if got := killPattern(tc.in); got != tc.want {
			t.Fatalf("killPattern(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
