package supervisor

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// resolveBinary returns an absolute path for the engine binary. Elevation
// helpers reset PATH, so a bare name would not be found after escalation.
func resolveBinary(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("engine binary %q not found: %w", binary, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// shellQuote wraps s in single quotes for POSIX sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// killPattern turns a process name into a pkill -f pattern that does not
// match the command line of pkill or its elevation helper.
func killPattern(name string) string {
	if name == "" || strings.ContainsAny(name[:1], `[\.*^$`) {
		return name
	}
	return "[" + name[:1] + "]" + name[1:]
}

// engineCommand is the sh command line running the engine with its output
// appended to the log.
func engineCommand(binary string, spec LaunchSpec) string {
	return fmt.Sprintf("exec %s run -c %s >>%s 2>&1",
		shellQuote(binary), shellQuote(spec.ConfigPath), shellQuote(spec.LogPath))
}

// startWaiter runs cmd and reports its exit on the returned channel.
func startWaiter(cmd *exec.Cmd) (*Process, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	return &Process{PID: cmd.Process.Pid, Done: done}, nil
}
