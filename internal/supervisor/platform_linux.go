//go:build linux

package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

type linuxPlatform struct{}

// DefaultPlatform runs the engine directly as root, otherwise through
// pkexec, falling back to non-interactive sudo.
func DefaultPlatform() Platform {
	return linuxPlatform{}
}

func (linuxPlatform) Launch(ctx context.Context, spec LaunchSpec) (*Process, error) {
	binary, err := resolveBinary(spec.Binary)
	if err != nil {
		return nil, err
	}
	name, args, err := elevated("sh", "-c", engineCommand(binary, spec))
	if err != nil {
		return nil, err
	}

	// not CommandContext: the engine outlives the request that started it
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return startWaiter(cmd)
}

func (linuxPlatform) Terminate(ctx context.Context, processName string) error {
	name, args, err := elevated("pkill", "-f", killPattern(processName))
	if err != nil {
		return err
	}
	if out, err := exec.CommandContext(ctx, name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("pkill: %w (%s)", err, string(out))
	}
	return nil
}

func elevated(command string, args ...string) (string, []string, error) {
	if os.Geteuid() == 0 {
		return command, args, nil
	}
	if helper, err := exec.LookPath("pkexec"); err == nil {
		return helper, append([]string{command}, args...), nil
	}
	if helper, err := exec.LookPath("sudo"); err == nil {
		return helper, append([]string{"-n", command}, args...), nil
	}
	return "", nil, fmt.Errorf("root privileges required and neither pkexec nor sudo is available")
}
