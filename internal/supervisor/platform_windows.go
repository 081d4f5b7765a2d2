//go:build windows

package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

type windowsPlatform struct{}

// DefaultPlatform elevates through a UAC prompt raised by PowerShell.
func DefaultPlatform() Platform {
	return windowsPlatform{}
}

func (windowsPlatform) Launch(ctx context.Context, spec LaunchSpec) (*Process, error) {
	binary, err := resolveBinary(spec.Binary)
	if err != nil {
		return nil, err
	}
	// cmd strips the outer quote pair when the line starts with one
	line := fmt.Sprintf(`/c ""%s" run -c "%s" >> "%s" 2>&1"`, binary, spec.ConfigPath, spec.LogPath)
	ps := fmt.Sprintf("Start-Process -FilePath 'cmd.exe' -ArgumentList %s -Verb RunAs -WindowStyle Hidden",
		psQuote(line))
	if err := powershell(ctx, ps); err != nil {
		return nil, err
	}
	return &Process{}, nil
}

func (windowsPlatform) Terminate(ctx context.Context, processName string) error {
	image := processName
	if !strings.HasSuffix(strings.ToLower(image), ".exe") {
		image += ".exe"
	}
	cmd := exec.CommandContext(ctx, "taskkill", "/F", "/IM", image)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if err := cmd.Run(); err == nil {
		return nil
	}
	// an elevated engine can only be killed from an elevated process
	ps := fmt.Sprintf("Start-Process -FilePath 'taskkill' -ArgumentList %s -Verb RunAs -WindowStyle Hidden -Wait",
		psQuote("/F /IM "+image))
	return powershell(ctx, ps)
}

func powershell(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("powershell: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
