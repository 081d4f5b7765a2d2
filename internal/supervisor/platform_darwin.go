//go:build darwin

package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type darwinPlatform struct{}

// DefaultPlatform elevates through the administrator prompt of osascript.
func DefaultPlatform() Platform {
	return darwinPlatform{}
}

func (darwinPlatform) Launch(ctx context.Context, spec LaunchSpec) (*Process, error) {
	binary, err := resolveBinary(spec.Binary)
	if err != nil {
		return nil, err
	}
	// backgrounded so osascript returns once the prompt is accepted
	script := fmt.Sprintf("%s run -c %s >>%s 2>&1 &",
		shellQuote(binary), shellQuote(spec.ConfigPath), shellQuote(spec.LogPath))
	if err := runAsAdministrator(ctx, script); err != nil {
		return nil, err
	}
	return &Process{}, nil
}

func (darwinPlatform) Terminate(ctx context.Context, processName string) error {
	return runAsAdministrator(ctx, "pkill -f "+shellQuote(killPattern(processName)))
}

func runAsAdministrator(ctx context.Context, script string) error {
	apple := fmt.Sprintf(`do shell script "%s" with administrator privileges`, appleScriptEscape(script))
	out, err := exec.CommandContext(ctx, "osascript", "-e", apple).CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
