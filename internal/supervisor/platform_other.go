//go:build !linux && !darwin && !windows

package supervisor

import (
	"context"
	"fmt"
	"runtime"
)

type unsupportedPlatform struct{}

func DefaultPlatform() Platform {
	return unsupportedPlatform{}
}

func (unsupportedPlatform) Launch(context.Context, LaunchSpec) (*Process, error) {
	return nil, fmt.Errorf("launching the engine is not supported on %s", runtime.GOOS)
}

func (unsupportedPlatform) Terminate(context.Context, string) error {
	return fmt.Errorf("terminating the engine is not supported on %s", runtime.GOOS)
}
