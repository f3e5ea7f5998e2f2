package inject

import (
	"context"

	"go.viam.com/grasping/components/arm"
	"go.viam.com/grasping/motionplan"
)

// Arm is an injected arm.
type Arm struct {
	arm.Arm
	NameFunc            func() string
	GoToNamedTargetFunc func(ctx context.Context, target string, opts motionplan.MoveOptions) (bool, error)
	StopFunc            func(ctx context.Context) error
	IsMovingFunc        func(ctx context.Context) (bool, error)
}

// Name calls the injected Name or the real version.
func (a *Arm) Name() string {
	if a.NameFunc == nil {
		if a.Arm == nil {
			return "manipulator"
		}
		return a.Arm.Name()
	}
	return a.NameFunc()
}

// GoToNamedTarget calls the injected GoToNamedTarget or the real version.
func (a *Arm) GoToNamedTarget(ctx context.Context, target string, opts motionplan.MoveOptions) (bool, error) {
	if a.GoToNamedTargetFunc == nil {
		return a.Arm.GoToNamedTarget(ctx, target, opts)
	}
	return a.GoToNamedTargetFunc(ctx, target, opts)
}

// Stop calls the injected Stop or the real version.
func (a *Arm) Stop(ctx context.Context) error {
	if a.StopFunc == nil {
		return a.Arm.Stop(ctx)
	}
	return a.StopFunc(ctx)
}

// IsMoving calls the injected IsMoving or the real version.
func (a *Arm) IsMoving(ctx context.Context) (bool, error) {
	if a.IsMovingFunc == nil {
		return a.Arm.IsMoving(ctx)
	}
	return a.IsMovingFunc(ctx)
}
