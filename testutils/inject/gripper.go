package inject

import (
	"context"

	"go.viam.com/grasping/components/gripper"
	"go.viam.com/grasping/motionplan"
)

// Gripper is an injected gripper.
type Gripper struct {
	gripper.Gripper
	NameFunc     func() string
	OpenFunc     func(ctx context.Context, opts motionplan.MoveOptions) (bool, error)
	GrabFunc     func(ctx context.Context, opts motionplan.MoveOptions) (bool, error)
	StopFunc     func(ctx context.Context) error
	IsMovingFunc func(ctx context.Context) (bool, error)
}

// Name calls the injected Name or the real version.
func (g *Gripper) Name() string {
	if g.NameFunc == nil {
		if g.Gripper == nil {
			return "gripper"
		}
		return g.Gripper.Name()
	}
	return g.NameFunc()
}

// Open calls the injected Open or the real version.
func (g *Gripper) Open(ctx context.Context, opts motionplan.MoveOptions) (bool, error) {
	if g.OpenFunc == nil {
		return g.Gripper.Open(ctx, opts)
	}
	return g.OpenFunc(ctx, opts)
}

// Grab calls the injected Grab or the real version.
func (g *Gripper) Grab(ctx context.Context, opts motionplan.MoveOptions) (bool, error) {
	if g.GrabFunc == nil {
		return g.Gripper.Grab(ctx, opts)
	}
	return g.GrabFunc(ctx, opts)
}

// Stop calls the injected Stop or the real version.
func (g *Gripper) Stop(ctx context.Context) error {
	if g.StopFunc == nil {
		return g.Gripper.Stop(ctx)
	}
	return g.StopFunc(ctx)
}

// IsMoving calls the injected IsMoving or the real version.
func (g *Gripper) IsMoving(ctx context.Context) (bool, error) {
	if g.IsMovingFunc == nil {
		return g.Gripper.IsMoving(ctx)
	}
	return g.IsMovingFunc(ctx)
}
