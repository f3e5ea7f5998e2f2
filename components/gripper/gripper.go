// Package gripper defines the end effector of the manipulator.
package gripper

import (
	"context"

	"go.viam.com/grasping/motionplan"
)

// A Gripper represents a physical robotic gripper.
type Gripper interface {
	// Name is the gripper's planning group.
	Name() string

	// Open opens the gripper.
	Open(ctx context.Context, opts motionplan.MoveOptions) (bool, error)

	// Grab closes the gripper.
	Grab(ctx context.Context, opts motionplan.MoveOptions) (bool, error)

	// Stop stops the gripper. It is assumed the gripper stops immediately.
	Stop(ctx context.Context) error

	// IsMoving returns whether the gripper is moving.
	IsMoving(ctx context.Context) (bool, error)
}
