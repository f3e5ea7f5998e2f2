// Package arm defines the arm controller of the manipulator.
package arm

import (
	"context"

	"go.viam.com/grasping/motionplan"
)

// An Arm represents a physical robotic arm that can be driven to predefined joint
// configurations.
type Arm interface {
	// Name is the arm's planning group.
	Name() string

	// GoToNamedTarget plans from the current state to the named target and executes the plan,
	// blocking until the motion finishes. A target that cannot be reached is false, not an error.
	GoToNamedTarget(ctx context.Context, target string, opts motionplan.MoveOptions) (bool, error)

	// Stop stops the arm. It is assumed the arm stops immediately.
	Stop(ctx context.Context) error

	// IsMoving returns whether the arm is moving.
	IsMoving(ctx context.Context) (bool, error)
}
