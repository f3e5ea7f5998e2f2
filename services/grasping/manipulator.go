package grasping

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"go.viam.com/grasping/components/arm"
	"go.viam.com/grasping/components/gripper"
)

// ErrManipulatorBusy is returned when the manipulator is in use and the busy policy is to reject.
var ErrManipulatorBusy = errors.New("manipulator is busy with another request")

// BusyPolicy is what happens to a request for the manipulator while another holds it.
type BusyPolicy string

// Busy policies.
const (
	BusyReject BusyPolicy = "reject"
	BusyQueue  BusyPolicy = "queue"
)

// Manipulator is the arm and gripper, held by at most one request at a time.
type Manipulator struct {
	Arm     arm.Arm
	Gripper gripper.Gripper

	policy BusyPolicy
	lease  *semaphore.Weighted
}

// NewManipulator returns the manipulator made of a and g.
func NewManipulator(a arm.Arm, g gripper.Gripper, policy BusyPolicy) *Manipulator {
	if policy == "" {
		policy = BusyReject
	}
	return &Manipulator{Arm: a, Gripper: g, policy: policy, lease: semaphore.NewWeighted(1)}
}

// Acquire takes the manipulator. Under BusyReject it fails with ErrManipulatorBusy if the
// manipulator is held; under BusyQueue it waits for it or for ctx to end. The returned func
// releases the manipulator.
func (m *Manipulator) Acquire(ctx context.Context) (func(), error) {
	if m.policy == BusyQueue {
		if err := m.lease.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	} else if !m.lease.TryAcquire(1) {
		return nil, ErrManipulatorBusy
	}
	return func() { m.lease.Release(1) }, nil
}

// Drain waits until no request holds the manipulator, or ctx ends, and then keeps it so no new
// request can start. It reports whether the manipulator was drained.
func (m *Manipulator) Drain(ctx context.Context) bool {
	return m.lease.Acquire(ctx, 1) == nil
}

// Stop stops the arm and the gripper.
func (m *Manipulator) Stop(ctx context.Context) error {
	return multierr.Combine(m.Arm.Stop(ctx), m.Gripper.Stop(ctx))
}
