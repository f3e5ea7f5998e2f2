package grasping_test

import (
	"context"
	"errors"
	"testing"

	"go.viam.com/test"

	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
	"go.viam.com/grasping/services/grasping"
	"go.viam.com/grasping/testutils/inject"
)

func TestManipulatorLease(t *testing.T) {
	m := grasping.NewManipulator(&inject.Arm{}, &inject.Gripper{}, "")

	release, err := m.Acquire(context.Background())
	test.That(t, err, test.ShouldBeNil)
	_, err = m.Acquire(context.Background())
	test.That(t, err, test.ShouldBeError, grasping.ErrManipulatorBusy)
	release()

	release, err = m.Acquire(context.Background())
	test.That(t, err, test.ShouldBeNil)
	release()

	test.That(t, m.Drain(context.Background()), test.ShouldBeTrue)
	_, err = m.Acquire(context.Background())
	test.That(t, err, test.ShouldBeError, grasping.ErrManipulatorBusy)
}

func TestManipulatorStop(t *testing.T) {
	var armStopped, gripperStopped bool
	a := &inject.Arm{StopFunc: func(ctx context.Context) error {
		armStopped = true
		return errors.New("arm controller gone")
	}}
	g := &inject.Gripper{StopFunc: func(ctx context.Context) error {
		gripperStopped = true
		return nil
	}}
	m := grasping.NewManipulator(a, g, grasping.BusyQueue)

	err := m.Stop(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "arm controller gone")
	test.That(t, armStopped, test.ShouldBeTrue)
	test.That(t, gripperStopped, test.ShouldBeTrue)
}

func TestServiceWithInjectedControllers(t *testing.T) {
	var homeOpts motionplan.MoveOptions
	a := &inject.Arm{GoToNamedTargetFunc: func(ctx context.Context, target string, opts motionplan.MoveOptions) (bool, error) {
		homeOpts = opts
		return target == "home", nil
	}}
	g := &inject.Gripper{
		OpenFunc: func(ctx context.Context, opts motionplan.MoveOptions) (bool, error) { return true, nil },
		GrabFunc: func(ctx context.Context, opts motionplan.MoveOptions) (bool, error) { return false, nil },
	}
	planner := &inject.Planner{}
	svc, err := grasping.New(testConfig(), grasping.Dependencies{Planner: planner, Placer: planner, Arm: a, Gripper: g}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	ok, err := svc.HomeArm(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, homeOpts, test.ShouldResemble, motionplan.MoveOptions{PlannerID: executionPlannerID, PlanningTime: 5})

	ok, err = svc.OpenHand(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	ok, err = svc.CloseHand(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)

	_, err = grasping.New(testConfig(), grasping.Dependencies{Planner: planner, Placer: planner}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
