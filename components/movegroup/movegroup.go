// Package movegroup implements the arm and gripper controllers as planning groups whose moves
// are planned and executed by a planner backend.
package movegroup

import (
	"context"
	"sync/atomic"

	"go.opencensus.io/trace"

	"go.viam.com/grasping/components/arm"
	"go.viam.com/grasping/components/gripper"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
)

// Planner is what a move group needs from a backend.
type Planner interface {
	motionplan.NamedTargetPlanner
	Stop(ctx context.Context) error
}

type group struct {
	name    string
	planner Planner
	logger  logging.Logger
	moving  atomic.Bool
}

func (g *group) Name() string {
	return g.name
}

// GoToNamedTarget moves the group from its current state to target.
func (g *group) GoToNamedTarget(ctx context.Context, target string, opts motionplan.MoveOptions) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "movegroup::GoToNamedTarget")
	defer span.End()

	g.moving.Store(true)
	defer g.moving.Store(false)

	g.logger.CDebugw(ctx, "moving to named target", "target", target, "planner_id", opts.PlannerID, "planning_time", opts.PlanningTime)
	return g.planner.GoToNamedTarget(ctx, motionplan.NamedTargetRequest{
		Group:        g.name,
		Target:       target,
		PlannerID:    opts.PlannerID,
		PlanningTime: opts.PlanningTime,
	})
}

func (g *group) Stop(ctx context.Context) error {
	return g.planner.Stop(ctx)
}

func (g *group) IsMoving(ctx context.Context) (bool, error) {
	return g.moving.Load(), nil
}

// Arm is an arm planning group.
type Arm struct {
	group
}

var _ arm.Arm = (*Arm)(nil)

// NewArm returns the arm planning group named name.
func NewArm(name string, planner Planner, logger logging.Logger) *Arm {
	return &Arm{group: group{name: name, planner: planner, logger: logger.Sublogger(name)}}
}

// Gripper is a gripper planning group whose open and closed states are named targets.
type Gripper struct {
	group
	openTarget   string
	closedTarget string
}

var _ gripper.Gripper = (*Gripper)(nil)

// NewGripper returns the gripper planning group named name.
func NewGripper(name, openTarget, closedTarget string, planner Planner, logger logging.Logger) *Gripper {
	return &Gripper{
		group:        group{name: name, planner: planner, logger: logger.Sublogger(name)},
		openTarget:   openTarget,
		closedTarget: closedTarget,
	}
}

// Open moves the gripper to its open target.
func (g *Gripper) Open(ctx context.Context, opts motionplan.MoveOptions) (bool, error) {
	return g.GoToNamedTarget(ctx, g.openTarget, opts)
}

// Grab moves the gripper to its closed target.
func (g *Gripper) Grab(ctx context.Context, opts motionplan.MoveOptions) (bool, error) {
	return g.GoToNamedTarget(ctx, g.closedTarget, opts)
}
