package grasping

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.opencensus.io/trace"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
	"go.viam.com/grasping/referenceframe"
)

// NamedTargets are the predefined configurations of the arm and gripper.
type NamedTargets struct {
	Home   string
	Open   string
	Closed string
}

// Orchestrator sequences a grasp through analysis, pick and place, and moves the manipulator to
// its named targets. It does not retry any stage. Callers must hold the manipulator.
type Orchestrator struct {
	analyzer      *Analyzer
	gateway       *Gateway
	bridge        *FrameBridge
	manipulator   *Manipulator
	plannerID     string
	timeBudgetSec float64
	targets       NamedTargets
	clock         clock.Clock
	logger        logging.Logger
}

// NewOrchestrator returns an Orchestrator executing with plannerID under timeBudgetSec.
func NewOrchestrator(
	analyzer *Analyzer,
	gateway *Gateway,
	bridge *FrameBridge,
	manipulator *Manipulator,
	plannerID string,
	timeBudgetSec float64,
	targets NamedTargets,
	clk clock.Clock,
	logger logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		analyzer:      analyzer,
		gateway:       gateway,
		bridge:        bridge,
		manipulator:   manipulator,
		plannerID:     plannerID,
		timeBudgetSec: timeBudgetSec,
		targets:       targets,
		clock:         clk,
		logger:        logger,
	}
}

// AnalyzeGrasp plans g with the analysis planner and budget, without moving.
func (o *Orchestrator) AnalyzeGrasp(ctx context.Context, objectID string, g grasp.Grasp) (bool, Outcome) {
	return o.analyzer.AnalyzeGrasp(ctx, objectID, g)
}

// ExecuteGrasp plans and executes picking objectID with g, using the execution planner and budget.
func (o *Orchestrator) ExecuteGrasp(ctx context.Context, objectID string, g grasp.Grasp) (bool, Outcome) {
	out := o.gateway.Plan(ctx, objectID, g, o.plannerID, o.timeBudgetSec, motionplan.PlanAndExecute)
	if out.Success {
		o.logger.Infow("grasp executed correctly", "object", objectID, "grasp", g.ID, "result", out)
	} else {
		o.logger.Infow("grasp did not execute", "object", objectID, "grasp", g.ID, "result", out)
	}
	return out.Success, out
}

// Place puts objectID down at target. The place location reuses the posture, approach and
// retreat of the grasp in pick. The executor's failure after its own retries is final.
func (o *Orchestrator) Place(ctx context.Context, objectID string, pick Outcome, target *referenceframe.PoseInFrame) (bool, PlaceOutcome) {
	if pick.Grasp == nil {
		o.logger.Errorw("cannot place without a picked grasp", "object", objectID)
		return false, PlaceOutcome{ErrorCode: motionplan.InvalidGoalConstraints, Detail: "no picked grasp"}
	}
	if target == nil {
		target = referenceframe.NewPoseInFrame(referenceframe.World, nil)
	}
	loc := grasp.NewPlaceLocation(*pick.Grasp, target)
	out := o.gateway.PlaceWithRetry(ctx, objectID, loc, o.plannerID, o.timeBudgetSec)
	if out.Success {
		o.logger.Infow("placed object", "object", objectID, "attempts", out.Attempts)
	} else {
		o.logger.Errorw("failed to place object", "object", objectID, "code", out.ErrorCode, "attempts", out.Attempts)
	}
	return out.Success, out
}

// Execute runs the proposal through ANALYZING and PICKING and, when place is set, PLACING. Any
// failed stage ends the execution in FAILED. Without a place target the execution stops in
// PICKING with the object held.
func (o *Orchestrator) Execute(ctx context.Context, p grasp.Proposal, place *referenceframe.PoseInFrame) *Execution {
	ctx, span := trace.StartSpan(ctx, "grasping::orchestrator::Execute")
	defer span.End()

	exec := newExecution(p, o.clock.Now())
	logger := o.logger.Sublogger(exec.ID.String())
	step := func(next grasp.Stage) {
		if err := exec.transition(next, o.clock.Now()); err != nil {
			logger.Errorw("invalid stage transition", "error", err)
			return
		}
		logger.Debugw("stage", "stage", next)
	}

	g := o.bridge.ToPlannerGrasp(p)

	step(grasp.StageAnalyzing)
	ok, analysis := o.AnalyzeGrasp(ctx, p.ObjectID, g)
	exec.Analysis = &analysis
	if !ok {
		step(grasp.StageFailed)
		return exec
	}

	step(grasp.StagePicking)
	ok, pick := o.ExecuteGrasp(ctx, p.ObjectID, g)
	exec.Pick = &pick
	if !ok {
		step(grasp.StageFailed)
		return exec
	}
	if place == nil {
		logger.Infow("grasp accepted, waiting for place", "object", p.ObjectID)
		return exec
	}

	step(grasp.StagePlacing)
	ok, placed := o.Place(ctx, p.ObjectID, pick, place)
	exec.Place = &placed
	if !ok {
		step(grasp.StageFailed)
		return exec
	}
	step(grasp.StageDone)
	return exec
}

// HomeArm moves the arm to its home target. Like the Gateway calls, named-target moves are not
// cut short when ctx is canceled.
func (o *Orchestrator) HomeArm(ctx context.Context) bool {
	ok, err := o.manipulator.Arm.GoToNamedTarget(context.WithoutCancel(ctx), o.targets.Home, o.moveOptions())
	return o.reportMove(ok, err, "homed arm", "home arm")
}

// OpenHand moves the gripper to its open target.
func (o *Orchestrator) OpenHand(ctx context.Context) bool {
	ok, err := o.manipulator.Gripper.Open(context.WithoutCancel(ctx), o.moveOptions())
	return o.reportMove(ok, err, "opened hand", "open hand")
}

// CloseHand moves the gripper to its closed target.
func (o *Orchestrator) CloseHand(ctx context.Context) bool {
	ok, err := o.manipulator.Gripper.Grab(context.WithoutCancel(ctx), o.moveOptions())
	return o.reportMove(ok, err, "closed hand", "close hand")
}

func (o *Orchestrator) moveOptions() motionplan.MoveOptions {
	return motionplan.MoveOptions{PlannerID: o.plannerID, PlanningTime: o.timeBudgetSec}
}

func (o *Orchestrator) reportMove(ok bool, err error, done, action string) bool {
	switch {
	case err != nil:
		o.logger.Errorw("failed to "+action, "error", err)
		return false
	case !ok:
		o.logger.Error("failed to " + action)
		return false
	default:
		o.logger.Info("successfully " + done)
		return true
	}
}
