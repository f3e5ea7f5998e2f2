package grasping

import (
	"context"

	"go.opencensus.io/trace"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
)

// Outcome is the result of one planning call. Success holds iff ErrorCode is the planner's
// success code. Grasp and Metadata are set on success.
type Outcome struct {
	Success   bool                    `json:"success"`
	ErrorCode motionplan.ErrorCode    `json:"error_code"`
	Grasp     *grasp.Grasp            `json:"grasp,omitempty"`
	Metadata  motionplan.PlanMetadata `json:"metadata"`
	// Detail describes a failure that did not come from the planner itself.
	Detail string `json:"detail,omitempty"`
}

// ErrorName is the name of the outcome's error code.
func (o Outcome) ErrorName() string {
	return o.ErrorCode.String()
}

// PlaceOutcome is the result of a place call.
type PlaceOutcome struct {
	Success   bool                 `json:"success"`
	ErrorCode motionplan.ErrorCode `json:"error_code"`
	Attempts  int                  `json:"attempts"`
	Location  grasp.PlaceLocation  `json:"location"`
	Detail    string               `json:"detail,omitempty"`
}

// Gateway submits requests to the planner. Each call reaches the planner exactly once; retries
// are up to callers. A call runs until the planner answers or its budget runs out, even if the
// caller goes away; only stopping the planner ends it early.
type Gateway struct {
	planner motionplan.Planner
	placer  motionplan.PlaceExecutor
	group   string
	fault   func(error)
	logger  logging.Logger
}

// NewGateway returns a Gateway planning for the arm group. fault is called with every error
// reaching the planner, since the planner cannot be trusted after one; it may be nil.
func NewGateway(
	planner motionplan.Planner,
	placer motionplan.PlaceExecutor,
	group string,
	fault func(error),
	logger logging.Logger,
) *Gateway {
	if fault == nil {
		fault = func(error) {}
	}
	return &Gateway{planner: planner, placer: placer, group: group, fault: fault, logger: logger}
}

// Plan asks the planner to pick objectID with g. Only PlanAndExecute may move the arm.
func (gw *Gateway) Plan(
	ctx context.Context,
	objectID string,
	g grasp.Grasp,
	plannerID string,
	timeBudgetSec float64,
	mode motionplan.Mode,
) Outcome {
	ctx, span := trace.StartSpan(context.WithoutCancel(ctx), "grasping::gateway::Plan")
	defer span.End()

	req := motionplan.PlanRequest{
		ObjectID:     objectID,
		Group:        gw.group,
		Grasps:       []grasp.Grasp{g},
		PlannerID:    plannerID,
		PlanningTime: timeBudgetSec,
		Mode:         mode,
	}
	resp, err := gw.planner.Plan(ctx, req)
	if err != nil {
		gw.logger.Errorw("planner call failed", "object", objectID, "grasp", g.ID, "mode", mode, "error", err)
		gw.fault(err)
		return Outcome{ErrorCode: motionplan.Failure, Detail: err.Error()}
	}
	out := Outcome{
		Success:   resp.ErrorCode.Succeeded(),
		ErrorCode: resp.ErrorCode,
		Metadata:  resp.Metadata,
	}
	if out.Success {
		out.Grasp = resp.Grasp
		if out.Grasp == nil {
			accepted := g
			out.Grasp = &accepted
		}
	}
	return out
}

// PlaceWithRetry asks the place executor to put objectID down at loc. Retries happen inside
// the executor.
func (gw *Gateway) PlaceWithRetry(
	ctx context.Context,
	objectID string,
	loc grasp.PlaceLocation,
	plannerID string,
	timeBudgetSec float64,
) PlaceOutcome {
	ctx, span := trace.StartSpan(context.WithoutCancel(ctx), "grasping::gateway::PlaceWithRetry")
	defer span.End()

	out := PlaceOutcome{Location: loc}
	resp, err := gw.placer.PlaceWithRetry(ctx, motionplan.PlaceRequest{
		ObjectID:     objectID,
		Group:        gw.group,
		Locations:    []grasp.PlaceLocation{loc},
		PlannerID:    plannerID,
		PlanningTime: timeBudgetSec,
	})
	if err != nil {
		gw.logger.Errorw("place executor call failed", "object", objectID, "error", err)
		gw.fault(err)
		out.ErrorCode = motionplan.Failure
		out.Detail = err.Error()
		return out
	}
	out.Success = resp.ErrorCode.Succeeded()
	out.ErrorCode = resp.ErrorCode
	out.Attempts = resp.Attempts
	return out
}
