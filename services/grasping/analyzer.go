package grasping

import (
	"context"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
)

// Analyzer decides whether grasps are reachable. It only ever plans, never moves.
type Analyzer struct {
	gateway       *Gateway
	bridge        *FrameBridge
	plannerID     string
	timeBudgetSec float64
	logger        logging.Logger
}

// NewAnalyzer returns an Analyzer planning with plannerID under timeBudgetSec.
func NewAnalyzer(gateway *Gateway, bridge *FrameBridge, plannerID string, timeBudgetSec float64, logger logging.Logger) *Analyzer {
	return &Analyzer{
		gateway:       gateway,
		bridge:        bridge,
		plannerID:     plannerID,
		timeBudgetSec: timeBudgetSec,
		logger:        logger,
	}
}

// Analyze reports whether the proposal is reachable. The verdict always carries the proposal's
// id. A planner failure means unreachable, never an error.
func (a *Analyzer) Analyze(ctx context.Context, p grasp.Proposal) grasp.Verdict {
	ok, _ := a.AnalyzeGrasp(ctx, p.ObjectID, a.bridge.ToPlannerGrasp(p))
	verdict := grasp.Verdict{IsPossible: ok, GraspID: p.ID}
	a.logger.CDebugw(ctx, "finished analyze grasp request", "is_possible", verdict.IsPossible, "grasp_id", verdict.GraspID)
	return verdict
}

// AnalyzeGrasp plans g without executing it.
func (a *Analyzer) AnalyzeGrasp(ctx context.Context, objectID string, g grasp.Grasp) (bool, Outcome) {
	out := a.gateway.Plan(ctx, objectID, g, a.plannerID, a.timeBudgetSec, motionplan.PlanOnly)
	if out.Success {
		a.logger.Infow("grasp is reachable", "object", objectID, "grasp", g.ID, "result", out)
	} else {
		a.logger.Infow("grasp is not reachable", "object", objectID, "grasp", g.ID, "result", out)
	}
	return out.Success, out
}
