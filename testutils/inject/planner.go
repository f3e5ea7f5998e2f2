// Package inject provides injectable doubles of the planner boundary, the manipulator
// controllers and the model source.
package inject

import (
	"context"

	"go.viam.com/grasping/motionplan"
)

// Planner is an injected planner backend.
type Planner struct {
	motionplan.Backend
	PlanFunc            func(ctx context.Context, req motionplan.PlanRequest) (motionplan.PlanResponse, error)
	PlaceWithRetryFunc  func(ctx context.Context, req motionplan.PlaceRequest) (motionplan.PlaceResponse, error)
	GoToNamedTargetFunc func(ctx context.Context, req motionplan.NamedTargetRequest) (bool, error)
	StopFunc            func(ctx context.Context) error
	CloseFunc           func(ctx context.Context) error
}

// Plan calls the injected Plan or the real version.
func (p *Planner) Plan(ctx context.Context, req motionplan.PlanRequest) (motionplan.PlanResponse, error) {
	if p.PlanFunc == nil {
		return p.Backend.Plan(ctx, req)
	}
	return p.PlanFunc(ctx, req)
}

// PlaceWithRetry calls the injected PlaceWithRetry or the real version.
func (p *Planner) PlaceWithRetry(ctx context.Context, req motionplan.PlaceRequest) (motionplan.PlaceResponse, error) {
	if p.PlaceWithRetryFunc == nil {
		return p.Backend.PlaceWithRetry(ctx, req)
	}
	return p.PlaceWithRetryFunc(ctx, req)
}

// GoToNamedTarget calls the injected GoToNamedTarget or the real version.
func (p *Planner) GoToNamedTarget(ctx context.Context, req motionplan.NamedTargetRequest) (bool, error) {
	if p.GoToNamedTargetFunc == nil {
		return p.Backend.GoToNamedTarget(ctx, req)
	}
	return p.GoToNamedTargetFunc(ctx, req)
}

// Stop calls the injected Stop or the real version.
func (p *Planner) Stop(ctx context.Context) error {
	if p.StopFunc == nil {
		if p.Backend == nil {
			return nil
		}
		return p.Backend.Stop(ctx)
	}
	return p.StopFunc(ctx)
}

// Close calls the injected Close or the real version.
func (p *Planner) Close(ctx context.Context) error {
	if p.CloseFunc == nil {
		if p.Backend == nil {
			return nil
		}
		return p.Backend.Close(ctx)
	}
	return p.CloseFunc(ctx)
}
