// Package motionplan defines the boundary to the external motion planner: the plan, place and
// named-target requests, their outcomes, and the registry of planner backends.
package motionplan

import (
	"context"

	"github.com/golang/geo/r3"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/referenceframe"
)

// Mode selects whether a plan request also commands motion.
type Mode string

const (
	// PlanOnly never moves the manipulator.
	PlanOnly Mode = "plan_only"
	// PlanAndExecute executes a successful plan.
	PlanAndExecute Mode = "plan_and_execute"
)

// PlanRequest asks a planner to pick ObjectID with one of Grasps. A request is built for a
// single call and never reused.
type PlanRequest struct {
	ObjectID  string        `json:"object_id"`
	Group     string        `json:"group"`
	Grasps    []grasp.Grasp `json:"grasps"`
	PlannerID string        `json:"planner_id"`
	// PlanningTime is the time budget in seconds.
	PlanningTime float64 `json:"planning_time"`
	Mode         Mode    `json:"mode"`
}

// PlanMetadata describes a found plan.
type PlanMetadata struct {
	PlanID string `json:"plan_id"`
	// Stages names the trajectory segments in execution order.
	Stages []string `json:"stages,omitempty"`
	// PlanningTime is the time spent planning in seconds.
	PlanningTime float64 `json:"planning_time"`
}

// PlanResponse is the planner's answer to a PlanRequest. Grasp is set on success and is the grasp
// the planner accepted.
type PlanResponse struct {
	ErrorCode ErrorCode    `json:"error_code"`
	Grasp     *grasp.Grasp `json:"grasp,omitempty"`
	Metadata  PlanMetadata `json:"metadata"`
}

// PlaceRequest asks an executor to put the held object down at one of Locations.
type PlaceRequest struct {
	ObjectID     string                `json:"object_id"`
	Group        string                `json:"group"`
	Locations    []grasp.PlaceLocation `json:"locations"`
	PlannerID    string                `json:"planner_id"`
	PlanningTime float64               `json:"planning_time"`
}

// PlaceResponse is the executor's answer to a PlaceRequest, after its own retries.
type PlaceResponse struct {
	ErrorCode ErrorCode            `json:"error_code"`
	Attempts  int                  `json:"attempts"`
	Location  *grasp.PlaceLocation `json:"location,omitempty"`
}

// NamedTargetRequest moves a group to a predefined joint configuration, starting from the
// group's current state.
type NamedTargetRequest struct {
	Group        string  `json:"group"`
	Target       string  `json:"target"`
	PlannerID    string  `json:"planner_id"`
	PlanningTime float64 `json:"planning_time"`
}

// MoveOptions are the planner settings of a named-target move.
type MoveOptions struct {
	PlannerID string `json:"planner_id"`
	// PlanningTime is the time budget in seconds.
	PlanningTime float64 `json:"planning_time"`
}

// A Planner plans (and optionally executes) pick motions.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResponse, error)
}

// A PlaceExecutor places a held object, retrying internally as it sees fit.
type PlaceExecutor interface {
	PlaceWithRetry(ctx context.Context, req PlaceRequest) (PlaceResponse, error)
}

// A NamedTargetPlanner plans and executes a move to a named target, waiting for it to finish.
type NamedTargetPlanner interface {
	GoToNamedTarget(ctx context.Context, req NamedTargetRequest) (bool, error)
}

// Backend is a complete planner backend.
type Backend interface {
	Planner
	PlaceExecutor
	NamedTargetPlanner
	// Stop halts any motion the backend is commanding.
	Stop(ctx context.Context) error
	Close(ctx context.Context) error
}

// SceneObject is a collision object of the planning scene as a backend sees it: a named box
// bounding the object.
type SceneObject struct {
	Name string
	Pose *referenceframe.PoseInFrame
	// Dims are the box dimensions in mm.
	Dims r3.Vector
}

// Scene gives backends read access to the planning scene.
type Scene interface {
	SceneObjects() []SceneObject
}
