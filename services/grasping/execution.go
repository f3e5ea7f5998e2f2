package grasping

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/grasping/grasp"
)

// StageChange records when an execution entered a stage.
type StageChange struct {
	Stage grasp.Stage `json:"stage"`
	At    time.Time   `json:"at"`
}

// Execution is the state of one grasp execution. It is created for a single request, owned by
// it, and discarded when the request completes.
type Execution struct {
	ID       uuid.UUID     `json:"id"`
	ObjectID string        `json:"object_id"`
	GraspID  int64         `json:"grasp_id"`
	Stage    grasp.Stage   `json:"stage"`
	History  []StageChange `json:"history"`

	Analysis *Outcome      `json:"analysis,omitempty"`
	Pick     *Outcome      `json:"pick,omitempty"`
	Place    *PlaceOutcome `json:"place,omitempty"`
}

func newExecution(p grasp.Proposal, now time.Time) *Execution {
	return &Execution{
		ID:       uuid.New(),
		ObjectID: p.ObjectID,
		GraspID:  p.ID,
		Stage:    grasp.StageIdle,
		History:  []StageChange{{Stage: grasp.StageIdle, At: now}},
	}
}

func (e *Execution) transition(next grasp.Stage, now time.Time) error {
	if !e.Stage.CanTransition(next) {
		return errors.Errorf("execution %s cannot go from %s to %s", e.ID, e.Stage, next)
	}
	e.Stage = next
	e.History = append(e.History, StageChange{Stage: next, At: now})
	return nil
}

// Stages returns the stages the execution went through, in order.
func (e *Execution) Stages() []grasp.Stage {
	stages := make([]grasp.Stage, 0, len(e.History))
	for _, change := range e.History {
		stages = append(stages, change.Stage)
	}
	return stages
}

// Succeeded reports whether the execution finished placing.
func (e *Execution) Succeeded() bool {
	return e.Stage == grasp.StageDone
}
