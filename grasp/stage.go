package grasp

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Stage is the stage of one grasp execution.
type Stage int

// The stages of a grasp execution. DONE and FAILED are terminal.
const (
	StageIdle Stage = iota
	StageAnalyzing
	StagePicking
	StagePlacing
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:      "IDLE",
	StageAnalyzing: "ANALYZING",
	StagePicking:   "PICKING",
	StagePlacing:   "PLACING",
	StageDone:      "DONE",
	StageFailed:    "FAILED",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransition reports whether an execution may move from s to next. Stages are never skipped:
// PICKING only follows ANALYZING, PLACING only follows PICKING, and DONE only follows PLACING.
func (s Stage) CanTransition(next Stage) bool {
	switch s {
	case StageIdle:
		return next == StageAnalyzing
	case StageAnalyzing:
		return next == StagePicking || next == StageFailed
	case StagePicking:
		return next == StagePlacing || next == StageFailed
	case StagePlacing:
		return next == StageDone || next == StageFailed
	case StageDone, StageFailed:
		return false
	default:
		return false
	}
}

// MarshalJSON encodes the stage by name.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a stage name.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for stage, n := range stageNames {
		if n == name {
			*s = stage
			return nil
		}
	}
	return errors.Errorf("unknown grasp stage %q", name)
}
