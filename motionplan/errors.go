package motionplan

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode is a planner result code. Only Success means success; every other value is a
// failure kept for diagnostics.
type ErrorCode int32

// Planner result codes.
const (
	Success                                  ErrorCode = 1
	Failure                                  ErrorCode = 99999
	PlanningFailed                           ErrorCode = -1
	InvalidMotionPlan                        ErrorCode = -2
	MotionPlanInvalidatedByEnvironmentChange ErrorCode = -3
	ControlFailed                            ErrorCode = -4
	UnableToAcquireSensorData                ErrorCode = -5
	TimedOut                                 ErrorCode = -6
	Preempted                                ErrorCode = -7
	StartStateInCollision                    ErrorCode = -10
	StartStateViolatesPathConstraints        ErrorCode = -11
	GoalInCollision                          ErrorCode = -12
	GoalViolatesPathConstraints              ErrorCode = -13
	GoalConstraintsViolated                  ErrorCode = -14
	InvalidGroupName                         ErrorCode = -15
	InvalidGoalConstraints                   ErrorCode = -16
	InvalidRobotState                        ErrorCode = -17
	InvalidLinkName                          ErrorCode = -18
	InvalidObjectName                        ErrorCode = -19
	FrameTransformFailure                    ErrorCode = -21
	CollisionCheckingUnavailable             ErrorCode = -22
	RobotStateStale                          ErrorCode = -23
	SensorInfoStale                          ErrorCode = -24
	NoIKSolution                             ErrorCode = -31
)

var errorCodeNames = map[ErrorCode]string{
	Success:                                  "SUCCESS",
	Failure:                                  "FAILURE",
	PlanningFailed:                           "PLANNING_FAILED",
	InvalidMotionPlan:                        "INVALID_MOTION_PLAN",
	MotionPlanInvalidatedByEnvironmentChange: "MOTION_PLAN_INVALIDATED_BY_ENVIRONMENT_CHANGE",
	ControlFailed:                            "CONTROL_FAILED",
	UnableToAcquireSensorData:                "UNABLE_TO_AQUIRE_SENSOR_DATA",
	TimedOut:                                 "TIMED_OUT",
	Preempted:                                "PREEMPTED",
	StartStateInCollision:                    "START_STATE_IN_COLLISION",
	StartStateViolatesPathConstraints:        "START_STATE_VIOLATES_PATH_CONSTRAINTS",
	GoalInCollision:                          "GOAL_IN_COLLISION",
	GoalViolatesPathConstraints:              "GOAL_VIOLATES_PATH_CONSTRAINTS",
	GoalConstraintsViolated:                  "GOAL_CONSTRAINTS_VIOLATED",
	InvalidGroupName:                         "INVALID_GROUP_NAME",
	InvalidGoalConstraints:                   "INVALID_GOAL_CONSTRAINTS",
	InvalidRobotState:                        "INVALID_ROBOT_STATE",
	InvalidLinkName:                          "INVALID_LINK_NAME",
	InvalidObjectName:                        "INVALID_OBJECT_NAME",
	FrameTransformFailure:                    "FRAME_TRANSFORM_FAILURE",
	CollisionCheckingUnavailable:             "COLLISION_CHECKING_UNAVAILABLE",
	RobotStateStale:                          "ROBOT_STATE_STALE",
	SensorInfoStale:                          "SENSOR_INFO_STALE",
	NoIKSolution:                             "NO_IK_SOLUTION",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_CODE(%d)", int32(c))
}

// Succeeded reports whether c is the Success sentinel.
func (c ErrorCode) Succeeded() bool {
	return c == Success
}

// ParseErrorCode returns the code named s.
func ParseErrorCode(s string) (ErrorCode, error) {
	for code, name := range errorCodeNames {
		if name == s {
			return code, nil
		}
	}
	return 0, errors.Errorf("unknown planner error code %q", s)
}

// UnmarshalJSON accepts a code as its number or its name.
func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		code, err := ParseErrorCode(name)
		if err != nil {
			return err
		}
		*c = code
		return nil
	}
	var value int32
	if err := json.Unmarshal(data, &value); err != nil {
		return errors.Wrap(err, "planner error code must be a number or a name")
	}
	*c = ErrorCode(value)
	return nil
}

// NewUnknownBackendError is returned when no backend is registered under name.
func NewUnknownBackendError(name string) error {
	return errors.Errorf("no planner backend registered as %q", name)
}
