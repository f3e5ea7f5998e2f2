// Package grasp defines the grasp data model shared by the planner boundary, the grasping
// service and the request front-end.
package grasp

import (
	"fmt"

	"github.com/golang/geo/r3"

	"go.viam.com/grasping/referenceframe"
)

// Posture is a joint configuration of the end effector.
type Posture struct {
	JointNames []string  `json:"joint_names"`
	Positions  []float64 `json:"positions"`
}

// Empty reports whether the posture names no joints.
func (p Posture) Empty() bool {
	return len(p.JointNames) == 0 && len(p.Positions) == 0
}

// GripperTranslation is a straight-line motion of the end effector along Direction,
// expressed in FrameID. Distances are in millimeters.
type GripperTranslation struct {
	FrameID         string    `json:"frame_id"`
	Direction       r3.Vector `json:"direction"`
	DesiredDistance float64   `json:"desired_distance"`
	MinDistance     float64   `json:"min_distance"`
}

// Empty reports whether the translation has no distance.
func (t GripperTranslation) Empty() bool {
	return t.DesiredDistance == 0 && t.MinDistance == 0
}

// Proposal is a grasp candidate as produced by an external grasp generator. Its pose is the
// pose of the approach frame relative to the object. A proposal is never modified after it is
// received.
type Proposal struct {
	ID       int64                       `json:"id"`
	ObjectID string                      `json:"object_id"`
	Pose     *referenceframe.PoseInFrame `json:"pose"`

	PreGraspPosture  Posture `json:"pre_grasp_posture"`
	GraspPosture     Posture `json:"grasp_posture"`
	PostGraspPosture Posture `json:"post_grasp_posture"`

	// Optional approach and retreat; zero values get defaults when converted to a Grasp.
	PreGraspApproach GripperTranslation `json:"pre_grasp_approach"`
	PostGraspRetreat GripperTranslation `json:"post_grasp_retreat"`
	PostPlaceRetreat GripperTranslation `json:"post_place_retreat"`

	Quality float64 `json:"quality,omitempty"`
}

// Grasp is a grasp in the form a planner consumes: the end-effector pose plus the postures and
// straight-line motions around closing the hand.
type Grasp struct {
	ID      string                      `json:"id"`
	Pose    *referenceframe.PoseInFrame `json:"pose"`
	Quality float64                     `json:"quality"`

	PreGraspPosture  Posture            `json:"pre_grasp_posture"`
	GraspPosture     Posture            `json:"grasp_posture"`
	PreGraspApproach GripperTranslation `json:"pre_grasp_approach"`
	PostGraspRetreat GripperTranslation `json:"post_grasp_retreat"`
	PostPlaceRetreat GripperTranslation `json:"post_place_retreat"`

	MaxContactForce     float64  `json:"max_contact_force"`
	AllowedTouchObjects []string `json:"allowed_touch_objects,omitempty"`
}

// GraspID is the planner-side identifier of the grasp converted from proposal id.
func GraspID(id int64) string {
	return fmt.Sprintf("grasp_%d", id)
}

// PlaceLocation is a place target for an object that is held by the end effector.
type PlaceLocation struct {
	ID                  string                      `json:"id"`
	PlacePose           *referenceframe.PoseInFrame `json:"place_pose"`
	PostPlacePosture    Posture                     `json:"post_place_posture"`
	PrePlaceApproach    GripperTranslation          `json:"pre_place_approach"`
	PostPlaceRetreat    GripperTranslation          `json:"post_place_retreat"`
	AllowedTouchObjects []string                    `json:"allowed_touch_objects,omitempty"`
}

// NewPlaceLocation derives the place location for putting down an object held with g. The
// posture, approach and retreat are always those of g; only the pose is the caller's.
func NewPlaceLocation(g Grasp, target *referenceframe.PoseInFrame) PlaceLocation {
	return PlaceLocation{
		ID:               "place_" + g.ID,
		PlacePose:        target,
		PostPlacePosture: clonePosture(g.PreGraspPosture),
		PrePlaceApproach: g.PreGraspApproach,
		PostPlaceRetreat: g.PostGraspRetreat,
	}
}

func clonePosture(p Posture) Posture {
	return Posture{
		JointNames: append([]string(nil), p.JointNames...),
		Positions:  append([]float64(nil), p.Positions...),
	}
}

// Verdict is the answer to a reachability query. GraspID always echoes the proposal id.
type Verdict struct {
	IsPossible bool  `json:"is_possible"`
	GraspID    int64 `json:"grasp_id"`
}
