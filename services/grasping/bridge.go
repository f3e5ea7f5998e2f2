package grasping

import (
	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/spatialmath"
)

// Frames published for each converted grasp, parented to the object frame.
const (
	GraspApproachFrame = "grasp_approach_frame"
	EndEffectorFrame   = "end_effector_frame"
)

// Default straight-line motions around a grasp, in mm.
const (
	defaultApproachDistance    = 100
	defaultApproachMinDistance = 50
	defaultRetreatDistance     = 100
	defaultRetreatMinDistance  = 50
)

// FrameBridge converts proposal poses from the approach frame to the end-effector frame and
// publishes both for diagnostics.
type FrameBridge struct {
	broadcaster   *referenceframe.Broadcaster
	clock         clock.Clock
	approachFrame string
	// approachToEndEffector is the pose of the end effector in the approach frame.
	approachToEndEffector spatialmath.Pose
	logger                logging.Logger
}

// NewFrameBridge returns a FrameBridge publishing to broadcaster.
func NewFrameBridge(
	broadcaster *referenceframe.Broadcaster,
	clk clock.Clock,
	approachFrame string,
	approachToEndEffector spatialmath.Pose,
	logger logging.Logger,
) *FrameBridge {
	if approachToEndEffector == nil {
		approachToEndEffector = spatialmath.NewZeroPose()
	}
	return &FrameBridge{
		broadcaster:           broadcaster,
		clock:                 clk,
		approachFrame:         approachFrame,
		approachToEndEffector: approachToEndEffector,
		logger:                logger,
	}
}

// PublishGraspFrame broadcasts pose under label, parented to the object frame and stamped now.
// The pose is published as given.
func (fb *FrameBridge) PublishGraspFrame(objectID string, pose spatialmath.Pose, label string) {
	fb.broadcaster.SendTransform(referenceframe.NewTransform(objectID, label, pose, fb.clock.Now()))
}

// ToPlannerGrasp converts a proposal into the grasp a planner consumes: the end-effector pose
// relative to the object plus the proposal's postures. Approach and retreat motions missing
// from the proposal get defaults: approach along the approach frame's z axis, lift straight up
// after grasping and back away along -z after placing.
func (fb *FrameBridge) ToPlannerGrasp(p grasp.Proposal) grasp.Grasp {
	approachPose := spatialmath.NewZeroPose()
	if p.Pose != nil {
		approachPose = p.Pose.Pose()
	}
	eePose := spatialmath.Compose(approachPose, fb.approachToEndEffector)

	fb.PublishGraspFrame(p.ObjectID, approachPose, GraspApproachFrame)
	fb.PublishGraspFrame(p.ObjectID, eePose, EndEffectorFrame)
	fb.logger.Debugw("converted grasp", "grasp_id", p.ID, "object", p.ObjectID, "end_effector_pose", spatialmath.PoseToMessage(eePose))

	g := grasp.Grasp{
		ID:               grasp.GraspID(p.ID),
		Pose:             referenceframe.NewPoseInFrame(p.ObjectID, eePose),
		Quality:          p.Quality,
		PreGraspPosture:  p.PreGraspPosture,
		GraspPosture:     p.GraspPosture,
		PreGraspApproach: p.PreGraspApproach,
		PostGraspRetreat: p.PostGraspRetreat,
		PostPlaceRetreat: p.PostPlaceRetreat,
	}
	if g.PreGraspApproach.Empty() {
		g.PreGraspApproach = grasp.GripperTranslation{
			FrameID:         fb.approachFrame,
			Direction:       r3.Vector{Z: 1},
			DesiredDistance: defaultApproachDistance,
			MinDistance:     defaultApproachMinDistance,
		}
	}
	if g.PostGraspRetreat.Empty() {
		g.PostGraspRetreat = grasp.GripperTranslation{
			FrameID:         referenceframe.World,
			Direction:       r3.Vector{Z: 1},
			DesiredDistance: defaultRetreatDistance,
			MinDistance:     defaultRetreatMinDistance,
		}
	}
	if g.PostPlaceRetreat.Empty() {
		g.PostPlaceRetreat = grasp.GripperTranslation{
			FrameID:         fb.approachFrame,
			Direction:       r3.Vector{Z: -1},
			DesiredDistance: defaultRetreatDistance,
			MinDistance:     defaultRetreatMinDistance,
		}
	}
	return g
}
