package grasp_test

import (
	"encoding/json"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/spatialmath"
)

func pickedGrasp() grasp.Grasp {
	return grasp.Grasp{
		ID:   grasp.GraspID(7),
		Pose: referenceframe.NewPoseInFrame("cup", spatialmath.NewPoseFromPoint(r3.Vector{Z: 120})),
		PreGraspPosture: grasp.Posture{
			JointNames: []string{"finger_1", "finger_2"},
			Positions:  []float64{0, 0},
		},
		GraspPosture: grasp.Posture{
			JointNames: []string{"finger_1", "finger_2"},
			Positions:  []float64{0.8, 0.8},
		},
		PreGraspApproach: grasp.GripperTranslation{
			FrameID: "end_effector_frame", Direction: r3.Vector{Z: 1}, DesiredDistance: 100, MinDistance: 50,
		},
		PostGraspRetreat: grasp.GripperTranslation{
			FrameID: referenceframe.World, Direction: r3.Vector{Z: 1}, DesiredDistance: 80, MinDistance: 40,
		},
		PostPlaceRetreat: grasp.GripperTranslation{
			FrameID: "end_effector_frame", Direction: r3.Vector{Z: -1}, DesiredDistance: 10, MinDistance: 5,
		},
	}
}

func TestNewPlaceLocation(t *testing.T) {
	g := pickedGrasp()
	target := referenceframe.NewPoseInFrame(referenceframe.World, spatialmath.NewPoseFromPoint(r3.Vector{X: 300, Y: -200}))

	place := grasp.NewPlaceLocation(g, target)
	test.That(t, place.ID, test.ShouldEqual, "place_grasp_7")
	test.That(t, place.PlacePose, test.ShouldEqual, target)
	test.That(t, place.PostPlacePosture, test.ShouldResemble, g.PreGraspPosture)
	test.That(t, place.PrePlaceApproach, test.ShouldResemble, g.PreGraspApproach)
	test.That(t, place.PostPlaceRetreat, test.ShouldResemble, g.PostGraspRetreat)

	// the place location does not alias the grasp's posture
	place.PostPlacePosture.Positions[0] = 1
	test.That(t, g.PreGraspPosture.Positions[0], test.ShouldEqual, 0.)
}

func TestStageTransitions(t *testing.T) {
	path := []grasp.Stage{grasp.StageIdle, grasp.StageAnalyzing, grasp.StagePicking, grasp.StagePlacing, grasp.StageDone}
	for i := 0; i < len(path)-1; i++ {
		test.That(t, path[i].CanTransition(path[i+1]), test.ShouldBeTrue)
	}

	test.That(t, grasp.StageIdle.CanTransition(grasp.StagePicking), test.ShouldBeFalse)
	test.That(t, grasp.StageAnalyzing.CanTransition(grasp.StagePlacing), test.ShouldBeFalse)
	test.That(t, grasp.StagePicking.CanTransition(grasp.StageDone), test.ShouldBeFalse)
	test.That(t, grasp.StageDone.CanTransition(grasp.StageFailed), test.ShouldBeFalse)
	test.That(t, grasp.StageFailed.CanTransition(grasp.StageIdle), test.ShouldBeFalse)

	test.That(t, grasp.StageDone.Terminal(), test.ShouldBeTrue)
	test.That(t, grasp.StageFailed.Terminal(), test.ShouldBeTrue)
	test.That(t, grasp.StagePicking.Terminal(), test.ShouldBeFalse)
}

func TestStageJSON(t *testing.T) {
	data, err := json.Marshal([]grasp.Stage{grasp.StageAnalyzing, grasp.StageFailed})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, `["ANALYZING","FAILED"]`)

	var s grasp.Stage
	test.That(t, json.Unmarshal([]byte(`"PLACING"`), &s), test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, grasp.StagePlacing)
	test.That(t, json.Unmarshal([]byte(`"LIFTING"`), &s), test.ShouldNotBeNil)
}

func TestProposalJSON(t *testing.T) {
	raw := `{
		"id": 7,
		"object_id": "cup",
		"pose": {"frame_id": "cup", "pose": {"position": {"x": 1, "y": 2, "z": 3}, "orientation": {"w": 1}}},
		"pre_grasp_posture": {"joint_names": ["finger_1"], "positions": [0]},
		"grasp_posture": {"joint_names": ["finger_1"], "positions": [0.8]}
	}`
	var p grasp.Proposal
	test.That(t, json.Unmarshal([]byte(raw), &p), test.ShouldBeNil)
	test.That(t, p.ID, test.ShouldEqual, int64(7))
	test.That(t, p.Pose.FrameName(), test.ShouldEqual, "cup")
	test.That(t, p.Pose.Pose().Point(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, p.GraspPosture.Positions, test.ShouldResemble, []float64{0.8})
	test.That(t, p.PreGraspApproach.Empty(), test.ShouldBeTrue)
	test.That(t, p.PostGraspPosture.Empty(), test.ShouldBeTrue)
}
