package simplanner

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/spatialmath"
	"go.viam.com/grasping/testutils/inject"
)

func worldPose(x, y, z float64) *referenceframe.PoseInFrame {
	return referenceframe.NewPoseInFrame(referenceframe.World, spatialmath.NewPoseFromPoint(r3.Vector{X: x, Y: y, Z: z}))
}

func testScene() *inject.Scene {
	objects := []motionplan.SceneObject{
		{Name: "cup", Pose: worldPose(400, 0, 50), Dims: r3.Vector{X: 80, Y: 80, Z: 100}},
		{Name: "table", Pose: worldPose(0, 0, -10), Dims: r3.Vector{X: 2000, Y: 2000, Z: 20}},
		{Name: "far_cup", Pose: worldPose(2000, 0, 50), Dims: r3.Vector{X: 80, Y: 80, Z: 100}},
		{Name: "wall", Pose: worldPose(400, 300, 200), Dims: r3.Vector{X: 400, Y: 20, Z: 400}},
	}
	return &inject.Scene{SceneObjectsFunc: func() []motionplan.SceneObject { return objects }}
}

func graspAbove(object string, z float64) grasp.Grasp {
	return grasp.Grasp{
		ID:   grasp.GraspID(7),
		Pose: referenceframe.NewPoseInFrame(object, spatialmath.NewPoseFromPoint(r3.Vector{Z: z})),
		PreGraspApproach: grasp.GripperTranslation{
			FrameID: referenceframe.World, Direction: r3.Vector{Z: -1}, DesiredDistance: 100, MinDistance: 50,
		},
	}
}

func newTestPlanner(t *testing.T, conf Config) *Planner {
	t.Helper()
	p, err := New(conf, testScene(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return p
}

func planReq(object string, mode motionplan.Mode, grasps ...grasp.Grasp) motionplan.PlanRequest {
	return motionplan.PlanRequest{
		ObjectID:     object,
		Group:        "manipulator",
		Grasps:       grasps,
		PlannerID:    "manipulator[PRMkConfigDefault]",
		PlanningTime: 2,
		Mode:         mode,
	}
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	p := newTestPlanner(t, Config{})

	t.Run("reachable", func(t *testing.T) {
		resp, err := p.Plan(ctx, planReq("cup", motionplan.PlanOnly, graspAbove("cup", 80)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.Success)
		test.That(t, resp.Grasp.ID, test.ShouldEqual, "grasp_7")
		test.That(t, resp.Metadata.PlanID, test.ShouldNotBeEmpty)
		test.That(t, p.Held(), test.ShouldBeEmpty)
	})

	t.Run("out of reach", func(t *testing.T) {
		resp, err := p.Plan(ctx, planReq("far_cup", motionplan.PlanOnly, graspAbove("far_cup", 80)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.NoIKSolution)
		test.That(t, resp.Grasp, test.ShouldBeNil)
	})

	t.Run("goal inside another object", func(t *testing.T) {
		resp, err := p.Plan(ctx, planReq("cup", motionplan.PlanOnly, graspAbove("cup", -60)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.GoalInCollision)
	})

	t.Run("pre-grasp inside another object", func(t *testing.T) {
		g := graspAbove("cup", 80)
		g.Pose = referenceframe.NewPoseInFrame("cup", spatialmath.NewPoseFromPoint(r3.Vector{Y: 200, Z: 100}))
		g.PreGraspApproach.Direction = r3.Vector{Y: -1}
		resp, err := p.Plan(ctx, planReq("cup", motionplan.PlanOnly, g))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.GoalInCollision)
	})

	t.Run("allowed touch object", func(t *testing.T) {
		g := graspAbove("cup", -60)
		g.AllowedTouchObjects = []string{"table"}
		resp, err := p.Plan(ctx, planReq("cup", motionplan.PlanOnly, g))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.Success)
	})

	t.Run("unknown object", func(t *testing.T) {
		resp, err := p.Plan(ctx, planReq("bowl", motionplan.PlanOnly, graspAbove("bowl", 80)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.InvalidObjectName)
	})

	t.Run("unknown frame", func(t *testing.T) {
		resp, err := p.Plan(ctx, planReq("cup", motionplan.PlanOnly, graspAbove("bowl", 80)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.FrameTransformFailure)
	})

	t.Run("bad group and budget", func(t *testing.T) {
		req := planReq("cup", motionplan.PlanOnly, graspAbove("cup", 80))
		req.Group = "left_arm"
		resp, err := p.Plan(ctx, req)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.InvalidGroupName)

		req = planReq("cup", motionplan.PlanOnly, graspAbove("cup", 80))
		req.PlanningTime = 0
		resp, err = p.Plan(ctx, req)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.TimedOut)
	})

	t.Run("no grasps", func(t *testing.T) {
		resp, err := p.Plan(ctx, planReq("cup", motionplan.PlanOnly))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.InvalidGoalConstraints)
	})
}

func TestPlanIsRepeatable(t *testing.T) {
	p := newTestPlanner(t, Config{})
	req := planReq("cup", motionplan.PlanOnly, graspAbove("cup", 80))
	first, err := p.Plan(context.Background(), req)
	test.That(t, err, test.ShouldBeNil)
	second, err := p.Plan(context.Background(), req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.ErrorCode, test.ShouldEqual, first.ErrorCode)
}

func TestPickAndPlace(t *testing.T) {
	ctx := context.Background()
	p := newTestPlanner(t, Config{PlaceRetries: 2})

	placeReq := func(loc *referenceframe.PoseInFrame) motionplan.PlaceRequest {
		return motionplan.PlaceRequest{
			ObjectID:     "cup",
			Group:        "manipulator",
			Locations:    []grasp.PlaceLocation{{ID: "place_grasp_7", PlacePose: loc}},
			PlannerID:    "manipulator[RRTConnectkConfigDefault]",
			PlanningTime: 5,
		}
	}

	// nothing held yet
	resp, err := p.PlaceWithRetry(ctx, placeReq(worldPose(300, -200, 60)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.InvalidObjectName)

	picked, err := p.Plan(ctx, planReq("cup", motionplan.PlanAndExecute, graspAbove("cup", 80)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, picked.ErrorCode, test.ShouldEqual, motionplan.Success)
	test.That(t, p.Held(), test.ShouldEqual, "cup")

	resp, err = p.PlaceWithRetry(ctx, placeReq(worldPose(400, 300, 200)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.GoalInCollision)
	test.That(t, resp.Attempts, test.ShouldEqual, 2)
	test.That(t, p.Held(), test.ShouldEqual, "cup")

	resp, err = p.PlaceWithRetry(ctx, placeReq(worldPose(300, -200, 60)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.Success)
	test.That(t, resp.Attempts, test.ShouldEqual, 1)
	test.That(t, resp.Location.ID, test.ShouldEqual, "place_grasp_7")
	test.That(t, p.Held(), test.ShouldBeEmpty)
}

func TestNamedTargets(t *testing.T) {
	ctx := context.Background()
	p := newTestPlanner(t, Config{})
	req := motionplan.NamedTargetRequest{Group: "gripper", Target: "closed", PlannerID: "x", PlanningTime: 5}

	ok, err := p.GoToNamedTarget(ctx, req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p.CurrentTarget("gripper"), test.ShouldEqual, "closed")

	req.Target = "wave"
	ok, err = p.GoToNamedTarget(ctx, req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, p.CurrentTarget("gripper"), test.ShouldEqual, "closed")
}

func TestStopInterruptsMotion(t *testing.T) {
	p := newTestPlanner(t, Config{MotionMS: 60000})
	done := make(chan bool)
	go func() {
		ok, _ := p.GoToNamedTarget(context.Background(), motionplan.NamedTargetRequest{
			Group: "manipulator", Target: "home", PlanningTime: 5,
		})
		done <- ok
	}()

	for {
		p.mu.Lock()
		moving := p.cancelMotion != nil
		p.mu.Unlock()
		if moving {
			break
		}
		time.Sleep(time.Millisecond)
	}
	test.That(t, p.Stop(context.Background()), test.ShouldBeNil)
	test.That(t, <-done, test.ShouldBeFalse)
	test.That(t, p.CurrentTarget("manipulator"), test.ShouldBeEmpty)
}

func TestConfig(t *testing.T) {
	test.That(t, (&Config{ReachMM: 100, MinReachMM: 200}).Validate(), test.ShouldNotBeNil)
	test.That(t, (&Config{PlaceRetries: -1}).Validate(), test.ShouldNotBeNil)
	test.That(t, (&Config{}).Validate(), test.ShouldBeNil)

	_, err := motionplan.NewBackend(context.Background(), Name, motionplan.Dependencies{Scene: testScene()},
		motionplan.AttributeMap{"reach_mm": 900, "place_retries": 1}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = motionplan.NewBackend(context.Background(), Name, motionplan.Dependencies{Scene: testScene()},
		motionplan.AttributeMap{"min_reach_mm": 900, "reach_mm": 100}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
