package remoteplanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.viam.com/test"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
)

func newPlanningService(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(context.Background(), Config{Address: srv.URL}, srv.Client(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not reachable")

	_, err = New(context.Background(), Config{}, srv.Client(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New(context.Background(), Config{Address: "ftp://planner"}, srv.Client(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlan(t *testing.T) {
	var got motionplan.PlanRequest
	srv := newPlanningService(t, func(w http.ResponseWriter, r *http.Request) {
		test.That(t, r.URL.Path, test.ShouldEqual, PlanPath)
		test.That(t, json.NewDecoder(r.Body).Decode(&got), test.ShouldBeNil)
		accepted := got.Grasps[0]
		test.That(t, json.NewEncoder(w).Encode(motionplan.PlanResponse{
			ErrorCode: motionplan.Success,
			Grasp:     &accepted,
			Metadata:  motionplan.PlanMetadata{PlanID: "plan-1"},
		}), test.ShouldBeNil)
	})

	c, err := New(context.Background(), Config{Address: srv.URL + "/"}, srv.Client(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer c.Close(context.Background())

	resp, err := c.Plan(context.Background(), motionplan.PlanRequest{
		ObjectID:     "cup",
		Group:        "manipulator",
		Grasps:       []grasp.Grasp{{ID: grasp.GraspID(7)}},
		PlannerID:    "manipulator[PRMkConfigDefault]",
		PlanningTime: 2,
		Mode:         motionplan.PlanOnly,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.Success)
	test.That(t, resp.Grasp.ID, test.ShouldEqual, "grasp_7")
	test.That(t, resp.Metadata.PlanID, test.ShouldEqual, "plan-1")
	test.That(t, got.Mode, test.ShouldEqual, motionplan.PlanOnly)
	test.That(t, got.PlannerID, test.ShouldEqual, "manipulator[PRMkConfigDefault]")
	test.That(t, got.PlanningTime, test.ShouldEqual, 2.)
}

func TestPlaceAndNamedTarget(t *testing.T) {
	srv := newPlanningService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PlacePath:
			test.That(t, json.NewEncoder(w).Encode(motionplan.PlaceResponse{
				ErrorCode: motionplan.GoalInCollision, Attempts: 3,
			}), test.ShouldBeNil)
		case NamedTargetPath:
			var req motionplan.NamedTargetRequest
			test.That(t, json.NewDecoder(r.Body).Decode(&req), test.ShouldBeNil)
			test.That(t, json.NewEncoder(w).Encode(NamedTargetResponse{Success: req.Target == "home"}), test.ShouldBeNil)
		case StopPath:
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})
	c, err := New(context.Background(), Config{Address: srv.URL}, srv.Client(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	placed, err := c.PlaceWithRetry(context.Background(), motionplan.PlaceRequest{ObjectID: "cup", PlanningTime: 5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, placed.ErrorCode, test.ShouldEqual, motionplan.GoalInCollision)
	test.That(t, placed.Attempts, test.ShouldEqual, 3)

	ok, err := c.GoToNamedTarget(context.Background(), motionplan.NamedTargetRequest{Group: "manipulator", Target: "home"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	ok, err = c.GoToNamedTarget(context.Background(), motionplan.NamedTargetRequest{Group: "gripper", Target: "open"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, c.Stop(context.Background()), test.ShouldBeNil)
}

func TestServiceError(t *testing.T) {
	srv := newPlanningService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "move_group died", http.StatusInternalServerError)
	})
	c, err := New(context.Background(), Config{Address: srv.URL}, srv.Client(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = c.Plan(context.Background(), motionplan.PlanRequest{ObjectID: "cup"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "move_group died")
}

func TestNamedErrorCode(t *testing.T) {
	srv := newPlanningService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"error_code":"NO_IK_SOLUTION"}`))
		test.That(t, err, test.ShouldBeNil)
	})
	c, err := New(context.Background(), Config{Address: srv.URL}, srv.Client(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	resp, err := c.Plan(context.Background(), motionplan.PlanRequest{ObjectID: "cup"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.ErrorCode, test.ShouldEqual, motionplan.NoIKSolution)
	test.That(t, resp.ErrorCode.Succeeded(), test.ShouldBeFalse)
}
