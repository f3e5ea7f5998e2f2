package worldmanager_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/services/worldmanager"
	"go.viam.com/grasping/spatialmath"
	"go.viam.com/grasping/testutils/inject"
)

// writePLY writes a binary little endian PLY with a single triangle over the first three vertices.
func writePLY(t *testing.T, path string, vertices ...r3.Vector) {
	t.Helper()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "ply\nformat binary_little_endian 1.0\nelement vertex %d\n", len(vertices))
	buf.WriteString("property float x\nproperty float y\nproperty float z\n")
	buf.WriteString("element face 1\nproperty list uchar int vertex_indices\nend_header\n")
	for _, v := range vertices {
		for _, f := range []float32{float32(v.X), float32(v.Y), float32(v.Z)} {
			test.That(t, binary.Write(&buf, binary.LittleEndian, f), test.ShouldBeNil)
		}
	}
	buf.WriteByte(3)
	for _, idx := range []int32{0, 1, 2} {
		test.That(t, binary.Write(&buf, binary.LittleEndian, idx), test.ShouldBeNil)
	}
	test.That(t, os.WriteFile(path, buf.Bytes(), 0o600), test.ShouldBeNil)
}

func worldPose(x, y, z float64) *referenceframe.PoseInFrame {
	return referenceframe.NewPoseInFrame(referenceframe.World, spatialmath.NewPoseFromPoint(r3.Vector{X: x, Y: y, Z: z}))
}

func TestBoxes(t *testing.T) {
	m := worldmanager.New(worldmanager.Config{
		StaticObstacles: []worldmanager.Box{{Name: "table", Pose: worldPose(-220, 420, 25), Size: r3.Vector{X: -920, Y: 1220, Z: 50}}},
	}, nil, logging.NewTestLogger(t))
	defer m.Close()

	table, ok := m.Object("table")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, table.Kind, test.ShouldEqual, worldmanager.KindBox)
	test.That(t, table.Dims, test.ShouldResemble, r3.Vector{X: 920, Y: 1220, Z: 50})

	m.AddBox("shelf", worldPose(0, 500, 300), r3.Vector{X: 400, Y: 200, Z: 20})
	m.AddBox("shelf", worldPose(0, 600, 300), r3.Vector{X: 400, Y: 200, Z: 20})
	objs := m.Objects()
	test.That(t, len(objs), test.ShouldEqual, 2)
	test.That(t, objs[0].Name, test.ShouldEqual, "shelf")
	test.That(t, objs[0].Pose.Pose().Point().Y, test.ShouldEqual, 600.)

	test.That(t, m.RemoveObject("shelf"), test.ShouldBeTrue)
	test.That(t, m.RemoveObject("shelf"), test.ShouldBeFalse)
	test.That(t, len(m.Objects()), test.ShouldEqual, 1)
}

func TestAddMeshMissingFile(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	m := worldmanager.New(worldmanager.Config{}, nil, logger)
	defer m.Close()

	m.AddBox("table", worldPose(0, 0, -10), r3.Vector{X: 1000, Y: 1000, Z: 20})
	added := m.AddMesh("cup", worldPose(400, 0, 50), filepath.Join(t.TempDir(), "nope.ply"))
	test.That(t, added, test.ShouldBeFalse)
	test.That(t, len(m.Objects()), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("file doesn't exist").Len(), test.ShouldEqual, 1)
}

func TestAddMeshAutoscale(t *testing.T) {
	dir := t.TempDir()
	meters := filepath.Join(dir, "cup_m.ply")
	writePLY(t, meters, r3.Vector{X: -0.04, Y: -0.04}, r3.Vector{X: 0.04, Y: 0.04}, r3.Vector{Z: 0.1})
	mm := filepath.Join(dir, "cup_mm.ply")
	writePLY(t, mm, r3.Vector{X: -40, Y: -40}, r3.Vector{X: 40, Y: 40}, r3.Vector{Z: 100})
	bad := filepath.Join(dir, "bad.ply")
	test.That(t, os.WriteFile(bad, []byte("not a mesh"), 0o600), test.ShouldBeNil)

	logger, logs := logging.NewObservedTestLogger(t)
	m := worldmanager.New(worldmanager.Config{}, nil, logger)
	defer m.Close()

	test.That(t, m.AddMesh("cup_m", worldPose(400, 0, 0), meters), test.ShouldBeTrue)
	test.That(t, m.AddMesh("cup_mm", worldPose(400, 200, 0), mm), test.ShouldBeTrue)
	test.That(t, m.AddMesh("bad", worldPose(0, 0, 0), bad), test.ShouldBeFalse)
	test.That(t, logs.FilterMessage("cannot load mesh").Len(), test.ShouldEqual, 1)

	inMeters, _ := m.Object("cup_m")
	test.That(t, inMeters.Scale, test.ShouldEqual, 1000.)
	test.That(t, spatialmath.R3VectorAlmostEqual(inMeters.Dims, r3.Vector{X: 80, Y: 80, Z: 100}, 1e-3), test.ShouldBeTrue)
	inMM, _ := m.Object("cup_mm")
	test.That(t, inMM.Scale, test.ShouldEqual, 1.)
	test.That(t, spatialmath.R3VectorAlmostEqual(inMM.Dims, r3.Vector{X: 80, Y: 80, Z: 100}, 1e-3), test.ShouldBeTrue)

	// the bounding box is centered on the mesh, not its origin
	for _, obj := range m.SceneObjects() {
		if obj.Name == "cup_m" {
			test.That(t, spatialmath.R3VectorAlmostEqual(obj.Pose.Pose().Point(), r3.Vector{X: 400, Z: 50}, 1e-3), test.ShouldBeTrue)
		}
	}

	geoms := m.GeometriesInFrame()
	test.That(t, len(geoms), test.ShouldEqual, 1)
	test.That(t, geoms[0].GetReferenceFrame(), test.ShouldEqual, referenceframe.World)
	test.That(t, len(geoms[0].GetGeometries()), test.ShouldEqual, 2)
	_, isMesh := geoms[0].GetGeometries()[0].GetGeometryType().(*commonpb.Geometry_Mesh)
	test.That(t, isMesh, test.ShouldBeTrue)
}

func TestSceneObjectsRelativeFrames(t *testing.T) {
	m := worldmanager.New(worldmanager.Config{PlanningFrame: "base"}, nil, logging.NewTestLogger(t))
	defer m.Close()

	m.AddBox("table", referenceframe.NewPoseInFrame("base", spatialmath.NewPoseFromPoint(r3.Vector{Z: -10})), r3.Vector{X: 1000, Y: 1000, Z: 20})
	m.AddBox("tray", referenceframe.NewPoseInFrame("table", spatialmath.NewPoseFromPoint(r3.Vector{Z: 20})), r3.Vector{X: 200, Y: 200, Z: 20})
	m.AddBox("ghost", referenceframe.NewPoseInFrame("nowhere", nil), r3.Vector{X: 1, Y: 1, Z: 1})
	m.AddBox("loop_a", referenceframe.NewPoseInFrame("loop_b", nil), r3.Vector{X: 1, Y: 1, Z: 1})
	m.AddBox("loop_b", referenceframe.NewPoseInFrame("loop_a", nil), r3.Vector{X: 1, Y: 1, Z: 1})

	byName := map[string]r3.Vector{}
	for _, obj := range m.SceneObjects() {
		test.That(t, obj.Pose.FrameName(), test.ShouldEqual, referenceframe.World)
		byName[obj.Name] = obj.Pose.Pose().Point()
	}
	test.That(t, len(byName), test.ShouldEqual, 2)
	test.That(t, byName["tray"], test.ShouldResemble, r3.Vector{Z: 10})
}

func writeModelList(t *testing.T, path string, models ...worldmanager.Model) {
	t.Helper()
	data, err := json.Marshal(worldmanager.ModelListFile{Models: models})
	test.That(t, err, test.ShouldBeNil)
	tmp := path + ".tmp"
	test.That(t, os.WriteFile(tmp, data, 0o600), test.ShouldBeNil)
	test.That(t, os.Rename(tmp, path), test.ShouldBeNil)
}

func TestReloadModelList(t *testing.T) {
	dir := t.TempDir()
	writePLY(t, filepath.Join(dir, "cup.ply"), r3.Vector{X: -40, Y: -40}, r3.Vector{X: 40, Y: 40}, r3.Vector{Z: 100})
	writePLY(t, filepath.Join(dir, "bowl.ply"), r3.Vector{X: -80, Y: -80}, r3.Vector{X: 80, Y: 80}, r3.Vector{Z: 60})
	listPath := filepath.Join(dir, "models.json")
	writeModelList(t, listPath,
		worldmanager.Model{Name: "/cup", Pose: spatialmath.PoseToMessage(spatialmath.NewPoseFromPoint(r3.Vector{X: 400}))},
		worldmanager.Model{Name: "bowl"},
		worldmanager.Model{Name: "mug"},
	)

	logger, logs := logging.NewObservedTestLogger(t)
	m := worldmanager.New(worldmanager.Config{}, worldmanager.NewFileSource(listPath), logger)
	defer m.Close()
	m.AddBox("table", worldPose(0, 0, -10), r3.Vector{X: 1000, Y: 1000, Z: 20})

	test.That(t, m.Reload(context.Background()), test.ShouldBeNil)
	names := func() []string {
		var out []string
		for _, obj := range m.Objects() {
			out = append(out, obj.Name)
		}
		return out
	}
	test.That(t, names(), test.ShouldResemble, []string{"bowl", "cup", "table"})
	test.That(t, logs.FilterMessage("file doesn't exist").Len(), test.ShouldEqual, 1)

	cup, _ := m.Object("cup")
	test.That(t, cup.Pose.FrameName(), test.ShouldEqual, referenceframe.World)
	test.That(t, cup.Pose.Pose().Point().X, test.ShouldEqual, 400.)

	writeModelList(t, listPath, worldmanager.Model{Name: "cup"})
	test.That(t, m.Reload(context.Background()), test.ShouldBeNil)
	test.That(t, names(), test.ShouldResemble, []string{"cup", "table"})
}

func TestRefreshUsesSource(t *testing.T) {
	dir := t.TempDir()
	writePLY(t, filepath.Join(dir, "cup.ply"), r3.Vector{X: -40, Y: -40}, r3.Vector{X: 40, Y: 40}, r3.Vector{Z: 100})

	var refreshed, read int
	source := &inject.ModelSource{
		RefreshFunc: func(ctx context.Context) ([]worldmanager.Model, error) {
			refreshed++
			return []worldmanager.Model{{Name: "cup", Filename: filepath.Join(dir, "cup.ply")}}, nil
		},
		ReadFunc: func(ctx context.Context) ([]worldmanager.Model, error) {
			read++
			return nil, os.ErrNotExist
		},
	}
	m := worldmanager.New(worldmanager.Config{}, source, logging.NewTestLogger(t))
	defer m.Close()

	test.That(t, m.Refresh(context.Background()), test.ShouldBeNil)
	test.That(t, refreshed, test.ShouldEqual, 1)
	_, ok := m.Object("cup")
	test.That(t, ok, test.ShouldBeTrue)

	test.That(t, m.Reload(context.Background()), test.ShouldNotBeNil)
	test.That(t, read, test.ShouldEqual, 1)
	// a failed reload leaves the scene alone
	_, ok = m.Object("cup")
	test.That(t, ok, test.ShouldBeTrue)

	noSource := worldmanager.New(worldmanager.Config{}, nil, logging.NewTestLogger(t))
	test.That(t, noSource.Refresh(context.Background()), test.ShouldNotBeNil)
}

func TestWatchModelList(t *testing.T) {
	dir := t.TempDir()
	writePLY(t, filepath.Join(dir, "cup.ply"), r3.Vector{X: -40, Y: -40}, r3.Vector{X: 40, Y: 40}, r3.Vector{Z: 100})
	listPath := filepath.Join(dir, "models.json")
	writeModelList(t, listPath)

	m := worldmanager.New(worldmanager.Config{}, worldmanager.NewFileSource(listPath), logging.NewTestLogger(t))
	test.That(t, m.WatchModelList(context.Background(), listPath, 10*time.Millisecond), test.ShouldBeNil)
	test.That(t, m.WatchModelList(context.Background(), listPath, 10*time.Millisecond), test.ShouldNotBeNil)

	writeModelList(t, listPath, worldmanager.Model{Name: "cup"})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		_, ok := m.Object("cup")
		test.That(tb, ok, test.ShouldBeTrue)
	})
	test.That(t, m.Close(), test.ShouldBeNil)
}
