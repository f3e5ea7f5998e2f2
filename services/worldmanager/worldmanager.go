// Package worldmanager maintains the planning scene: named boxes and meshes the planner avoids,
// and the objects of the recognized model list.
package worldmanager

import (
	"context"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	commonpb "go.viam.com/api/common/v1"

	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/spatialmath"
)

// Kind is the shape of a scene object.
type Kind string

// Scene object kinds.
const (
	KindBox  Kind = "box"
	KindMesh Kind = "mesh"
)

// Object is a collision object of the planning scene.
type Object struct {
	Name string                      `json:"name"`
	Kind Kind                        `json:"kind"`
	Pose *referenceframe.PoseInFrame `json:"pose"`
	// Dims are the box size or the mesh bounds, in mm.
	Dims     r3.Vector `json:"dims"`
	Filename string    `json:"filename,omitempty"`
	// Scale is what the mesh was scaled by to get mm.
	Scale float64 `json:"scale,omitempty"`

	center r3.Vector
	mesh   []byte
}

// Box is a box obstacle.
type Box struct {
	Name string
	Pose *referenceframe.PoseInFrame
	Size r3.Vector
}

// Config configures a Manager.
type Config struct {
	// PlanningFrame is the frame model poses are given in.
	PlanningFrame        string
	AutoscaleThresholdMM float64
	StaticObstacles      []Box
}

// Manager owns the planning scene.
type Manager struct {
	conf   Config
	source ModelSource
	logger logging.Logger

	mu        sync.RWMutex
	objects   map[string]Object
	bodyCache []string

	watchMu                 sync.Mutex
	cancelWatch             context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// New returns a Manager with the static obstacles of conf in its scene. source may be nil, in
// which case refresh and reload fail.
func New(conf Config, source ModelSource, logger logging.Logger) *Manager {
	if conf.PlanningFrame == "" {
		conf.PlanningFrame = referenceframe.World
	}
	if conf.AutoscaleThresholdMM == 0 {
		conf.AutoscaleThresholdMM = DefaultAutoscaleThresholdMM
	}
	m := &Manager{
		conf:    conf,
		source:  source,
		logger:  logger,
		objects: map[string]Object{},
	}
	for _, box := range conf.StaticObstacles {
		m.logger.Infow("adding static obstacle", "name", box.Name, "frame", box.Pose.FrameName())
		m.AddBox(box.Name, box.Pose, box.Size)
	}
	return m
}

// AddBox adds a box of the given size, replacing any object of the same name.
func (m *Manager) AddBox(name string, pose *referenceframe.PoseInFrame, size r3.Vector) {
	m.put(Object{
		Name: name,
		Kind: KindBox,
		Pose: m.framed(pose),
		Dims: r3.Vector{X: math.Abs(size.X), Y: math.Abs(size.Y), Z: math.Abs(size.Z)},
	})
}

// AddMesh adds the mesh in filename, autoscaled to mm, replacing any object of the same name.
// A missing or unreadable file leaves the scene unchanged; the result reports whether the mesh
// was added.
func (m *Manager) AddMesh(name string, pose *referenceframe.PoseInFrame, filename string) bool {
	if _, err := os.Stat(filename); err != nil {
		m.logger.Warnw("file doesn't exist", "object", name, "filename", filename)
		return false
	}
	data, bounds, err := loadMesh(filename, m.conf.AutoscaleThresholdMM)
	if err != nil {
		m.logger.Warnw("cannot load mesh", "object", name, "filename", filename, "error", err)
		return false
	}
	if bounds.Scale != 1 {
		m.logger.Debugw("scaled mesh to mm", "object", name, "scale", bounds.Scale)
	}
	m.put(Object{
		Name:     name,
		Kind:     KindMesh,
		Pose:     m.framed(pose),
		Dims:     bounds.dims(),
		Filename: filename,
		Scale:    bounds.Scale,
		center:   bounds.center(),
		mesh:     data,
	})
	return true
}

// RemoveObject removes the named object. Removing an unknown name is a no-op; the result
// reports whether anything was removed.
func (m *Manager) RemoveObject(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	delete(m.objects, name)
	return ok
}

// Object returns the named object.
func (m *Manager) Object(name string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[name]
	return obj, ok
}

// Objects returns all objects sorted by name.
func (m *Manager) Objects() []Object {
	m.mu.RLock()
	objs := lo.Values(m.objects)
	m.mu.RUnlock()
	sort.Slice(objs, func(i, j int) bool { return objs[i].Name < objs[j].Name })
	return objs
}

// SceneObjects implements motionplan.Scene. Poses are resolved to the world frame; the planning
// frame is the scene root and coincides with the world frame. Objects posed in a frame that is
// neither are left out.
func (m *Manager) SceneObjects() []motionplan.SceneObject {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]motionplan.SceneObject, 0, len(m.objects))
	for _, obj := range m.objects {
		pose, ok := m.worldPose(obj.Pose, 0)
		if !ok {
			m.logger.Debugw("object pose not in a known frame", "object", obj.Name, "frame", obj.Pose.FrameName())
			continue
		}
		if obj.Kind == KindMesh {
			pose = referenceframe.NewPoseInFrame(pose.FrameName(),
				spatialmath.Compose(pose.Pose(), spatialmath.NewPoseFromPoint(obj.center)))
		}
		out = append(out, motionplan.SceneObject{Name: obj.Name, Pose: pose, Dims: obj.Dims})
	}
	return out
}

// worldPose resolves pose to the world frame through the poses of other objects. depth bounds
// the chain so a cycle of objects posed relative to each other ends.
func (m *Manager) worldPose(pose *referenceframe.PoseInFrame, depth int) (*referenceframe.PoseInFrame, bool) {
	frame := pose.FrameName()
	if frame == referenceframe.World || frame == m.conf.PlanningFrame {
		return referenceframe.NewPoseInFrame(referenceframe.World, pose.Pose()), true
	}
	parent, ok := m.objects[frame]
	if !ok || depth > len(m.objects) {
		return nil, false
	}
	parentPose, ok := m.worldPose(parent.Pose, depth+1)
	if !ok {
		return nil, false
	}
	return pose.Transform(parentPose), true
}

// GeometriesInFrame returns the scene as common.proto geometries grouped by reference frame.
func (m *Manager) GeometriesInFrame() []*commonpb.GeometriesInFrame {
	byFrame := map[string][]*commonpb.Geometry{}
	for _, obj := range m.Objects() {
		frame := obj.Pose.FrameName()
		byFrame[frame] = append(byFrame[frame], ObjectToProtobuf(obj))
	}
	frames := lo.Keys(byFrame)
	sort.Strings(frames)
	return lo.Map(frames, func(frame string, _ int) *commonpb.GeometriesInFrame {
		return &commonpb.GeometriesInFrame{ReferenceFrame: frame, Geometries: byFrame[frame]}
	})
}

// ObjectToProtobuf converts an object to a Geometry message.
func ObjectToProtobuf(obj Object) *commonpb.Geometry {
	geom := &commonpb.Geometry{
		Center: spatialmath.PoseToProtobuf(obj.Pose.Pose()),
		Label:  obj.Name,
	}
	switch obj.Kind {
	case KindMesh:
		geom.GeometryType = &commonpb.Geometry_Mesh{Mesh: &commonpb.Mesh{ContentType: "ply", Mesh: obj.mesh}}
	default:
		geom.GeometryType = &commonpb.Geometry_Box{Box: &commonpb.RectangularPrism{
			DimsMm: &commonpb.Vector3{X: obj.Dims.X, Y: obj.Dims.Y, Z: obj.Dims.Z},
		}}
	}
	return geom
}

// Refresh has the model source re-detect the models, then replaces the model objects of the
// scene with them.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.source == nil {
		return errors.New("no model list configured")
	}
	models, err := m.source.Refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing model list")
	}
	m.replaceModels(models)
	return nil
}

// Reload re-reads the stored model list, then replaces the model objects of the scene with it.
func (m *Manager) Reload(ctx context.Context) error {
	if m.source == nil {
		return errors.New("no model list configured")
	}
	models, err := m.source.Read(ctx)
	if err != nil {
		return errors.Wrap(err, "reloading model list")
	}
	m.replaceModels(models)
	return nil
}

func (m *Manager) replaceModels(models []Model) {
	m.removeAllModels()
	for _, model := range models {
		pose := referenceframe.NewPoseInFrame(m.conf.PlanningFrame, spatialmath.NewPoseFromMessage(model.Pose))
		if m.AddMesh(model.Name, pose, model.Filename) {
			m.logger.Infow("added model", "name", model.Name)
		}
		m.mu.Lock()
		m.bodyCache = append(m.bodyCache, model.Name)
		m.mu.Unlock()
	}
}

// removeAllModels removes every object added from the model list and forgets their names.
// Objects added directly are kept.
func (m *Manager) removeAllModels() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.bodyCache {
		delete(m.objects, name)
	}
	m.bodyCache = nil
}

func (m *Manager) put(obj Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Name] = obj
}

func (m *Manager) framed(pose *referenceframe.PoseInFrame) *referenceframe.PoseInFrame {
	if pose == nil {
		return referenceframe.NewPoseInFrame(m.conf.PlanningFrame, nil)
	}
	return pose
}

// Close stops watching the model list.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	if m.cancelWatch != nil {
		m.cancelWatch()
		m.cancelWatch = nil
	}
	m.watchMu.Unlock()
	m.activeBackgroundWorkers.Wait()
	return nil
}
