// Package simplanner implements an in-process simulated planner backend. It judges a grasp
// reachable when the end-effector pose and its pre-grasp point are within reach of the arm base
// and outside every other scene object's bounding box.
package simplanner

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/spatialmath"
)

// Name is the registered backend name.
const Name = "sim"

// Config is the attributes of a sim backend.
type Config struct {
	// BasePosition is the arm base in the world frame, in mm.
	BasePosition spatialmath.PointMessage `json:"base_position"`
	ReachMM      float64                  `json:"reach_mm"`
	MinReachMM   float64                  `json:"min_reach_mm"`
	PlaceRetries int                      `json:"place_retries"`
	Groups       []string                 `json:"groups"`
	NamedTargets []string                 `json:"named_targets"`
	// MotionMS is how long a simulated motion takes.
	MotionMS int `json:"motion_ms"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate() error {
	if conf.ReachMM < 0 || conf.MinReachMM < 0 {
		return errors.New("reach_mm and min_reach_mm must not be negative")
	}
	if conf.ReachMM != 0 && conf.MinReachMM >= conf.ReachMM {
		return errors.Errorf("min_reach_mm (%v) must be below reach_mm (%v)", conf.MinReachMM, conf.ReachMM)
	}
	if conf.PlaceRetries < 0 {
		return errors.New("place_retries must not be negative")
	}
	if conf.MotionMS < 0 {
		return errors.New("motion_ms must not be negative")
	}
	return nil
}

func (conf *Config) setDefaults() {
	if conf.ReachMM == 0 {
		conf.ReachMM = 850
	}
	if conf.PlaceRetries == 0 {
		conf.PlaceRetries = 3
	}
	if len(conf.Groups) == 0 {
		conf.Groups = []string{"manipulator", "gripper"}
	}
	if len(conf.NamedTargets) == 0 {
		conf.NamedTargets = []string{"home", "open", "closed"}
	}
}

func init() {
	motionplan.RegisterBackend(Name, motionplan.Registration{
		Constructor: func(
			ctx context.Context, deps motionplan.Dependencies, attrs motionplan.AttributeMap, logger logging.Logger,
		) (motionplan.Backend, error) {
			conf, err := motionplan.DecodeAttributes[Config](attrs)
			if err != nil {
				return nil, err
			}
			return New(conf, deps.Scene, logger)
		},
		Validate: func(attrs motionplan.AttributeMap) error {
			conf, err := motionplan.DecodeAttributes[Config](attrs)
			if err != nil {
				return err
			}
			return conf.Validate()
		},
	})
}

// Planner is the simulated backend.
type Planner struct {
	conf   Config
	scene  motionplan.Scene
	logger logging.Logger

	mu           sync.Mutex
	held         string
	groupTargets map[string]string
	cancelMotion context.CancelFunc
}

// New returns a sim backend planning against scene.
func New(conf Config, scene motionplan.Scene, logger logging.Logger) (*Planner, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, errors.New("sim planner needs a planning scene")
	}
	conf.setDefaults()
	return &Planner{
		conf:         conf,
		scene:        scene,
		logger:       logger,
		groupTargets: map[string]string{},
	}, nil
}

// Plan implements motionplan.Planner.
func (p *Planner) Plan(ctx context.Context, req motionplan.PlanRequest) (motionplan.PlanResponse, error) {
	start := time.Now()
	if code := p.checkRequest(req.Group, req.PlanningTime); code != motionplan.Success {
		return motionplan.PlanResponse{ErrorCode: code}, nil
	}
	if len(req.Grasps) == 0 {
		return motionplan.PlanResponse{ErrorCode: motionplan.InvalidGoalConstraints}, nil
	}
	objects := p.sceneObjects()
	target, ok := objects[req.ObjectID]
	if !ok {
		return motionplan.PlanResponse{ErrorCode: motionplan.InvalidObjectName}, nil
	}

	code := motionplan.PlanningFailed
	for _, g := range req.Grasps {
		code = p.checkGrasp(g, target, objects)
		if code != motionplan.Success {
			p.logger.Debugw("grasp rejected", "grasp", g.ID, "code", code)
			continue
		}
		accepted := g
		resp := motionplan.PlanResponse{
			ErrorCode: motionplan.Success,
			Grasp:     &accepted,
			Metadata: motionplan.PlanMetadata{
				PlanID:       uuid.NewString(),
				Stages:       []string{"approach", "grasp", "retreat"},
				PlanningTime: time.Since(start).Seconds(),
			},
		}
		if req.Mode == motionplan.PlanAndExecute {
			if !p.move(ctx) {
				return motionplan.PlanResponse{ErrorCode: motionplan.Preempted}, nil
			}
			p.mu.Lock()
			p.held = req.ObjectID
			p.mu.Unlock()
		}
		return resp, nil
	}
	return motionplan.PlanResponse{ErrorCode: code}, nil
}

// PlaceWithRetry implements motionplan.PlaceExecutor. Every location is tried on each of
// PlaceRetries attempts.
func (p *Planner) PlaceWithRetry(ctx context.Context, req motionplan.PlaceRequest) (motionplan.PlaceResponse, error) {
	if code := p.checkRequest(req.Group, req.PlanningTime); code != motionplan.Success {
		return motionplan.PlaceResponse{ErrorCode: code}, nil
	}
	p.mu.Lock()
	held := p.held
	p.mu.Unlock()
	if held != req.ObjectID {
		return motionplan.PlaceResponse{ErrorCode: motionplan.InvalidObjectName}, nil
	}
	if len(req.Locations) == 0 {
		return motionplan.PlaceResponse{ErrorCode: motionplan.InvalidGoalConstraints}, nil
	}

	objects := p.sceneObjects()
	code := motionplan.PlanningFailed
	for attempt := 1; attempt <= p.conf.PlaceRetries; attempt++ {
		for _, loc := range req.Locations {
			code = p.checkPlace(loc, req.ObjectID, objects)
			if code != motionplan.Success {
				continue
			}
			if !p.move(ctx) {
				return motionplan.PlaceResponse{ErrorCode: motionplan.Preempted, Attempts: attempt}, nil
			}
			p.mu.Lock()
			p.held = ""
			p.mu.Unlock()
			placed := loc
			return motionplan.PlaceResponse{ErrorCode: motionplan.Success, Attempts: attempt, Location: &placed}, nil
		}
		p.logger.Debugw("place attempt failed", "object", req.ObjectID, "attempt", attempt, "code", code)
	}
	return motionplan.PlaceResponse{ErrorCode: code, Attempts: p.conf.PlaceRetries}, nil
}

// GoToNamedTarget implements motionplan.NamedTargetPlanner.
func (p *Planner) GoToNamedTarget(ctx context.Context, req motionplan.NamedTargetRequest) (bool, error) {
	if code := p.checkRequest(req.Group, req.PlanningTime); code != motionplan.Success {
		p.logger.Debugw("named target rejected", "group", req.Group, "target", req.Target, "code", code)
		return false, nil
	}
	if !lo.Contains(p.conf.NamedTargets, req.Target) {
		p.logger.Debugw("unknown named target", "group", req.Group, "target", req.Target)
		return false, nil
	}
	if !p.move(ctx) {
		return false, nil
	}
	p.mu.Lock()
	p.groupTargets[req.Group] = req.Target
	p.mu.Unlock()
	return true, nil
}

// CurrentTarget returns the named target group last moved to.
func (p *Planner) CurrentTarget(group string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.groupTargets[group]
}

// Held returns the object currently held, if any.
func (p *Planner) Held() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

// Stop cancels the motion in progress.
func (p *Planner) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelMotion != nil {
		p.cancelMotion()
	}
	return nil
}

// Close stops any motion.
func (p *Planner) Close(ctx context.Context) error {
	return p.Stop(ctx)
}

// move simulates a motion. It returns false when the motion was stopped.
func (p *Planner) move(ctx context.Context) bool {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancelMotion = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.cancelMotion = nil
		p.mu.Unlock()
		cancel()
	}()
	if p.conf.MotionMS == 0 {
		return ctx.Err() == nil
	}
	return goutils.SelectContextOrWait(ctx, time.Duration(p.conf.MotionMS)*time.Millisecond)
}

func (p *Planner) checkRequest(group string, planningTime float64) motionplan.ErrorCode {
	if !lo.Contains(p.conf.Groups, group) {
		return motionplan.InvalidGroupName
	}
	if planningTime <= 0 {
		return motionplan.TimedOut
	}
	return motionplan.Success
}

func (p *Planner) sceneObjects() map[string]motionplan.SceneObject {
	return lo.SliceToMap(p.scene.SceneObjects(), func(obj motionplan.SceneObject) (string, motionplan.SceneObject) {
		return obj.Name, obj
	})
}

func (p *Planner) checkGrasp(g grasp.Grasp, target motionplan.SceneObject, objects map[string]motionplan.SceneObject) motionplan.ErrorCode {
	if g.Pose == nil {
		return motionplan.InvalidGoalConstraints
	}
	var eePose spatialmath.Pose
	switch g.Pose.FrameName() {
	case referenceframe.World:
		eePose = g.Pose.Pose()
	case target.Name:
		eePose = g.Pose.Transform(target.Pose).Pose()
	default:
		return motionplan.FrameTransformFailure
	}
	if !p.inReach(eePose.Point()) {
		return motionplan.NoIKSolution
	}
	ignore := append([]string{target.Name}, g.AllowedTouchObjects...)
	if p.collides(eePose.Point(), objects, ignore) {
		return motionplan.GoalInCollision
	}
	if !g.PreGraspApproach.Empty() {
		pre := offset(eePose, g.PreGraspApproach, -1)
		if !p.inReach(pre) {
			return motionplan.NoIKSolution
		}
		if p.collides(pre, objects, ignore) {
			return motionplan.GoalInCollision
		}
	}
	return motionplan.Success
}

func (p *Planner) checkPlace(loc grasp.PlaceLocation, held string, objects map[string]motionplan.SceneObject) motionplan.ErrorCode {
	if loc.PlacePose == nil {
		return motionplan.InvalidGoalConstraints
	}
	placePose := loc.PlacePose.Pose()
	if frame := loc.PlacePose.FrameName(); frame != referenceframe.World {
		parent, ok := objects[frame]
		if !ok {
			return motionplan.FrameTransformFailure
		}
		placePose = loc.PlacePose.Transform(parent.Pose).Pose()
	}
	if !p.inReach(placePose.Point()) {
		return motionplan.NoIKSolution
	}
	if p.collides(placePose.Point(), objects, append([]string{held}, loc.AllowedTouchObjects...)) {
		return motionplan.GoalInCollision
	}
	return motionplan.Success
}

func (p *Planner) inReach(pt r3.Vector) bool {
	base := r3.Vector{X: p.conf.BasePosition.X, Y: p.conf.BasePosition.Y, Z: p.conf.BasePosition.Z}
	d := pt.Sub(base).Norm()
	return d <= p.conf.ReachMM && d >= p.conf.MinReachMM
}

func (p *Planner) collides(pt r3.Vector, objects map[string]motionplan.SceneObject, ignore []string) bool {
	for name, obj := range objects {
		if lo.Contains(ignore, name) || obj.Pose == nil {
			continue
		}
		if insideBox(pt, obj) {
			return true
		}
	}
	return false
}

func insideBox(pt r3.Vector, obj motionplan.SceneObject) bool {
	local := spatialmath.Compose(spatialmath.PoseInverse(obj.Pose.Pose()), spatialmath.NewPoseFromPoint(pt)).Point()
	return math.Abs(local.X) <= obj.Dims.X/2 &&
		math.Abs(local.Y) <= obj.Dims.Y/2 &&
		math.Abs(local.Z) <= obj.Dims.Z/2
}

// offset moves along a gripper translation from pose by sign times its desired distance. The
// direction is taken in the world frame when the translation says so and in the end-effector
// frame otherwise.
func offset(pose spatialmath.Pose, t grasp.GripperTranslation, sign float64) r3.Vector {
	dir := t.Direction
	if dir.Norm() == 0 {
		return pose.Point()
	}
	dir = dir.Normalize()
	if t.FrameID != referenceframe.World {
		dir = spatialmath.RotatePoint(pose.Orientation().Quaternion(), dir)
	}
	return pose.Point().Add(dir.Mul(sign * t.DesiredDistance))
}
