// Package config defines the configuration file of the grasping server.
package config

import (
	"fmt"
	"net"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/services/grasping"
	"go.viam.com/grasping/services/worldmanager"
	"go.viam.com/grasping/spatialmath"
)

// Defaults applied by Ensure to options left unset.
const (
	DefaultArmGroup               = "manipulator"
	DefaultGripperGroup           = "gripper"
	DefaultApproachFrame          = "/approach_tran"
	DefaultAnalysisPlannerConfig  = "[PRMkConfigDefault]"
	DefaultAnalysisTimeBudgetSec  = 2
	DefaultExecutionPlannerID     = "manipulator[RRTConnectkConfigDefault]"
	DefaultExecutionTimeBudgetSec = 5
	DefaultShutdownGraceSec       = 10
	DefaultPlannerType            = "sim"
	DefaultLogMaxSizeMB           = 100
	DefaultLogMaxBackups          = 3
)

// DefaultBindAddress is the address the front-end listens on when none is set.
const DefaultBindAddress = "localhost:8080"

// A Config describes the configuration of a grasping server. It is read once at startup.
type Config struct {
	Manipulator      ManipulatorConfig  `json:"manipulator"`
	Analysis         AnalysisConfig     `json:"analysis"`
	Execution        ExecutionConfig    `json:"execution"`
	NamedTargets     NamedTargetsConfig `json:"named_targets"`
	BusyPolicy       string             `json:"busy_policy,omitempty"`
	ShutdownGraceSec float64            `json:"shutdown_grace_sec,omitempty"`
	Planner          PlannerConfig      `json:"planner"`
	Scene            SceneConfig        `json:"scene"`
	Network          NetworkConfig      `json:"network"`
	Log              LogConfig          `json:"log"`

	ConfigFilePath string `json:"-"`
}

// ManipulatorConfig names the planning groups and the approach frame.
type ManipulatorConfig struct {
	ArmGroup      string `json:"arm_group,omitempty"`
	GripperGroup  string `json:"gripper_group,omitempty"`
	ApproachFrame string `json:"approach_frame,omitempty"`
	// ApproachToEndEffector is the pose of the end-effector frame in the approach frame.
	ApproachToEndEffector *spatialmath.PoseMessage `json:"approach_to_end_effector,omitempty"`
}

// AnalysisConfig configures reachability analysis. The planner id is the arm group followed by
// the planner config unless PlannerID overrides it.
type AnalysisConfig struct {
	PlannerConfig string  `json:"planner_config,omitempty"`
	PlannerID     string  `json:"planner_id,omitempty"`
	TimeBudgetSec float64 `json:"time_budget_sec,omitempty"`
}

// ExecutionConfig configures pick, place and named-target moves.
type ExecutionConfig struct {
	PlannerID     string  `json:"planner_id,omitempty"`
	TimeBudgetSec float64 `json:"time_budget_sec,omitempty"`
}

// NamedTargetsConfig names the predefined arm and gripper configurations.
type NamedTargetsConfig struct {
	Home   string `json:"home,omitempty"`
	Open   string `json:"open,omitempty"`
	Closed string `json:"closed,omitempty"`
}

// PlannerConfig selects the planner backend.
type PlannerConfig struct {
	Type       string                  `json:"type,omitempty"`
	Attributes motionplan.AttributeMap `json:"attributes,omitempty"`
}

// SceneConfig configures the planning scene.
type SceneConfig struct {
	ModelList            string      `json:"model_list,omitempty"`
	WatchModelList       bool        `json:"watch_model_list,omitempty"`
	PlanningFrame        string      `json:"planning_frame,omitempty"`
	AutoscaleThresholdMM float64     `json:"autoscale_threshold_mm,omitempty"`
	StaticObstacles      []BoxConfig `json:"static_obstacles,omitempty"`
}

// BoxConfig is a box obstacle added to the scene at startup. Sizes are in mm.
type BoxConfig struct {
	Name  string                  `json:"name"`
	Frame string                  `json:"frame,omitempty"`
	Pose  spatialmath.PoseMessage `json:"pose"`
	SizeX float64                 `json:"size_x"`
	SizeY float64                 `json:"size_y"`
	SizeZ float64                 `json:"size_z"`
}

// NetworkConfig describes networking settings for the front-end.
type NetworkConfig struct {
	// BindAddress is the address that the web server will bind to.
	BindAddress string `json:"bind_address,omitempty"`

	// TLSCertFile and TLSKeyFile enable secure communications on the front-end.
	TLSCertFile string `json:"tls_cert_file,omitempty"`
	TLSKeyFile  string `json:"tls_key_file,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `json:"level,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Ensure validates the config and fills in defaults.
func (c *Config) Ensure() error {
	if err := c.Manipulator.Validate("manipulator"); err != nil {
		return err
	}
	if err := c.Analysis.Validate("analysis", c.Manipulator.ArmGroup); err != nil {
		return err
	}
	if err := c.Execution.Validate("execution"); err != nil {
		return err
	}
	c.NamedTargets.setDefaults()

	switch grasping.BusyPolicy(c.BusyPolicy) {
	case "":
		c.BusyPolicy = string(grasping.BusyReject)
	case grasping.BusyReject, grasping.BusyQueue:
	default:
		return utils.NewConfigValidationError("busy_policy", errors.Errorf("unknown busy policy %q", c.BusyPolicy))
	}
	if c.ShutdownGraceSec < 0 {
		return utils.NewConfigValidationError("shutdown_grace_sec", errors.New("must not be negative"))
	}
	if c.ShutdownGraceSec == 0 {
		c.ShutdownGraceSec = DefaultShutdownGraceSec
	}

	if err := c.Planner.Validate("planner"); err != nil {
		return err
	}
	if err := c.Scene.Validate("scene"); err != nil {
		return err
	}
	if err := c.Network.Validate("network"); err != nil {
		return err
	}
	return c.Log.Validate("log")
}

// Validate ensures the manipulator section is valid.
func (mc *ManipulatorConfig) Validate(path string) error {
	if mc.ArmGroup == "" {
		mc.ArmGroup = DefaultArmGroup
	}
	if mc.GripperGroup == "" {
		mc.GripperGroup = DefaultGripperGroup
	}
	if mc.ArmGroup == mc.GripperGroup {
		return utils.NewConfigValidationError(path, errors.New("arm_group and gripper_group must differ"))
	}
	if mc.ApproachFrame == "" {
		mc.ApproachFrame = DefaultApproachFrame
	}
	return nil
}

// Validate ensures the analysis section is valid.
func (ac *AnalysisConfig) Validate(path, armGroup string) error {
	if ac.PlannerConfig == "" {
		ac.PlannerConfig = DefaultAnalysisPlannerConfig
	}
	if ac.PlannerID == "" {
		ac.PlannerID = armGroup + ac.PlannerConfig
	}
	if ac.TimeBudgetSec < 0 {
		return utils.NewConfigValidationError(path, errors.New("time_budget_sec must not be negative"))
	}
	if ac.TimeBudgetSec == 0 {
		ac.TimeBudgetSec = DefaultAnalysisTimeBudgetSec
	}
	return nil
}

// Validate ensures the execution section is valid.
func (ec *ExecutionConfig) Validate(path string) error {
	if ec.PlannerID == "" {
		ec.PlannerID = DefaultExecutionPlannerID
	}
	if ec.TimeBudgetSec < 0 {
		return utils.NewConfigValidationError(path, errors.New("time_budget_sec must not be negative"))
	}
	if ec.TimeBudgetSec == 0 {
		ec.TimeBudgetSec = DefaultExecutionTimeBudgetSec
	}
	return nil
}

func (nt *NamedTargetsConfig) setDefaults() {
	if nt.Home == "" {
		nt.Home = "home"
	}
	if nt.Open == "" {
		nt.Open = "open"
	}
	if nt.Closed == "" {
		nt.Closed = "closed"
	}
}

// Validate ensures the backend exists and accepts its attributes. Backends must be registered
// before the config is validated.
func (pc *PlannerConfig) Validate(path string) error {
	if pc.Type == "" {
		pc.Type = DefaultPlannerType
	}
	reg, ok := motionplan.LookupBackend(pc.Type)
	if !ok {
		return utils.NewConfigValidationError(path, errors.Errorf("unknown planner type %q, known types are %v", pc.Type, motionplan.RegisteredBackends()))
	}
	if reg.Validate != nil {
		if err := reg.Validate(pc.Attributes); err != nil {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.attributes", path), err)
		}
	}
	return nil
}

// Validate ensures the scene section is valid.
func (sc *SceneConfig) Validate(path string) error {
	if sc.PlanningFrame == "" {
		sc.PlanningFrame = referenceframe.World
	}
	if sc.AutoscaleThresholdMM < 0 {
		return utils.NewConfigValidationError(path, errors.New("autoscale_threshold_mm must not be negative"))
	}
	if sc.AutoscaleThresholdMM == 0 {
		sc.AutoscaleThresholdMM = worldmanager.DefaultAutoscaleThresholdMM
	}
	if sc.WatchModelList && sc.ModelList == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "model_list")
	}
	for idx := range sc.StaticObstacles {
		if err := sc.StaticObstacles[idx].Validate(fmt.Sprintf("%s.static_obstacles.%d", path, idx)); err != nil {
			return err
		}
	}
	return nil
}

// Validate ensures the box is named.
func (bc *BoxConfig) Validate(path string) error {
	if bc.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	return nil
}

// Box converts the box config to a scene box. An unset frame means world.
func (bc BoxConfig) Box() worldmanager.Box {
	frame := bc.Frame
	if frame == "" {
		frame = referenceframe.World
	}
	return worldmanager.Box{
		Name: bc.Name,
		Pose: referenceframe.NewPoseInFrame(frame, spatialmath.NewPoseFromMessage(bc.Pose)),
		Size: r3.Vector{X: bc.SizeX, Y: bc.SizeY, Z: bc.SizeZ},
	}
}

// Validate ensures the network section is valid.
func (nc *NetworkConfig) Validate(path string) error {
	if nc.BindAddress == "" {
		nc.BindAddress = DefaultBindAddress
	}
	if _, _, err := net.SplitHostPort(nc.BindAddress); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating bind_address"))
	}
	if (nc.TLSCertFile == "") != (nc.TLSKeyFile == "") {
		return utils.NewConfigValidationError(path, errors.New("must provide both tls_cert_file and tls_key_file"))
	}
	return nil
}

// Validate ensures the log section is valid.
func (lc *LogConfig) Validate(path string) error {
	if lc.Level == "" {
		lc.Level = "info"
	}
	if _, err := logging.LevelFromString(lc.Level); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if lc.MaxSizeMB == 0 {
		lc.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if lc.MaxBackups == 0 {
		lc.MaxBackups = DefaultLogMaxBackups
	}
	return nil
}

// ServiceConfig is the grasping service configuration the file describes.
func (c *Config) ServiceConfig() grasping.Config {
	approachToEE := spatialmath.NewZeroPose()
	if c.Manipulator.ApproachToEndEffector != nil {
		approachToEE = spatialmath.NewPoseFromMessage(*c.Manipulator.ApproachToEndEffector)
	}
	return grasping.Config{
		ArmGroup:               c.Manipulator.ArmGroup,
		ApproachFrame:          c.Manipulator.ApproachFrame,
		ApproachToEndEffector:  approachToEE,
		AnalysisPlannerID:      c.Analysis.PlannerID,
		AnalysisTimeBudgetSec:  c.Analysis.TimeBudgetSec,
		ExecutionPlannerID:     c.Execution.PlannerID,
		ExecutionTimeBudgetSec: c.Execution.TimeBudgetSec,
		NamedTargets: grasping.NamedTargets{
			Home:   c.NamedTargets.Home,
			Open:   c.NamedTargets.Open,
			Closed: c.NamedTargets.Closed,
		},
		BusyPolicy: grasping.BusyPolicy(c.BusyPolicy),
	}
}

// SceneManagerConfig is the world manager configuration the file describes.
func (c *Config) SceneManagerConfig() worldmanager.Config {
	boxes := make([]worldmanager.Box, 0, len(c.Scene.StaticObstacles))
	for _, bc := range c.Scene.StaticObstacles {
		boxes = append(boxes, bc.Box())
	}
	return worldmanager.Config{
		PlanningFrame:        c.Scene.PlanningFrame,
		AutoscaleThresholdMM: c.Scene.AutoscaleThresholdMM,
		StaticObstacles:      boxes,
	}
}
