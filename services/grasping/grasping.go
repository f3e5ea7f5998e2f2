// Package grasping implements the grasp lifecycle of a manipulator: reachability analysis of
// grasp proposals, and their execution through pick and place.
package grasping

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/grasping/components/arm"
	"go.viam.com/grasping/components/gripper"
	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/spatialmath"
)

// Config holds the startup settings of the service. They do not change afterwards.
type Config struct {
	ArmGroup              string
	ApproachFrame         string
	ApproachToEndEffector spatialmath.Pose

	AnalysisPlannerID     string
	AnalysisTimeBudgetSec float64

	ExecutionPlannerID     string
	ExecutionTimeBudgetSec float64

	NamedTargets NamedTargets
	BusyPolicy   BusyPolicy
}

// Dependencies are the collaborators of the service.
type Dependencies struct {
	Planner     motionplan.Planner
	Placer      motionplan.PlaceExecutor
	Arm         arm.Arm
	Gripper     gripper.Gripper
	Broadcaster *referenceframe.Broadcaster
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Fatal is called once, when the planner fails to answer. The process is expected to shut
	// down; the service refuses requests from then on.
	Fatal func(error)
}

// ErrPlannerUnavailable is returned once the planner has failed to answer a request.
var ErrPlannerUnavailable = errors.New("planner is unavailable")

// Service serializes analysis and execution requests onto the manipulator.
type Service struct {
	analyzer     *Analyzer
	orchestrator *Orchestrator
	manipulator  *Manipulator
	fatal        func(error)
	logger       logging.Logger

	faultOnce sync.Once
	mu        sync.Mutex
	fault     error
}

// New wires the frame bridge, gateway, analyzer and orchestrator together.
func New(conf Config, deps Dependencies, logger logging.Logger) (*Service, error) {
	if deps.Planner == nil || deps.Placer == nil {
		return nil, errors.New("grasping service needs a planner and a place executor")
	}
	if deps.Arm == nil || deps.Gripper == nil {
		return nil, errors.New("grasping service needs an arm and a gripper")
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = referenceframe.NewBroadcaster()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	s := &Service{fatal: deps.Fatal, logger: logger}
	bridge := NewFrameBridge(deps.Broadcaster, deps.Clock, conf.ApproachFrame, conf.ApproachToEndEffector, logger.Sublogger("bridge"))
	gateway := NewGateway(deps.Planner, deps.Placer, conf.ArmGroup, s.setFault, logger.Sublogger("gateway"))
	analyzer := NewAnalyzer(gateway, bridge, conf.AnalysisPlannerID, conf.AnalysisTimeBudgetSec, logger.Sublogger("analyzer"))
	manipulator := NewManipulator(deps.Arm, deps.Gripper, conf.BusyPolicy)
	orchestrator := NewOrchestrator(
		analyzer, gateway, bridge, manipulator,
		conf.ExecutionPlannerID, conf.ExecutionTimeBudgetSec, conf.NamedTargets,
		deps.Clock, logger.Sublogger("orchestrator"),
	)
	s.analyzer = analyzer
	s.orchestrator = orchestrator
	s.manipulator = manipulator
	return s, nil
}

func (s *Service) setFault(err error) {
	s.faultOnce.Do(func() {
		s.mu.Lock()
		s.fault = errors.Wrap(ErrPlannerUnavailable, err.Error())
		s.mu.Unlock()
		s.logger.Errorw("lost the planner", "error", err)
		if s.fatal != nil {
			s.fatal(err)
		}
	})
}

// Fault is the error the planner failed with, or nil while it answers.
func (s *Service) Fault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// Orchestrator returns the service's orchestrator.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orchestrator
}

// CheckReachability answers a reachability query. Errors come from acquiring the manipulator,
// or are ErrPlannerUnavailable when the planner did not answer; the verdict still echoes the
// grasp id.
func (s *Service) CheckReachability(ctx context.Context, p grasp.Proposal) (grasp.Verdict, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return grasp.Verdict{GraspID: p.ID}, err
	}
	defer release()
	verdict := s.analyzer.Analyze(ctx, p)
	return verdict, s.Fault()
}

// Execute runs a full execution of the proposal, placing at place when it is set. When the
// planner stops answering midway, the execution so far is returned with ErrPlannerUnavailable.
func (s *Service) Execute(ctx context.Context, p grasp.Proposal, place *referenceframe.PoseInFrame) (*Execution, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	exec := s.orchestrator.Execute(ctx, p, place)
	return exec, s.Fault()
}

// HomeArm moves the arm home.
func (s *Service) HomeArm(ctx context.Context) (bool, error) {
	return s.withManipulator(ctx, s.orchestrator.HomeArm)
}

// OpenHand opens the gripper.
func (s *Service) OpenHand(ctx context.Context) (bool, error) {
	return s.withManipulator(ctx, s.orchestrator.OpenHand)
}

// CloseHand closes the gripper.
func (s *Service) CloseHand(ctx context.Context) (bool, error) {
	return s.withManipulator(ctx, s.orchestrator.CloseHand)
}

func (s *Service) withManipulator(ctx context.Context, move func(context.Context) bool) (bool, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()
	return move(ctx), nil
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if err := s.Fault(); err != nil {
		return nil, err
	}
	return s.manipulator.Acquire(ctx)
}

// Shutdown waits up to grace for the request holding the manipulator to finish, then stops the
// arm and gripper. No request can take the manipulator afterwards.
func (s *Service) Shutdown(ctx context.Context, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if !s.manipulator.Drain(ctx) {
		s.logger.Warnw("in-flight motion did not finish before shutdown", "grace", grace.String())
	}
	return s.manipulator.Stop(context.Background())
}
